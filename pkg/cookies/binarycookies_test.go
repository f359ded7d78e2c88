package cookies

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func encodeRecord(r BinaryRecord) []byte {
	var flags uint32
	if r.Secure {
		flags |= flagSecure
	}
	if r.HTTPOnly {
		flags |= flagHTTPOnly
	}
	var strs bytes.Buffer
	offsets := make([]uint32, 4)
	for i, s := range []string{r.Domain, r.Name, r.Path, r.Value} {
		offsets[i] = uint32(recordHeaderSize + strs.Len())
		strs.WriteString(s)
		strs.WriteByte(0)
	}

	size := recordHeaderSize + strs.Len()
	buf := make([]byte, recordHeaderSize, size)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], uint32(size))
	le.PutUint32(buf[8:12], flags)
	le.PutUint32(buf[16:20], offsets[0])
	le.PutUint32(buf[20:24], offsets[1])
	le.PutUint32(buf[24:28], offsets[2])
	le.PutUint32(buf[28:32], offsets[3])
	return append(buf, strs.Bytes()...)
}

func encodePage(records ...BinaryRecord) []byte {
	encoded := make([][]byte, len(records))
	for i, r := range records {
		encoded[i] = encodeRecord(r)
	}
	header := 8 + 4*len(records) + 4
	page := make([]byte, header)
	binary.BigEndian.PutUint32(page[0:4], pageTag)
	binary.LittleEndian.PutUint32(page[4:8], uint32(len(records)))
	off := header
	for i, rec := range encoded {
		binary.LittleEndian.PutUint32(page[8+4*i:12+4*i], uint32(off))
		off += len(rec)
	}
	for _, rec := range encoded {
		page = append(page, rec...)
	}
	return page
}

func encodeFile(pages ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(binaryMagic)
	binary.Write(&buf, binary.BigEndian, uint32(len(pages)))
	for _, p := range pages {
		binary.Write(&buf, binary.BigEndian, uint32(len(p)))
	}
	for _, p := range pages {
		buf.Write(p)
	}
	// checksum and footer, ignored by the parser
	buf.Write(make([]byte, 8))
	return buf.Bytes()
}

func TestParseBinaryCookies(t *testing.T) {
	want := []BinaryRecord{
		{Domain: ".claude.ai", Name: "sessionKey", Path: "/", Value: "sk-safari", Secure: true, HTTPOnly: true},
		{Domain: "example.com", Name: "pref", Path: "/", Value: "dark"},
		{Domain: "claude.ai", Name: "org", Path: "/api", Value: "o-1", Secure: true},
	}
	data := encodeFile(encodePage(want[0], want[1]), encodePage(want[2]))

	got, err := ParseBinaryCookies(data)
	if err != nil {
		t.Fatalf("ParseBinaryCookies: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBinaryCookiesRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":          nil,
		"bad magic":      []byte("nope\x00\x00\x00\x01"),
		"page too large": append([]byte("cook\x00\x00\x00\x01\x00\x00\x10\x00"), 0, 0),
	}
	for name, data := range cases {
		if _, err := ParseBinaryCookies(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestReadSafariSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cookies.binarycookies")
	data := encodeFile(encodePage(
		BinaryRecord{Domain: ".claude.ai", Name: "sessionKey", Path: "/", Value: "sk", HTTPOnly: true},
		BinaryRecord{Domain: ".claude.ai", Name: "blank", Path: "/", Value: ""},
		BinaryRecord{Domain: "example.com", Name: "x", Path: "/", Value: "y"},
	))
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSource(context.Background(), path, "claude.ai")
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	want := []Cookie{{Name: "sessionKey", Value: "sk", Domain: "claude.ai", Path: "/", HTTPOnly: false, Secure: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("safari cookies mismatch (-want +got):\n%s", diff)
	}
}
