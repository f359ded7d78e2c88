package cookies

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Safari Cookies.binarycookies layout: a big-endian file header with page
// sizes, then pages whose counts and offsets are little-endian.

var (
	binaryMagic      = []byte("cook")
	errBinaryCookies = errors.New("malformed binarycookies file")
)

const (
	pageTag          = 0x00000100
	recordHeaderSize = 56
	flagSecure       = 0x1
	flagHTTPOnly     = 0x4
)

// BinaryRecord is one parsed Safari cookie.
type BinaryRecord struct {
	Domain   string
	Name     string
	Path     string
	Value    string
	Secure   bool
	HTTPOnly bool
}

func readSafari(path, domain string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := ParseBinaryCookies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var out []Cookie
	for _, r := range records {
		if r.Value == "" || !matchesDomain(r.Domain, domain) {
			continue
		}
		out = append(out, normalize(r.Name, r.Value, r.Domain, r.Path))
	}
	return out, nil
}

func ParseBinaryCookies(data []byte) ([]BinaryRecord, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], binaryMagic) {
		return nil, fmt.Errorf("%w: bad magic", errBinaryCookies)
	}
	numPages := int(binary.BigEndian.Uint32(data[4:8]))
	offset := 8
	if numPages < 0 || len(data) < offset+4*numPages {
		return nil, fmt.Errorf("%w: truncated page table", errBinaryCookies)
	}
	sizes := make([]int, numPages)
	for i := range sizes {
		sizes[i] = int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}

	var out []BinaryRecord
	for i, size := range sizes {
		if size < 0 || offset+size > len(data) {
			return nil, fmt.Errorf("%w: page %d exceeds file", errBinaryCookies, i)
		}
		records, err := parsePage(data[offset : offset+size])
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		out = append(out, records...)
		offset += size
	}
	return out, nil
}

func parsePage(page []byte) ([]BinaryRecord, error) {
	if len(page) < 8 || binary.BigEndian.Uint32(page[:4]) != pageTag {
		return nil, fmt.Errorf("%w: bad page tag", errBinaryCookies)
	}
	count := int(binary.LittleEndian.Uint32(page[4:8]))
	if len(page) < 8+4*count {
		return nil, fmt.Errorf("%w: truncated cookie offsets", errBinaryCookies)
	}

	out := make([]BinaryRecord, 0, count)
	for i := 0; i < count; i++ {
		start := int(binary.LittleEndian.Uint32(page[8+4*i : 12+4*i]))
		if start+4 > len(page) {
			return nil, fmt.Errorf("%w: cookie %d offset out of range", errBinaryCookies, i)
		}
		size := int(binary.LittleEndian.Uint32(page[start : start+4]))
		if size < recordHeaderSize || start+size > len(page) {
			return nil, fmt.Errorf("%w: cookie %d size out of range", errBinaryCookies, i)
		}
		rec, err := parseRecord(page[start : start+size])
		if err != nil {
			return nil, fmt.Errorf("cookie %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRecord(rec []byte) (BinaryRecord, error) {
	le := binary.LittleEndian
	flags := le.Uint32(rec[8:12])
	domainOff := le.Uint32(rec[16:20])
	nameOff := le.Uint32(rec[20:24])
	pathOff := le.Uint32(rec[24:28])
	valueOff := le.Uint32(rec[28:32])

	var r BinaryRecord
	var err error
	if r.Domain, err = cString(rec, domainOff); err != nil {
		return r, err
	}
	if r.Name, err = cString(rec, nameOff); err != nil {
		return r, err
	}
	if r.Path, err = cString(rec, pathOff); err != nil {
		return r, err
	}
	if r.Value, err = cString(rec, valueOff); err != nil {
		return r, err
	}
	r.Secure = flags&flagSecure != 0
	r.HTTPOnly = flags&flagHTTPOnly != 0
	return r, nil
}

func cString(rec []byte, off uint32) (string, error) {
	if int(off) >= len(rec) {
		return "", fmt.Errorf("%w: string offset %d out of range", errBinaryCookies, off)
	}
	end := bytes.IndexByte(rec[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string", errBinaryCookies)
	}
	return string(rec[off : int(off)+end]), nil
}
