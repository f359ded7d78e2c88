package cookies

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claude_cookies.json")
	store := NewStore(path, "claude.ai")

	want := []Cookie{
		{Name: "sessionKey", Value: "sk-abc", Domain: "claude.ai", Path: "/", HTTPOnly: true, Secure: true},
		{Name: "lastActiveOrg", Value: "org-1", Domain: "claude.ai", Path: "/api", HTTPOnly: false, Secure: true},
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the cookie file, found %d entries", len(entries))
	}
}

func TestSaveWritesPortableFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	store := NewStore(path, "claude.ai")
	if err := store.Save([]Cookie{{Name: "a", Value: "b", Domain: "claude.ai", Path: "/", Secure: true}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"name"`, `"value"`, `"domain"`, `"path"`, `"httpOnly"`, `"secure"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("cookie file missing %s: %s", field, data)
		}
	}
	if !strings.HasPrefix(string(data), "[\n  {") {
		t.Errorf("expected indented JSON array, got %q", data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"), "claude.ai")
	got, err := store.Load()
	if err != nil || got != nil {
		t.Fatalf("Load() = (%v, %v), want (nil, nil)", got, err)
	}
	if store.Exists() {
		t.Error("Exists() reported true for missing file")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path, "claude.ai").Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHeader(t *testing.T) {
	got := Header([]Cookie{{Name: "a", Value: "1"}, {Name: "", Value: "skip"}, {Name: "b", Value: "2"}})
	if got != "a=1; b=2" {
		t.Errorf("Header = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	got := normalize("sessionKey", "v", ".claude.ai", "")
	want := Cookie{Name: "sessionKey", Value: "v", Domain: "claude.ai", Path: "/", HTTPOnly: false, Secure: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterDomain(t *testing.T) {
	in := []Cookie{
		{Name: "a", Domain: "claude.ai"},
		{Name: "b", Domain: "api.claude.ai"},
		{Name: "c", Domain: "google.com"},
	}
	got := FilterDomain(in, "claude.ai")
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("FilterDomain = %+v", got)
	}
}
