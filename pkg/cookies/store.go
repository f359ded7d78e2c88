package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nexia-labs/nexia/pkg/logger"
)

// ErrNoCookies is returned by a source that was readable but held nothing
// for the target domain.
var ErrNoCookies = errors.New("no cookies for domain")

// Cookie is the portable credential shape written to the cookie file.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// Store owns the cookie file for one service domain.
type Store struct {
	path   string
	domain string
	mu     sync.Mutex
}

func NewStore(path, domain string) *Store {
	return &Store{path: path, domain: domain}
}

func (s *Store) Path() string   { return s.path }
func (s *Store) Domain() string { return s.domain }

// Exists reports whether a cookie file has been written.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Load returns the persisted cookies. A missing file yields nil, nil.
func (s *Store) Load() ([]Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	var out []Cookie
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", s.path, err)
	}
	return out, nil
}

// Save replaces the cookie file atomically. Concurrent writers race and the
// last rename wins.
func (s *Store) Save(cookies []Cookie) error {
	if cookies == nil {
		cookies = []Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cookie file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cookie file: %w", err)
	}

	logger.InfoCF("cookies", "Saved cookies", map[string]interface{}{
		"count": len(cookies),
		"path":  s.path,
	})
	return nil
}

// Header renders cookies as a Cookie request header value.
func Header(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// normalize converts a raw browser record to the exported shape. Exported
// cookies are always marked secure since the service is HTTPS-only.
func normalize(name, value, host, path string) Cookie {
	if path == "" {
		path = "/"
	}
	return Cookie{
		Name:     name,
		Value:    value,
		Domain:   strings.TrimPrefix(host, "."),
		Path:     path,
		HTTPOnly: false,
		Secure:   true,
	}
}

func matchesDomain(host, domain string) bool {
	return domain != "" && strings.Contains(strings.ToLower(host), strings.ToLower(domain))
}

// FilterDomain keeps the cookies scoped to domain.
func FilterDomain(cs []Cookie, domain string) []Cookie {
	out := make([]Cookie, 0, len(cs))
	for _, c := range cs {
		if matchesDomain(c.Domain, domain) {
			out = append(out, c)
		}
	}
	return out
}
