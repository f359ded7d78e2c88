package cookies

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexia-labs/nexia/pkg/logger"
)

// Format identifies how a browser cookie source is stored.
type Format string

const (
	FormatChromium Format = "chromium"
	FormatFirefox  Format = "firefox"
	FormatSafari   Format = "safari"
	FormatUnknown  Format = ""
)

// DetectFormat picks a reader from the file name.
func DetectFormat(path string) Format {
	base := filepath.Base(path)
	switch {
	case base == "Cookies":
		return FormatChromium
	case strings.EqualFold(base, "cookies.sqlite"):
		return FormatFirefox
	case strings.HasSuffix(base, ".binarycookies"):
		return FormatSafari
	default:
		return FormatUnknown
	}
}

// DefaultSources lists known browser cookie locations under home, in search
// order. Firefox profile directories are globbed.
func DefaultSources(home string) []string {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	sources := []string{
		filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "Default", "Cookies"),
		filepath.Join(home, "Library", "Cookies", "Cookies.binarycookies"),
		filepath.Join(home, "Library", "Containers", "com.apple.Safari", "Data", "Library", "Cookies", "Cookies.binarycookies"),
		filepath.Join(home, "Library", "Application Support", "Microsoft Edge", "Default", "Cookies"),
		filepath.Join(home, ".config", "google-chrome", "Default", "Cookies"),
		filepath.Join(home, ".config", "chromium", "Default", "Cookies"),
		filepath.Join(home, ".config", "microsoft-edge", "Default", "Cookies"),
	}
	for _, pattern := range []string{
		filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
		filepath.Join(home, ".mozilla", "firefox", "*", "cookies.sqlite"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		sources = append(sources, matches...)
	}
	return sources
}

// ReadSource reads the cookies for domain from one browser store.
func ReadSource(ctx context.Context, path, domain string) ([]Cookie, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	var (
		out []Cookie
		err error
	)
	switch DetectFormat(path) {
	case FormatChromium:
		out, err = readChromium(ctx, path, domain)
	case FormatFirefox:
		out, err = readFirefox(ctx, path, domain)
	case FormatSafari:
		out, err = readSafari(path, domain)
	default:
		return nil, fmt.Errorf("unsupported cookie source %s", path)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoCookies
	}
	return out, nil
}

// Extract searches candidates (DefaultSources when empty) and persists the
// first non-empty result. Unreadable sources are skipped. It reports whether
// cookies were found and saved.
func (s *Store) Extract(ctx context.Context, candidates []string) bool {
	if len(candidates) == 0 {
		candidates = DefaultSources("")
	}
	for _, path := range candidates {
		if ctx.Err() != nil {
			return false
		}
		found, err := ReadSource(ctx, path, s.domain)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrNoCookies) {
				logger.DebugCF("cookies", "Could not read cookie source", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
			continue
		}
		if err := s.Save(found); err != nil {
			logger.WarnCF("cookies", "Could not persist extracted cookies", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		logger.InfoCF("cookies", "Extracted session cookies", map[string]interface{}{
			"count":  len(found),
			"source": filepath.Base(filepath.Dir(path)),
			"format": string(DetectFormat(path)),
		})
		return true
	}
	return false
}
