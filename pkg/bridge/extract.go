package bridge

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrNotExtracted means the page was read but no reply could be located.
// Delivery may still have succeeded.
var ErrNotExtracted = errors.New("could not extract a response from the page")

// Extractor pulls the reply to question out of a page's visible text.
type Extractor interface {
	Extract(pageText, question string) (string, error)
}

type ExtractorFunc func(pageText, question string) (string, error)

func (f ExtractorFunc) Extract(pageText, question string) (string, error) {
	return f(pageText, question)
}

// LineExtractor finds the line that echoes the first Prefix characters of
// the question and returns the first following line, within Window lines,
// that is longer than Prefix characters once trimmed. The page layout is
// not under our control, so this is a best guess.
type LineExtractor struct {
	Prefix          int
	Window          int
	CaseInsensitive bool
}

var (
	// DirectExtractor is tuned for a reused interactive session.
	DirectExtractor = LineExtractor{Prefix: 15, Window: 7, CaseInsensitive: true}
	// CookieExtractor is tuned for a replayed cookie session.
	CookieExtractor = LineExtractor{Prefix: 20, Window: 9, CaseInsensitive: true}
)

func (e LineExtractor) Extract(pageText, question string) (string, error) {
	needle := runePrefix(strings.TrimSpace(question), e.Prefix)
	if needle == "" {
		return "", ErrNotExtracted
	}
	if e.CaseInsensitive {
		needle = strings.ToLower(needle)
	}

	lines := strings.Split(pageText, "\n")
	for i, line := range lines {
		if e.CaseInsensitive {
			line = strings.ToLower(line)
		}
		if !strings.Contains(line, needle) {
			continue
		}
		end := min(i+1+e.Window, len(lines))
		for j := i + 1; j < end; j++ {
			candidate := strings.TrimSpace(lines[j])
			if utf8.RuneCountInString(candidate) > e.Prefix {
				return candidate, nil
			}
		}
	}
	return "", ErrNotExtracted
}

func runePrefix(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
