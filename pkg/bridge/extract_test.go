package bridge

import (
	"errors"
	"testing"
)

func TestLineExtractor(t *testing.T) {
	tests := []struct {
		name     string
		ex       LineExtractor
		page     string
		question string
		want     string
		wantErr  error
	}{
		{
			name:     "reply after echoed question",
			ex:       DirectExtractor,
			page:     "Sidebar\nwhat is the capital of france?\nok\nThe capital of France is Paris.",
			question: "What is the capital of France?",
			want:     "The capital of France is Paris.",
		},
		{
			name:     "short lines skipped",
			ex:       DirectExtractor,
			page:     "Explain goroutines briefly\n\n  tiny  \nGoroutines are lightweight threads managed by the Go runtime.",
			question: "Explain goroutines briefly",
			want:     "Goroutines are lightweight threads managed by the Go runtime.",
		},
		{
			name:     "reply outside window",
			ex:       LineExtractor{Prefix: 5, Window: 2, CaseInsensitive: true},
			page:     "hello world\na\nb\nthis line is long enough",
			question: "hello world",
			wantErr:  ErrNotExtracted,
		},
		{
			name:     "question never echoed",
			ex:       CookieExtractor,
			page:     "Welcome back\nStart a new chat to begin working",
			question: "Tell me a story about a lighthouse keeper",
			wantErr:  ErrNotExtracted,
		},
		{
			name:     "case sensitive miss",
			ex:       LineExtractor{Prefix: 5, Window: 3},
			page:     "HELLO THERE\nA reasonably long reply line",
			question: "hello there",
			wantErr:  ErrNotExtracted,
		},
		{
			name:     "later echo wins when first has no reply",
			ex:       LineExtractor{Prefix: 4, Window: 1, CaseInsensitive: true},
			page:     "ping me\nno\nping me\nthis is the reply",
			question: "ping me",
			want:     "this is the reply",
		},
		{
			name:     "multibyte prefix",
			ex:       LineExtractor{Prefix: 3, Window: 2, CaseInsensitive: true},
			page:     "Ça va bien?\nTrès bien, merci!",
			question: "Ça va bien?",
			want:     "Très bien, merci!",
		},
		{
			name:     "empty question",
			ex:       DirectExtractor,
			page:     "anything",
			question: "  ",
			wantErr:  ErrNotExtracted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ex.Extract(tt.page, tt.question)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunePrefix(t *testing.T) {
	if got := runePrefix("héllo", 2); got != "hé" {
		t.Errorf("runePrefix = %q", got)
	}
	if got := runePrefix("ab", 5); got != "ab" {
		t.Errorf("runePrefix = %q", got)
	}
}
