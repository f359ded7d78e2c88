// Package browser drives a Chromium instance for the session bridge. The
// bridge only sees the Driver and Page interfaces; Chrome implements them
// with chromedp over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/nexia-labs/nexia/pkg/cookies"
)

var ErrNoMatch = errors.New("no element matched")

// InputSelectors locate the chat input, most specific first.
var InputSelectors = []string{
	`textarea[placeholder*="message" i]`,
	`div[contenteditable="true"]`,
	`textarea`,
}

// LoginSelectors indicate the service is showing its sign-in page.
var LoginSelectors = []string{
	`input[type="email"]`,
	`[data-testid="login"]`,
	`a[href*="/login"]`,
}

type OpenOptions struct {
	Headless bool
	// Attach reuses a running browser through its DevTools endpoint instead
	// of launching one.
	Attach bool
}

type Driver interface {
	Open(ctx context.Context, opts OpenOptions) (Page, error)
}

// Page is one browser tab. Close releases the tab and, for launched
// browsers, the process; it is safe to call more than once.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitInput waits up to timeout for any of selectors and returns the
	// first one present.
	WaitInput(ctx context.Context, selectors []string, timeout time.Duration) (string, error)
	Submit(ctx context.Context, selector, text string) error
	BodyText(ctx context.Context) (string, error)
	HasAny(ctx context.Context, selectors []string) bool
	SetCookies(ctx context.Context, cs []cookies.Cookie) error
	Cookies(ctx context.Context) ([]cookies.Cookie, error)
	Close() error
}
