package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/providers"
)

// fakePage simulates the chat page. loggedIn controls whether the input
// appears; cookies injected via SetCookies can flip it when requireCookie
// is set.
type fakePage struct {
	mu            sync.Mutex
	loggedIn      bool
	requireCookie string
	loginPage     bool
	body          string
	live          []cookies.Cookie
	navErr        error

	injected  []cookies.Cookie
	submitted []string
	closed    int
}

func (p *fakePage) Navigate(context.Context, string) error { return p.navErr }

func (p *fakePage) WaitInput(_ context.Context, selectors []string, _ time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authorized() {
		return selectors[0], nil
	}
	return "", browser.ErrNoMatch
}

func (p *fakePage) authorized() bool {
	if p.loggedIn {
		return true
	}
	if p.requireCookie == "" {
		return false
	}
	for _, c := range p.injected {
		if c.Name == p.requireCookie {
			return true
		}
	}
	return false
}

func (p *fakePage) Submit(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, text)
	return nil
}

func (p *fakePage) BodyText(context.Context) (string, error) { return p.body, nil }

func (p *fakePage) HasAny(context.Context, []string) bool { return p.loginPage }

func (p *fakePage) SetCookies(_ context.Context, cs []cookies.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.injected = append(p.injected, cs...)
	return nil
}

func (p *fakePage) Cookies(context.Context) ([]cookies.Cookie, error) { return p.live, nil }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeDriver struct {
	mu      sync.Mutex
	pages   []*fakePage
	newPage func(opts browser.OpenOptions) (*fakePage, error)
	opens   []browser.OpenOptions
}

func (d *fakeDriver) Open(_ context.Context, opts browser.OpenOptions) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, opts)
	p, err := d.newPage(opts)
	if err != nil {
		return nil, err
	}
	d.pages = append(d.pages, p)
	return p, nil
}

type fakeOpener struct {
	err    error
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.opened = append(o.opened, url)
	return o.err
}

type fakeAPI struct {
	text string
	err  error
}

func (a fakeAPI) Name() string { return "anthropic" }

func (a fakeAPI) Ask(context.Context, string) (*providers.Answer, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &providers.Answer{Text: a.text}, nil
}

var errLaunch = errors.New("chrome not found")

func noSleep(context.Context, time.Duration) error { return nil }

func newTestStore(t *testing.T) *cookies.Store {
	t.Helper()
	return cookies.NewStore(filepath.Join(t.TempDir(), "claude_cookies.json"), "claude.ai")
}

func testConfig(t *testing.T) Config {
	return Config{
		ServiceURL:    "https://claude.ai",
		Headless:      true,
		CookieSources: []string{filepath.Join(t.TempDir(), "none", "Cookies")},
	}
}
