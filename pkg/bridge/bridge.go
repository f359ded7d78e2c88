// Package bridge connects to a chat service that is only reachable through
// a logged-in browser. Ask walks an ordered list of strategies and always
// returns prose, falling back to operator instructions when nothing works.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/nexia-labs/nexia/pkg/providers"
	"github.com/nexia-labs/nexia/pkg/transport"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Authenticated
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Config struct {
	ServiceURL string
	Headless   bool
	// Attach makes the direct strategy reuse a running browser over its
	// DevTools endpoint.
	Attach bool

	DirectTimeout time.Duration
	CookieTimeout time.Duration
	GuidedTimeout time.Duration
	APITimeout    time.Duration
	SetupTimeout  time.Duration

	// Settle delays after submitting, before the page is read.
	DirectSettle time.Duration
	CookieSettle time.Duration

	// CookieSources overrides the browser stores searched by Setup.
	CookieSources []string
}

func (c *Config) setDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = "https://claude.ai"
	}
	if c.DirectTimeout <= 0 {
		c.DirectTimeout = 10 * time.Second
	}
	if c.CookieTimeout <= 0 {
		c.CookieTimeout = 15 * time.Second
	}
	if c.GuidedTimeout <= 0 {
		c.GuidedTimeout = 5 * time.Second
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 60 * time.Second
	}
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = 30 * time.Second
	}
	if c.DirectSettle <= 0 {
		c.DirectSettle = 4 * time.Second
	}
	if c.CookieSettle <= 0 {
		c.CookieSettle = 3 * time.Second
	}
}

// Deps are the bridge's collaborators. Store is required; the rest are
// optional and disable the strategies that need them.
type Deps struct {
	Driver      browser.Driver
	Opener      browser.Opener
	Store       *cookies.Store
	API         providers.Asker
	Hooks       *hooks.Dispatcher
	ProbeClient *http.Client

	DirectExtractor Extractor
	CookieExtractor Extractor
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Status struct {
	Available    bool   `json:"available"`
	Connected    bool   `json:"connected"`
	State        State  `json:"state"`
	LastStrategy string `json:"last_strategy,omitempty"`
	CookieFile   string `json:"cookie_file"`
}

// Bridge owns the session with the external service.
//
// Setup is serialized by setupMu and may leave one verified page open; the
// direct strategy reuses that page under pageMu. Without it, every Ask
// opens its own short-lived browser session.
type Bridge struct {
	cfg    Config
	driver browser.Driver
	opener browser.Opener
	store  *cookies.Store
	hooks  *hooks.Dispatcher
	probe  *http.Client
	sleep  func(ctx context.Context, d time.Duration) error

	directExtractor Extractor
	cookieExtractor Extractor

	strategies []Strategy
	terminal   Terminal

	setupMu sync.Mutex
	pageMu  sync.Mutex

	mu           sync.RWMutex
	state        State
	lastStrategy string
	snapshot     []cookies.Cookie
	page         browser.Page
	checked      bool
}

func New(cfg Config, deps Deps) *Bridge {
	cfg.setDefaults()
	b := &Bridge{
		cfg:             cfg,
		driver:          deps.Driver,
		opener:          deps.Opener,
		store:           deps.Store,
		hooks:           deps.Hooks,
		probe:           deps.ProbeClient,
		sleep:           deps.Sleep,
		directExtractor: deps.DirectExtractor,
		cookieExtractor: deps.CookieExtractor,
		terminal:        authRequired{serviceURL: cfg.ServiceURL},
		state:           Disconnected,
	}
	if b.sleep == nil {
		b.sleep = sleepCtx
	}
	if b.directExtractor == nil {
		b.directExtractor = DirectExtractor
	}
	if b.cookieExtractor == nil {
		b.cookieExtractor = CookieExtractor
	}

	if b.driver != nil {
		b.strategies = append(b.strategies, directStrategy{b: b}, cookieStrategy{b: b})
	}
	if deps.API != nil {
		b.strategies = append(b.strategies, apiStrategy{b: b, api: deps.API})
	}
	b.strategies = append(b.strategies, guidedStrategy{b: b})
	return b
}

// Strategies lists the strategy names in the order Ask tries them,
// terminal last.
func (b *Bridge) Strategies() []string {
	names := make([]string, 0, len(b.strategies)+1)
	for _, s := range b.strategies {
		names = append(names, s.Name())
	}
	return append(names, b.terminal.Name())
}

// Ask always returns a non-empty answer and never panics.
func (b *Bridge) Ask(ctx context.Context, question string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("bridge", "Ask panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			answer = b.terminal.Answer(question)
			b.record(StrategyAuthRequired, Outcome{})
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return emptyQuestionMessage
	}

	b.transition(Disconnected, Connecting)

	for _, s := range b.strategies {
		if ctx.Err() != nil {
			logger.WarnCF("bridge", "Ask cancelled before all strategies ran", map[string]interface{}{
				"next_strategy": s.Name(),
			})
			break
		}
		out := b.instrumented(ctx, s, question)
		if out.OK {
			b.record(s.Name(), out)
			return out.Answer
		}
		logger.InfoCF("bridge", "Strategy failed, falling back", map[string]interface{}{
			"strategy": s.Name(),
			"reason":   out.Reason(),
		})
	}

	b.record(b.terminal.Name(), Outcome{})
	return b.terminal.Answer(question)
}

func (b *Bridge) instrumented(ctx context.Context, s Strategy, question string) Outcome {
	var out Outcome
	data := hooks.Context{
		EventID:   uuid.NewString(),
		Component: "bridge",
		Operation: "ask",
		Strategy:  s.Name(),
	}
	b.hooks.Instrument(ctx, hooks.EventBeforeStrategy, hooks.EventAfterStrategy, data,
		func(ctx context.Context) hooks.Context {
			out = tryStrategy(ctx, s, question)
			result := data
			if !out.OK {
				result.ErrorMessage = out.Reason()
			}
			result.Metadata = map[string]any{"ok": out.OK, "authenticated": out.Authenticated}
			return result
		})
	return out
}

// record updates state after an answer. An authenticated answer persists
// its session cookies.
func (b *Bridge) record(strategy string, out Outcome) {
	b.mu.Lock()
	b.lastStrategy = strategy
	if out.Authenticated {
		b.state = Authenticated
	} else {
		b.state = Degraded
	}
	b.mu.Unlock()

	if out.Authenticated && len(out.Cookies) > 0 {
		b.persist(out.Cookies)
	}
}

func (b *Bridge) persist(cs []cookies.Cookie) {
	for i := range cs {
		cs[i].Secure = true
	}
	if err := b.store.Save(cs); err != nil {
		logger.WarnCF("bridge", "Could not save session cookies", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	b.setSnapshot(cs)
}

func (b *Bridge) transition(from, to State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == from {
		b.state = to
	}
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Bridge) setSnapshot(cs []cookies.Cookie) {
	cp := make([]cookies.Cookie, len(cs))
	copy(cp, cs)
	b.mu.Lock()
	b.snapshot = cp
	b.mu.Unlock()
}

// Cookies returns the session cookies last loaded or saved.
func (b *Bridge) Cookies() []cookies.Cookie {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp := make([]cookies.Cookie, len(b.snapshot))
	copy(cp, b.snapshot)
	return cp
}

func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Bridge) sharedPage() browser.Page {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.page
}

// Status reports whether the bridge can be used. It is always available
// since Ask falls back; connected means a session was established or a
// cookie file exists.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	st := Status{
		Available:    true,
		State:        b.state,
		LastStrategy: b.lastStrategy,
		CookieFile:   b.store.Path(),
	}
	b.mu.RUnlock()
	st.Connected = st.State == Authenticated || b.store.Exists()
	return st
}

// Probe checks the persisted cookies against the service over HTTP.
func (b *Bridge) Probe(ctx context.Context) (transport.ProbeResult, error) {
	if b.probe == nil {
		return transport.ProbeResult{}, errors.New("no probe client configured")
	}
	saved, err := b.store.Load()
	if err != nil {
		return transport.ProbeResult{}, err
	}
	if len(saved) == 0 {
		return transport.ProbeResult{}, cookies.ErrNoCookies
	}
	return transport.ProbeSession(ctx, b.probe, b.cfg.ServiceURL, cookies.Header(saved))
}

// Close releases the shared page and returns the bridge to Disconnected.
func (b *Bridge) Close() error {
	b.mu.Lock()
	page := b.page
	b.page = nil
	b.state = Disconnected
	b.checked = false
	b.mu.Unlock()
	if page != nil {
		b.pageMu.Lock()
		defer b.pageMu.Unlock()
		return page.Close()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
