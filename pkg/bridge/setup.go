package bridge

import (
	"context"
	"fmt"

	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/logger"
)

// Setup establishes the shared session. Only one setup runs at a time.
// It first looks for an existing login in local browser stores (once per
// bridge lifetime), then verifies the persisted cookies in a headless page
// and keeps that page for the direct strategy. A nil error means the
// bridge is Authenticated.
func (b *Bridge) Setup(ctx context.Context) error {
	b.setupMu.Lock()
	defer b.setupMu.Unlock()

	if b.State() == Authenticated && b.sharedPage() != nil {
		return nil
	}
	b.setState(Connecting)

	ctx, cancel := context.WithTimeout(ctx, b.cfg.SetupTimeout)
	defer cancel()

	b.detectExisting(ctx)

	if b.driver == nil {
		return b.setupFallback(ctx, fmt.Errorf("no browser driver"))
	}
	page, err := b.driver.Open(ctx, browser.OpenOptions{Headless: b.cfg.Headless})
	if err != nil {
		logger.WarnCF("bridge", "Browser launch failed, trying window fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return b.setupFallback(ctx, err)
	}

	if saved, err := b.store.Load(); err != nil {
		logger.WarnCF("bridge", "Could not load cookies", map[string]interface{}{"error": err.Error()})
	} else if len(saved) > 0 {
		if err := page.SetCookies(ctx, saved); err != nil {
			logger.WarnCF("bridge", "Could not inject cookies", map[string]interface{}{"error": err.Error()})
		} else {
			b.setSnapshot(saved)
			logger.InfoC("bridge", "Loaded saved cookies")
		}
	}

	if err := page.Navigate(ctx, b.cfg.ServiceURL); err != nil {
		page.Close()
		b.setState(Degraded)
		return fmt.Errorf("navigate: %w", err)
	}
	if _, err := page.WaitInput(ctx, browser.InputSelectors, b.cfg.DirectTimeout); err != nil {
		loginPage := page.HasAny(ctx, browser.LoginSelectors)
		page.Close()
		b.setState(Degraded)
		if loginPage {
			logger.WarnC("bridge", "Service requires authentication: login page detected")
			return ErrLoginRequired
		}
		logger.WarnC("bridge", "Timed out waiting for the chat input; authentication may be required")
		return fmt.Errorf("%w: %v", ErrNoInput, err)
	}

	if live, err := page.Cookies(ctx); err == nil && len(live) > 0 {
		b.persist(live)
	}

	b.mu.Lock()
	old := b.page
	b.page = page
	b.state = Authenticated
	b.lastStrategy = "setup"
	b.mu.Unlock()
	if old != nil {
		b.pageMu.Lock()
		old.Close()
		b.pageMu.Unlock()
	}
	logger.InfoC("bridge", "Session established")
	return nil
}

// detectExisting runs cookie extraction from local browsers once.
func (b *Bridge) detectExisting(ctx context.Context) {
	b.mu.Lock()
	done := b.checked
	b.checked = true
	b.mu.Unlock()
	if done {
		return
	}
	if b.store.Extract(ctx, b.cfg.CookieSources) {
		logger.InfoC("bridge", "Existing session detected in local browser data")
	}
}

// setupFallback opens the service in the operator's browser. The bridge
// ends Degraded either way; the operator still has to log in.
func (b *Bridge) setupFallback(ctx context.Context, cause error) error {
	b.setState(Degraded)
	if b.opener == nil {
		return fmt.Errorf("setup: %w", cause)
	}
	if err := b.opener.Open(ctx, b.cfg.ServiceURL); err != nil {
		logger.ErrorCF("bridge", "Window fallback failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("setup: %w (window fallback: %v)", cause, err)
	}
	logger.InfoC("bridge", "Service opened in the system browser (fallback mode)")
	return fmt.Errorf("setup: %w; opened %s for manual login", ErrLoginRequired, b.cfg.ServiceURL)
}
