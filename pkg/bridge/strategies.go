package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/nexia-labs/nexia/pkg/providers"
)

const (
	StrategyDirect       = "direct"
	StrategyCookies      = "cookies"
	StrategyAPI          = "api"
	StrategyGuided       = "guided"
	StrategyAuthRequired = "auth-required"
)

// scrape holds the per-strategy timings of the submit/scrape sequence.
type scrape struct {
	label     string
	inputWait time.Duration
	settle    time.Duration
	extractor Extractor
}

// submitAndScrape types question into the page's chat input, waits for the
// page to settle and extracts the reply. An extraction miss still counts as
// delivered.
func (b *Bridge) submitAndScrape(ctx context.Context, page browser.Page, question string, sc scrape) Outcome {
	if err := page.Navigate(ctx, b.cfg.ServiceURL); err != nil {
		return Failed(fmt.Errorf("navigate: %w", err))
	}
	selector, err := page.WaitInput(ctx, browser.InputSelectors, sc.inputWait)
	if err != nil {
		if page.HasAny(ctx, browser.LoginSelectors) {
			return Failed(ErrLoginRequired)
		}
		return Failed(fmt.Errorf("%w: %v", ErrNoInput, err))
	}
	if err := page.Submit(ctx, selector, question); err != nil {
		return Failed(fmt.Errorf("submit: %w", err))
	}
	if err := b.sleep(ctx, sc.settle); err != nil {
		return Failed(err)
	}

	out := Outcome{OK: true, Authenticated: true}
	if live, err := page.Cookies(ctx); err == nil {
		out.Cookies = cookies.FilterDomain(live, b.store.Domain())
	} else {
		logger.DebugCF("bridge", "Could not read session cookies", map[string]interface{}{
			"strategy": sc.label,
			"error":    err.Error(),
		})
	}

	text, err := page.BodyText(ctx)
	if err != nil {
		out.Answer = deliveredMessage(b.cfg.ServiceURL, question)
		return out
	}
	reply, err := sc.extractor.Extract(text, question)
	if err != nil {
		out.Answer = deliveredMessage(b.cfg.ServiceURL, question)
		return out
	}
	out.Answer = extractedMessage(sc.label, reply)
	return out
}

// directStrategy reuses an existing authenticated context: the page kept
// by Setup, a running browser over DevTools, or a fresh headless launch
// with the default profile.
type directStrategy struct{ b *Bridge }

func (s directStrategy) Name() string { return StrategyDirect }

func (s directStrategy) Try(ctx context.Context, question string) Outcome {
	b := s.b
	ctx, cancel := context.WithTimeout(ctx, b.cfg.DirectTimeout)
	defer cancel()

	sc := scrape{label: "direct session", inputWait: 3 * time.Second, settle: b.cfg.DirectSettle, extractor: b.directExtractor}

	if page := b.sharedPage(); page != nil {
		b.pageMu.Lock()
		defer b.pageMu.Unlock()
		return b.submitAndScrape(ctx, page, question, sc)
	}

	page, err := b.driver.Open(ctx, browser.OpenOptions{Headless: b.cfg.Headless, Attach: b.cfg.Attach})
	if err != nil {
		return Failed(fmt.Errorf("open browser: %w", err))
	}
	defer page.Close()
	return b.submitAndScrape(ctx, page, question, sc)
}

// cookieStrategy replays persisted cookies into a fresh headless session.
type cookieStrategy struct{ b *Bridge }

func (s cookieStrategy) Name() string { return StrategyCookies }

func (s cookieStrategy) Try(ctx context.Context, question string) Outcome {
	b := s.b
	saved, err := b.store.Load()
	if err != nil {
		return Failed(err)
	}
	if len(saved) == 0 {
		return Failed(cookies.ErrNoCookies)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CookieTimeout)
	defer cancel()

	page, err := b.driver.Open(ctx, browser.OpenOptions{Headless: true})
	if err != nil {
		return Failed(fmt.Errorf("open browser: %w", err))
	}
	defer page.Close()

	if err := page.SetCookies(ctx, saved); err != nil {
		return Failed(fmt.Errorf("inject cookies: %w", err))
	}
	b.setSnapshot(saved)
	return b.submitAndScrape(ctx, page, question, scrape{
		label:     "saved session",
		inputWait: 5 * time.Second,
		settle:    b.cfg.CookieSettle,
		extractor: b.cookieExtractor,
	})
}

// apiStrategy asks through an LLM API key when one is configured.
type apiStrategy struct {
	b   *Bridge
	api providers.Asker
}

func (s apiStrategy) Name() string { return StrategyAPI }

func (s apiStrategy) Try(ctx context.Context, question string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.b.cfg.APITimeout)
	defer cancel()
	answer, err := s.api.Ask(ctx, question)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(apiMessage(s.api.Name(), answer.Text))
}

// guidedStrategy opens the service for the operator and explains what to
// do. It does not claim the question was delivered.
type guidedStrategy struct{ b *Bridge }

func (s guidedStrategy) Name() string { return StrategyGuided }

func (s guidedStrategy) Try(ctx context.Context, question string) Outcome {
	b := s.b
	if b.opener == nil {
		return Failed(errors.New("no window opener available"))
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.GuidedTimeout)
	defer cancel()
	if err := b.opener.Open(ctx, b.cfg.ServiceURL); err != nil {
		return Failed(fmt.Errorf("open service window: %w", err))
	}
	return Succeeded(guidedMessage(b.cfg.ServiceURL, question))
}

type authRequired struct{ serviceURL string }

func (authRequired) Name() string { return StrategyAuthRequired }

func (t authRequired) Answer(string) string {
	return authRequiredMessage(t.serviceURL)
}
