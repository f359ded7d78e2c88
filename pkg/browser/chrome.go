package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/logger"
)

// Chrome launches or attaches to Chromium through chromedp.
type Chrome struct {
	ExecPath    string
	DevToolsURL string
}

func (c *Chrome) Open(ctx context.Context, opts OpenOptions) (Page, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.Attach {
		if c.DevToolsURL == "" {
			return nil, fmt.Errorf("attach requested but no DevTools URL configured")
		}
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), c.DevToolsURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if c.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(c.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	p := &chromePage{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// The first Run starts the browser (or attaches) and opens the tab.
	if err := p.run(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.DebugCF("browser", "Browser tab opened", map[string]interface{}{
		"headless": opts.Headless,
		"attach":   opts.Attach,
	})
	return p, nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// run executes actions on the tab bounded by the caller's ctx as well as the
// tab's own lifetime.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) WaitInput(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(waitCtx, chromedp.WaitVisible(strings.Join(selectors, ", "), chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	for _, sel := range selectors {
		if p.present(ctx, sel) {
			return sel, nil
		}
	}
	return "", ErrNoMatch
}

func (p *chromePage) present(ctx context.Context, selector string) bool {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return false
	}
	return len(nodes) > 0
}

func (p *chromePage) Submit(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
		chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery),
	)
}

func (p *chromePage) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(`document.body.innerText`, &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *chromePage) HasAny(ctx context.Context, selectors []string) bool {
	for _, sel := range selectors {
		if p.present(ctx, sel) {
			return true
		}
	}
	return false
}

func (p *chromePage) SetCookies(ctx context.Context, cs []cookies.Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cs {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (p *chromePage) Cookies(ctx context.Context) ([]cookies.Cookie, error) {
	var out []cookies.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range got {
			out = append(out, cookies.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   strings.TrimPrefix(c.Domain, "."),
				Path:     c.Path,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			})
		}
		return nil
	}))
	return out, err
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
