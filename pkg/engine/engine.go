// Package engine builds the automation core once from configuration and
// hands the pieces to callers. There is no package-level instance; main
// constructs an Engine and passes it down.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/nexia-labs/nexia/pkg/bridge"
	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/config"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/gitops"
	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/hooks/builtin"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/nexia-labs/nexia/pkg/providers"
	"github.com/nexia-labs/nexia/pkg/shell"
	"github.com/nexia-labs/nexia/pkg/state"
	"github.com/nexia-labs/nexia/pkg/transport"
)

const probeTimeout = 15 * time.Second

type Engine struct {
	Config  *config.Config
	Hooks   *hooks.Dispatcher
	Shell   *shell.Executor
	Git     *gitops.Client
	Cookies *cookies.Store
	Bridge  *bridge.Bridge
	State   *state.Manager

	audit *hooks.JSONLAuditSink
}

type options struct {
	spawner     shell.Spawner
	driver      browser.Driver
	opener      browser.Opener
	api         providers.Asker
	apiSet      bool
	probeClient *http.Client
	skipLogging bool
}

type Option func(*options)

func WithSpawner(s shell.Spawner) Option { return func(o *options) { o.spawner = s } }

func WithDriver(d browser.Driver) Option { return func(o *options) { o.driver = d } }

func WithOpener(op browser.Opener) Option { return func(o *options) { o.opener = op } }

// WithAPI overrides the provider chosen from configured keys; nil disables
// the API strategy.
func WithAPI(a providers.Asker) Option {
	return func(o *options) {
		o.api = a
		o.apiSet = true
	}
}

func WithProbeClient(c *http.Client) Option { return func(o *options) { o.probeClient = c } }

// WithoutLogSetup leaves the global logger untouched.
func WithoutLogSetup() Option { return func(o *options) { o.skipLogging = true } }

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipLogging {
		if err := setupLogging(cfg.Log); err != nil {
			return nil, err
		}
	}

	e := &Engine{Config: cfg}

	if cfg.Audit.Enabled {
		sink, err := hooks.NewJSONLAuditSinkAt(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		e.audit = sink
		e.Hooks = hooks.NewDispatcher(sink, builtin.NewLogHandler())
	} else {
		e.Hooks = hooks.NewDispatcher(nil, builtin.NewLogHandler())
	}

	policy, err := loadPolicy(cfg.Shell.PolicyFile)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Shell = shell.NewExecutor(shell.Options{
		Timeout:  time.Duration(cfg.Shell.TimeoutSeconds) * time.Second,
		HomeDir:  cfg.Shell.HomeDir,
		Policy:   policy,
		Spawner:  o.spawner,
		Hooks:    e.Hooks,
		ExtraEnv: cfg.Shell.Env,
	})
	e.Git = gitops.NewClient(e.Shell, e.Hooks)
	e.Cookies = cookies.NewStore(cfg.Bridge.CookieFile, cfg.Bridge.CookieDomain)
	e.Bridge = newBridge(cfg.Bridge, e.Cookies, e.Hooks, o)
	e.State = state.NewManager(stateFile(cfg.Bridge))

	logger.InfoCF("engine", "Engine ready", map[string]interface{}{
		"home_dir":   e.Shell.CurrentDir(),
		"timeout":    e.Shell.Timeout().String(),
		"strategies": e.Bridge.Strategies(),
		"audit":      cfg.Audit.Enabled,
	})
	return e, nil
}

func newBridge(cfg config.BridgeConfig, store *cookies.Store, d *hooks.Dispatcher, o options) *bridge.Bridge {
	driver := o.driver
	if driver == nil {
		driver = &browser.Chrome{ExecPath: cfg.ChromePath, DevToolsURL: cfg.DevToolsURL}
	}
	guidedTimeout := time.Duration(cfg.GuidedTimeoutSeconds) * time.Second
	opener := o.opener
	if opener == nil {
		opener = browser.NewSystemOpener(guidedTimeout)
	}
	api := o.api
	if !o.apiSet {
		api = providers.New(cfg.AnthropicAPIKey, cfg.OpenAIAPIKey, cfg.APIModel)
	}
	probe := o.probeClient
	if probe == nil {
		c, err := transport.NewH2Client(probeTimeout)
		if err != nil {
			logger.WarnCF("engine", "Session probe unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			probe = c
		}
	}

	deps := bridge.Deps{
		Driver:      driver,
		Opener:      opener,
		Store:       store,
		Hooks:       d,
		ProbeClient: probe,
		API:         api,
	}
	return bridge.New(bridge.Config{
		ServiceURL:    cfg.ServiceURL,
		Headless:      cfg.Headless,
		Attach:        cfg.DevToolsURL != "",
		DirectTimeout: time.Duration(cfg.DirectTimeoutSeconds) * time.Second,
		CookieTimeout: time.Duration(cfg.CookieTimeoutSeconds) * time.Second,
		GuidedTimeout: guidedTimeout,
	}, deps)
}

func setupLogging(cfg config.LogConfig) error {
	if level, ok := logger.ParseLevel(cfg.Level); ok {
		logger.SetLevel(level)
	} else if cfg.Level != "" {
		logger.WarnCF("engine", "Unknown log level, keeping default", map[string]interface{}{"level": cfg.Level})
	}
	if cfg.File != "" {
		if err := logger.EnableFileLogging(cfg.File); err != nil {
			return fmt.Errorf("enable file logging: %w", err)
		}
	}
	return nil
}

// loadPolicy reads the optional policy file. A file without a blocked list
// keeps the default block set.
func loadPolicy(path string) (*shell.Policy, error) {
	if path == "" {
		return shell.DefaultPolicy(), nil
	}
	p, err := config.LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	blocked := p.Blocked
	if len(blocked) == 0 {
		blocked = shell.DefaultPolicy().Blocked()
	}
	logger.InfoCF("engine", "Loaded command policy", map[string]interface{}{
		"path":    path,
		"allowed": len(p.Allowed),
		"blocked": len(blocked),
	})
	return shell.NewPolicy(p.Allowed, blocked), nil
}

func stateFile(cfg config.BridgeConfig) string {
	if cfg.StateFile != "" {
		return cfg.StateFile
	}
	return filepath.Join(filepath.Dir(cfg.CookieFile), "state", "bridge.json")
}

// Ask forwards to the bridge and records how the question was answered.
func (e *Engine) Ask(ctx context.Context, question string) string {
	answer := e.Bridge.Ask(ctx, question)
	st := e.Bridge.Status()
	if strings.TrimSpace(question) == "" || st.LastStrategy == "" {
		return answer
	}
	if err := e.State.RecordAsk(st.LastStrategy, st.State.String()); err != nil {
		logger.WarnCF("engine", "Could not persist bridge state", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return answer
}

// ReloadPolicy swaps the executor's policy from the configured file.
func (e *Engine) ReloadPolicy() error {
	p, err := loadPolicy(e.Config.Shell.PolicyFile)
	if err != nil {
		return err
	}
	e.Shell.SetPolicy(p)
	return nil
}

// RefreshCookies re-extracts session cookies from local browsers.
func (e *Engine) RefreshCookies(ctx context.Context) bool {
	return e.Cookies.Extract(ctx, nil)
}

func (e *Engine) Close() error {
	var err error
	if e.Bridge != nil {
		err = e.Bridge.Close()
	}
	if e.audit != nil {
		e.audit.Close()
		e.audit = nil
	}
	return err
}
