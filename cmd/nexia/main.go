// Nexia - local automation core: guarded shell, git helpers and a
// browser-session bridge to the Claude web app.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nexia-labs/nexia/pkg/config"
	"github.com/nexia-labs/nexia/pkg/engine"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime string
	goVersion string
)

const (
	logo        = "◆"
	displayName = "Nexia"
	cliName     = "nexia"
)

// app carries what every command needs. The engine is built on first use so
// commands like version and config init never touch the browser or audit log.
type app struct {
	configPath string
	jsonOutput bool
	debug      bool

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	engineOpts []engine.Option
	eng        *engine.Engine
}

func newApp() *app {
	return &app{
		configPath: config.DefaultPath(),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		stdin:      os.Stdin,
	}
}

func (a *app) engine() (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Log.Level = "DEBUG"
	}
	e, err := engine.New(cfg, a.engineOpts...)
	if err != nil {
		return nil, err
	}
	a.eng = e
	return e, nil
}

func (a *app) close() {
	if a.eng == nil {
		return
	}
	if err := a.eng.Close(); err != nil {
		logger.WarnCF("cli", "Engine close failed", map[string]interface{}{"error": err.Error()})
	}
	a.eng = nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCodeError makes main exit with a child's status without printing
// anything further.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           cliName,
		Short:         displayName + " - guarded shell, git automation and a Claude session bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetIn(a.stdin)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", a.configPath, "Path to config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print results as JSON")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(
		newVersionCmd(a),
		newExecCmd(a),
		newCdCmd(a),
		newInfoCmd(a),
		newPsCmd(a),
		newAssistantCmd(a),
		newPolicyCmd(a),
		newGitCmd(a),
		newAskCmd(a),
		newBridgeCmd(a),
		newCookiesCmd(a),
		newReplCmd(a),
		newConfigCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "%s %s v%s\n", logo, displayName, version)
			if buildTime != "" {
				fmt.Fprintf(a.stdout, "  Build: %s\n", buildTime)
			}
			goVer := goVersion
			if goVer == "" {
				goVer = runtime.Version()
			}
			fmt.Fprintf(a.stdout, "  Go: %s\n", goVer)
		},
	}
}

func run(ctx context.Context, a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, newApp(), os.Args[1:])
	stop()
	if err == nil {
		return
	}
	var ec exitCodeError
	if errors.As(err, &ec) {
		os.Exit(ec.code)
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", styleErr.Render("Error:"), err)
	os.Exit(1)
}
