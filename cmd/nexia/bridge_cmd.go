package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexia-labs/nexia/pkg/bridge"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/transport"
	"github.com/spf13/cobra"
)

const probeTimeout = 20 * time.Second

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Send a question to Claude through the session bridge",
		Long: "Ask tries, in order: an existing browser session, persisted cookies, " +
			"a configured API key, and finally opening the service for you. It " +
			"always prints an answer or guidance.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			answer, err := withSpinner(cmd.Context(), a.stderr, "Asking Claude...", func(ctx context.Context) string {
				return e.Ask(ctx, question)
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				st := e.Bridge.Status()
				return a.printJSON(map[string]interface{}{
					"question": question,
					"answer":   answer,
					"strategy": st.LastStrategy,
					"state":    st.State,
				})
			}
			fmt.Fprintln(a.stdout, answer)
			return nil
		},
	}
}

func newBridgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Inspect and prepare the Claude session bridge",
	}

	var probe bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show bridge state and whether a session is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			st := e.Bridge.Status()
			prev := e.State.Snapshot()
			out := map[string]interface{}{
				"status":     st,
				"strategies": e.Bridge.Strategies(),
				"previous":   prev,
			}
			var (
				probeRes transport.ProbeResult
				probeErr error
			)
			if probe {
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				probeRes, probeErr = e.Bridge.Probe(ctx)
				cancel()
				if probeErr != nil {
					out["probe_error"] = probeErr.Error()
				} else {
					out["probe"] = probeRes
				}
			}
			if a.jsonOutput {
				return a.printJSON(out)
			}

			fmt.Fprintln(a.stdout, styleTitle.Render(logo+" Session bridge"))
			fmt.Fprintln(a.stdout, kv("Available", yesNo(st.Available)))
			fmt.Fprintln(a.stdout, kv("Connected", yesNo(st.Connected)))
			fmt.Fprintln(a.stdout, kv("State", st.State))
			if st.LastStrategy != "" {
				fmt.Fprintln(a.stdout, kv("Last strategy", st.LastStrategy))
			} else if prev.LastStrategy != "" {
				fmt.Fprintln(a.stdout, kv("Last strategy", fmt.Sprintf("%s %s", prev.LastStrategy,
					styleDim.Render("("+prev.LastAskAt.Local().Format(time.DateTime)+", "+prev.BridgeState+")"))))
			}
			fmt.Fprintln(a.stdout, kv("Strategies", strings.Join(e.Bridge.Strategies(), " → ")))
			fmt.Fprintln(a.stdout, kv("Cookie file", st.CookieFile))
			if probe {
				switch {
				case errors.Is(probeErr, cookies.ErrNoCookies):
					fmt.Fprintln(a.stdout, kv("Probe", styleWarn.Render("no saved cookies")))
				case probeErr != nil:
					fmt.Fprintln(a.stdout, kv("Probe", styleErr.Render(probeErr.Error())))
				case probeRes.Authenticated:
					fmt.Fprintln(a.stdout, kv("Probe", styleOK.Render(fmt.Sprintf("authenticated (HTTP %d)", probeRes.StatusCode))))
				default:
					msg := fmt.Sprintf("session rejected (HTTP %d)", probeRes.StatusCode)
					if probeRes.Location != "" {
						msg += " → " + probeRes.Location
					}
					fmt.Fprintln(a.stdout, kv("Probe", styleWarn.Render(msg)))
				}
			}
			return nil
		},
	}
	status.Flags().BoolVar(&probe, "probe", false, "Check saved cookies against the service over HTTP")

	setup := &cobra.Command{
		Use:   "setup",
		Short: "Establish a browser session, opening the login page if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			err = e.Bridge.Setup(cmd.Context())
			switch {
			case err == nil:
				fmt.Fprintln(a.stdout, styleOK.Render("✓")+" Session ready")
				return nil
			case errors.Is(err, bridge.ErrLoginRequired):
				fmt.Fprintln(a.stdout, styleWarn.Render("!")+" Log in to the service in the opened browser window, then run:")
				fmt.Fprintln(a.stdout, "  "+cliName+" cookies extract")
				return exitCodeError{code: 2}
			default:
				return err
			}
		},
	}

	cmd.AddCommand(status, setup)
	return cmd
}
