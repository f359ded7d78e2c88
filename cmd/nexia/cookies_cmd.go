package main

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/nexia-labs/nexia/pkg/cookies"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/spf13/cobra"
)

func newCookiesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the persisted service session cookies",
	}

	extract := &cobra.Command{
		Use:   "extract [cookie-db...]",
		Short: "Copy session cookies from a local browser profile",
		Long: "Reads Chrome, Edge, Firefox or Safari cookie stores (or the given " +
			"files) and saves the first non-empty match for the service domain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			if !e.Cookies.Extract(cmd.Context(), args) {
				fmt.Fprintln(a.stderr, styleWarn.Render("!")+" No session cookies found for "+e.Cookies.Domain())
				return exitCodeError{code: 1}
			}
			saved, err := e.Cookies.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s Saved %d cookies to %s\n", styleOK.Render("✓"), len(saved), e.Cookies.Path())
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List persisted cookies with values masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			saved, err := e.Cookies.Load()
			if err != nil {
				return err
			}
			masked := make([]cookies.Cookie, len(saved))
			for i, c := range saved {
				c.Value = maskValue(c.Value)
				masked[i] = c
			}
			if a.jsonOutput {
				return a.printJSON(masked)
			}
			if len(masked) == 0 {
				fmt.Fprintln(a.stdout, styleDim.Render("no cookies saved at "+e.Cookies.Path()))
				return nil
			}
			for _, c := range masked {
				fmt.Fprintf(a.stdout, "%s %s %s\n", styleKey.Render(c.Name), c.Value, styleDim.Render(c.Domain+c.Path))
			}
			return nil
		},
	}

	var schedule string
	var once bool
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Re-extract cookies on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			expr := schedule
			if expr == "" {
				expr = e.Config.Bridge.RefreshCron
			}
			if !gronx.New().IsValid(expr) {
				return fmt.Errorf("invalid refresh schedule %q", expr)
			}
			refreshOnce := func(ctx context.Context) {
				ok := e.RefreshCookies(ctx)
				logger.InfoCF("cookies", "Scheduled refresh finished", map[string]interface{}{
					"found": ok,
				})
			}
			if once {
				refreshOnce(cmd.Context())
				return nil
			}
			fmt.Fprintf(a.stdout, "%s Refreshing cookies on %q (Ctrl+C to stop)\n", styleTitle.Render(logo), expr)
			return refreshLoop(cmd.Context(), expr, time.Now, refreshOnce)
		},
	}
	refresh.Flags().StringVar(&schedule, "cron", "", "Cron expression (default: bridge.refresh_cron)")
	refresh.Flags().BoolVar(&once, "once", false, "Refresh once and exit")

	cmd.AddCommand(extract, show, refresh)
	return cmd
}

// nextRefresh returns the first tick of expr strictly after from.
func nextRefresh(expr string, from time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, from, false)
}

// refreshLoop runs fn at every tick of expr until ctx is done. A canceled
// context ends the loop without error.
func refreshLoop(ctx context.Context, expr string, now func() time.Time, fn func(context.Context)) error {
	for {
		next, err := nextRefresh(expr, now())
		if err != nil {
			return fmt.Errorf("schedule %q: %w", expr, err)
		}
		logger.DebugCF("cookies", "Next refresh scheduled", map[string]interface{}{
			"at": next.Format(time.RFC3339),
		})
		timer := time.NewTimer(next.Sub(now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		fn(ctx)
	}
}

func maskValue(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return v[:4] + "****"
}
