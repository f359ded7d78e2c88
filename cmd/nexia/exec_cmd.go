package main

import (
	"fmt"
	"strings"

	"github.com/nexia-labs/nexia/pkg/shell"
	"github.com/spf13/cobra"
)

// printResult writes a command result and converts failures into an exit
// code for main.
func (a *app) printResult(res shell.ExecutionResult) error {
	if a.jsonOutput {
		if err := a.printJSON(res); err != nil {
			return err
		}
	} else {
		if res.Stdout != "" {
			fmt.Fprint(a.stdout, res.Stdout)
			if !strings.HasSuffix(res.Stdout, "\n") {
				fmt.Fprintln(a.stdout)
			}
		}
		if res.Stderr != "" {
			msg := strings.TrimRight(res.Stderr, "\n")
			if res.Kind != shell.FailureNone && res.Kind != shell.FailureExit {
				msg = styleErr.Render(string(res.Kind)+":") + " " + msg
			}
			fmt.Fprintln(a.stderr, msg)
		}
	}
	if res.Succeeded() {
		return nil
	}
	code := res.ExitCode
	if code == 0 {
		code = 1
	}
	return exitCodeError{code: code}
}

func newExecCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "exec <program> [args...]",
		Short: "Run an allow-listed program",
		Long: "Run a single program under the command policy. Arguments after the " +
			"program name are passed through untouched; no shell is involved.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			res := e.Shell.Execute(cmd.Context(), shell.CommandSpec{
				Program:    args[0],
				Args:       args[1:],
				WorkingDir: dir,
			})
			return a.printResult(res)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory (default: tracked directory)")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newCdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cd [dir]",
		Short: "Resolve and validate a directory change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			return a.printResult(e.Shell.Execute(cmd.Context(), shell.CommandSpec{Program: "cd", Args: args}))
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show host information gathered through the command policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			info := e.Shell.SystemInfo(cmd.Context())
			if a.jsonOutput {
				return a.printJSON(info)
			}
			fmt.Fprintln(a.stdout, styleTitle.Render(logo+" System"))
			fmt.Fprintln(a.stdout, kv("Directory", info.CurrentDir))
			if info.System != "" {
				fmt.Fprintln(a.stdout, kv("System", info.System))
			}
			if info.DiskUsage != "" {
				fmt.Fprintln(a.stdout, stylePanel.Render(strings.TrimRight(info.DiskUsage, "\n")))
			}
			if info.Memory != "" {
				fmt.Fprintln(a.stdout, stylePanel.Render(strings.TrimRight(info.Memory, "\n")))
			}
			fmt.Fprintln(a.stdout, kv("Allowed", strings.Join(info.AllowedCommands, " ")))
			return nil
		},
	}
}

func newPsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List running processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			return a.printResult(e.Shell.ListProcesses(cmd.Context()))
		},
	}
}

func newAssistantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assistant [project-dir]",
		Short: "Launch the claude CLI in a project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return a.printResult(e.Shell.StartAssistantSession(cmd.Context(), dir))
		},
	}
}

func newPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Show the active command allow and block lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			p := e.Shell.Policy()
			if a.jsonOutput {
				return a.printJSON(map[string][]string{
					"allowed": p.Allowed(),
					"blocked": p.Blocked(),
				})
			}
			fmt.Fprintln(a.stdout, kv("Allowed", strings.Join(p.Allowed(), " ")))
			fmt.Fprintln(a.stdout, kv("Blocked", strings.Join(p.Blocked(), " ")))
			if path := e.Config.Shell.PolicyFile; path != "" {
				fmt.Fprintln(a.stdout, styleDim.Render("from "+path))
			}
			return nil
		},
	}
}
