package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nexia-labs/nexia/pkg/gitops"
	"github.com/spf13/cobra"
)

func newGitCmd(a *app) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Git automation on top of the guarded executor",
	}
	cmd.PersistentFlags().StringVarP(&repo, "repo", "C", "", "Repository path (default: tracked directory)")

	// dispatch funnels the action subcommands through Client.Dispatch so the
	// CLI accepts exactly what the action API accepts.
	dispatch := func(cmd *cobra.Command, req gitops.ActionRequest) error {
		e, err := a.engine()
		if err != nil {
			return err
		}
		req.RepoPath = repo
		res, err := e.Git.Dispatch(cmd.Context(), req)
		if err != nil {
			return err
		}
		return a.printResult(res)
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show branch, staged, modified and untracked files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			st, err := e.Git.Status(cmd.Context(), repo)
			if errors.Is(err, gitops.ErrNotRepository) {
				fmt.Fprintln(a.stderr, styleErr.Render("Not a git repository"))
				return exitCodeError{code: 1}
			}
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(st)
			}
			printStatus(a, st)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <file>...",
		Short: "Stage files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, gitops.ActionRequest{Action: gitops.ActionAdd, Files: args})
		},
	}

	var message string
	commit := &cobra.Command{
		Use:   "commit",
		Short: "Commit staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, gitops.ActionRequest{Action: gitops.ActionCommit, Message: message})
		},
	}
	commit.Flags().StringVarP(&message, "message", "m", "", "Commit message")

	var remote, branch string
	remoteCmd := func(action, short string) *cobra.Command {
		c := &cobra.Command{
			Use:   action,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return dispatch(cmd, gitops.ActionRequest{Action: action, Remote: remote, Branch: branch})
			},
		}
		c.Flags().StringVar(&remote, "remote", "origin", "Remote name")
		c.Flags().StringVarP(&branch, "branch", "b", "", "Branch (default: upstream)")
		return c
	}

	var limit int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent commits, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, gitops.ActionRequest{Action: gitops.ActionLog, Limit: limit})
		},
	}
	logCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of commits")

	var staged, stat bool
	diff := &cobra.Command{
		Use:   "diff",
		Short: "Show working tree or staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stat {
				action := gitops.ActionDiff
				if staged {
					action = gitops.ActionDiffStaged
				}
				return dispatch(cmd, gitops.ActionRequest{Action: action})
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			summary, res, err := e.Git.DiffStat(cmd.Context(), staged, repo)
			if !res.Succeeded() {
				return a.printResult(res)
			}
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(summary)
			}
			printDiffSummary(a, summary)
			return nil
		},
	}
	diff.Flags().BoolVar(&staged, "staged", false, "Diff the index instead of the working tree")
	diff.Flags().BoolVar(&stat, "stat", false, "Summarize per-file line counts")

	branchCmd := &cobra.Command{
		Use:   "branch <name>",
		Short: "Create and switch to a new branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			return a.printResult(e.Git.CreateBranch(cmd.Context(), args[0], repo))
		},
	}

	checkout := &cobra.Command{
		Use:   "checkout <name>",
		Short: "Switch to an existing branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			return a.printResult(e.Git.SwitchBranch(cmd.Context(), args[0], repo))
		},
	}

	clone := &cobra.Command{
		Use:   "clone <url> [dir]",
		Short: "Clone a repository into the tracked directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			return a.printResult(e.Git.Clone(cmd.Context(), args[0], target))
		},
	}

	cmd.AddCommand(
		status, add, commit,
		remoteCmd(gitops.ActionPush, "Push to a remote"),
		remoteCmd(gitops.ActionPull, "Pull from a remote"),
		logCmd, diff, branchCmd, checkout, clone,
	)
	return cmd
}

func printStatus(a *app, st gitops.Status) {
	state := styleOK.Render("clean")
	if !st.IsClean {
		state = styleWarn.Render("dirty")
	}
	fmt.Fprintf(a.stdout, "%s %s %s\n", styleTitle.Render(logo), styleTitle.Render(st.Branch), state)
	if st.Ahead > 0 || st.Behind > 0 {
		fmt.Fprintln(a.stdout, kv("Upstream", fmt.Sprintf("ahead %d, behind %d", st.Ahead, st.Behind)))
	}
	section := func(title string, files []string) {
		if len(files) == 0 {
			return
		}
		fmt.Fprintln(a.stdout, kv(title, len(files)))
		for _, f := range files {
			fmt.Fprintln(a.stdout, "  "+styleDim.Render(f))
		}
	}
	section("Staged", st.Staged)
	section("Modified", st.Modified)
	section("Untracked", st.Untracked)
}

func printDiffSummary(a *app, s gitops.DiffSummary) {
	if len(s.Files) == 0 {
		fmt.Fprintln(a.stdout, styleDim.Render("no changes"))
		return
	}
	for _, f := range s.Files {
		mark := ""
		switch {
		case f.Created:
			mark = styleOK.Render(" (new)")
		case f.Deleted:
			mark = styleErr.Render(" (deleted)")
		}
		fmt.Fprintf(a.stdout, "%s%s  %s %s\n", f.Path, mark,
			styleOK.Render(fmt.Sprintf("+%d", f.Added)), styleErr.Render(fmt.Sprintf("-%d", f.Removed)))
	}
	fmt.Fprintf(a.stdout, "%s %d files, %s\n", styleDim.Render("total"), len(s.Files),
		strings.Join([]string{fmt.Sprintf("+%d", s.Added), fmt.Sprintf("-%d", s.Removed)}, " "))
}
