package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/nexia-labs/nexia/pkg/engine"
	"github.com/nexia-labs/nexia/pkg/gitops"
	"github.com/nexia-labs/nexia/pkg/shell"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  ask <question>     send a question through the session bridge
  git status         show repository status
  git <action> ...   add <files> | commit <message> | push | pull | log | diff | diff-staged
  cd <dir>           change the tracked directory
  pwd                print the tracked directory
  exit, quit         leave
Anything else runs as an allow-listed program.`

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session sharing one tracked directory and bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s interactive mode (type 'help', Ctrl+C to exit)\n\n", logo, displayName)
			interactiveMode(cmd.Context(), a, e)
			return nil
		},
	}
}

func replPrompt(e *engine.Engine) string {
	return fmt.Sprintf("%s %s > ", logo, filepath.Base(e.Shell.CurrentDir()))
}

func interactiveMode(ctx context.Context, a *app, e *engine.Engine) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt(e),
		HistoryFile:     filepath.Join(os.TempDir(), ".nexia_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           io.NopCloser(a.stdin),
		Stdout:          a.stdout,
		Stderr:          a.stderr,
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "Error initializing readline: %v\n", err)
		fmt.Fprintln(a.stderr, "Falling back to simple input mode...")
		simpleInteractiveMode(ctx, a, e)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.stdout, "\nGoodbye!")
				return
			}
			fmt.Fprintf(a.stderr, "Error reading input: %v\n", err)
			continue
		}
		if quit := evalLine(ctx, a, e, line); quit {
			fmt.Fprintln(a.stdout, "Goodbye!")
			return
		}
		rl.SetPrompt(replPrompt(e))
	}
}

func simpleInteractiveMode(ctx context.Context, a *app, e *engine.Engine) {
	reader := bufio.NewReader(a.stdin)
	for {
		fmt.Fprint(a.stdout, replPrompt(e))
		line, err := reader.ReadString('\n')
		if evalLine(ctx, a, e, line) {
			fmt.Fprintln(a.stdout, "Goodbye!")
			return
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(a.stderr, "Error reading input: %v\n", err)
			}
			fmt.Fprintln(a.stdout, "\nGoodbye!")
			return
		}
	}
}

// evalLine runs one REPL line and reports whether the session should end.
// Errors are printed, never returned.
func evalLine(ctx context.Context, a *app, e *engine.Engine, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	fields := strings.Fields(input)

	switch fields[0] {
	case "exit", "quit":
		return true
	case "help", "?":
		fmt.Fprintln(a.stdout, replHelp)
	case "pwd":
		fmt.Fprintln(a.stdout, e.Shell.CurrentDir())
	case "ask":
		question := strings.TrimSpace(strings.TrimPrefix(input, "ask"))
		answer, err := withSpinner(ctx, a.stderr, "Asking Claude...", func(ctx context.Context) string {
			return e.Ask(ctx, question)
		})
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(a.stdout, "\n%s %s\n\n", logo, answer)
	case "git":
		evalGit(ctx, a, e, fields[1:], input)
	default:
		_ = a.printResult(e.Shell.Execute(ctx, shell.CommandSpec{Program: fields[0], Args: fields[1:]}))
	}
	return false
}

func evalGit(ctx context.Context, a *app, e *engine.Engine, args []string, input string) {
	if len(args) == 0 || args[0] == "status" {
		st, err := e.Git.Status(ctx, "")
		if err != nil {
			if errors.Is(err, gitops.ErrNotRepository) {
				fmt.Fprintln(a.stderr, styleErr.Render("Not a git repository"))
			} else {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
			}
			return
		}
		printStatus(a, st)
		return
	}

	req := gitops.ActionRequest{Action: args[0]}
	switch args[0] {
	case gitops.ActionAdd:
		req.Files = args[1:]
	case gitops.ActionCommit:
		// Keep the message verbatim, including repeated spaces.
		idx := strings.Index(input, "commit")
		req.Message = strings.TrimSpace(input[idx+len("commit"):])
	case gitops.ActionPush, gitops.ActionPull:
		if len(args) > 1 {
			req.Remote = args[1]
		}
		if len(args) > 2 {
			req.Branch = args[2]
		}
	}
	res, err := e.Git.Dispatch(ctx, req)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return
	}
	_ = a.printResult(res)
}
