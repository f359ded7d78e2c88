package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/nexia-labs/nexia/pkg/shell"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrUnknownAction = errors.New("unknown git action")
	ErrBadRequest    = errors.New("invalid git action request")
)

const (
	DefaultRemote   = "origin"
	DefaultLogLimit = 10
)

// CommandRunner is the executor capability gitops needs.
// *shell.Executor satisfies it.
type CommandRunner interface {
	Execute(ctx context.Context, spec shell.CommandSpec) shell.ExecutionResult
	CurrentDir() string
}

type Client struct {
	runner CommandRunner
	hooks  *hooks.Dispatcher
}

func NewClient(runner CommandRunner, dispatcher *hooks.Dispatcher) *Client {
	return &Client{runner: runner, hooks: dispatcher}
}

// IsRepository reports whether path holds a repository marker (.git as a
// directory, or as a file for worktrees and submodules).
func IsRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

func (c *Client) resolveDir(repoPath string) string {
	if strings.TrimSpace(repoPath) == "" {
		return c.runner.CurrentDir()
	}
	if !filepath.IsAbs(repoPath) {
		return filepath.Join(c.runner.CurrentDir(), repoPath)
	}
	return repoPath
}

func notRepository(verb string) shell.ExecutionResult {
	return shell.Failure(shell.FailureRepository, "git "+verb, "Not a git repository")
}

// run executes one git invocation in dir, checking the repository marker
// first.
func (c *Client) run(ctx context.Context, verb, dir string, args ...string) shell.ExecutionResult {
	var res shell.ExecutionResult
	data := hooks.Context{
		EventID:    uuid.NewString(),
		Component:  "git",
		Operation:  verb,
		Command:    "git " + strings.Join(args, " "),
		WorkingDir: dir,
	}

	c.hooks.Instrument(ctx, hooks.EventBeforeGit, hooks.EventAfterGit, data,
		func(ctx context.Context) hooks.Context {
			if !IsRepository(dir) {
				logger.WarnCF("git", "Not a git repository", map[string]interface{}{
					"operation": verb,
					"path":      dir,
				})
				res = notRepository(verb)
			} else {
				res = c.runner.Execute(ctx, shell.CommandSpec{Program: "git", Args: args, WorkingDir: dir})
			}
			out := data
			code := res.ExitCode
			out.ExitCode = &code
			out.DurationMs = res.DurationMs
			return out
		})
	return res
}

func (c *Client) Add(ctx context.Context, files []string, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "add", c.resolveDir(repoPath), append([]string{"add"}, files...)...)
}

func (c *Client) Commit(ctx context.Context, message, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "commit", c.resolveDir(repoPath), "commit", "-m", message)
}

func (c *Client) Push(ctx context.Context, remote, branch, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "push", c.resolveDir(repoPath), remoteArgs("push", remote, branch)...)
}

func (c *Client) Pull(ctx context.Context, remote, branch, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "pull", c.resolveDir(repoPath), remoteArgs("pull", remote, branch)...)
}

// CreateBranch creates name and switches to it.
func (c *Client) CreateBranch(ctx context.Context, name, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "checkout", c.resolveDir(repoPath), "checkout", "-b", name)
}

func (c *Client) SwitchBranch(ctx context.Context, name, repoPath string) shell.ExecutionResult {
	return c.run(ctx, "checkout", c.resolveDir(repoPath), "checkout", name)
}

func (c *Client) Log(ctx context.Context, limit int, repoPath string) shell.ExecutionResult {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return c.run(ctx, "log", c.resolveDir(repoPath), "log", "--oneline", fmt.Sprintf("-%d", limit))
}

func (c *Client) Diff(ctx context.Context, staged bool, repoPath string) shell.ExecutionResult {
	args := []string{"diff"}
	if staged {
		args = append(args, "--staged")
	}
	return c.run(ctx, "diff", c.resolveDir(repoPath), args...)
}

// Clone runs in the executor's current directory unless targetDir is
// absolute; no repository marker is required.
func (c *Client) Clone(ctx context.Context, repoURL, targetDir string) shell.ExecutionResult {
	args := []string{"clone", repoURL}
	if targetDir != "" {
		args = append(args, targetDir)
	}
	return c.runner.Execute(ctx, shell.CommandSpec{Program: "git", Args: args, WorkingDir: c.runner.CurrentDir()})
}

func remoteArgs(verb, remote, branch string) []string {
	if strings.TrimSpace(remote) == "" {
		remote = DefaultRemote
	}
	args := []string{verb, remote}
	if branch != "" {
		args = append(args, branch)
	}
	return args
}
