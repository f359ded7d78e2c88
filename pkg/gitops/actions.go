package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexia-labs/nexia/pkg/shell"
)

// Action names accepted by Dispatch.
const (
	ActionAdd        = "add"
	ActionCommit     = "commit"
	ActionPush       = "push"
	ActionPull       = "pull"
	ActionLog        = "log"
	ActionDiff       = "diff"
	ActionDiffStaged = "diff-staged"
)

// ActionRequest is the caller-facing shape of a git action.
type ActionRequest struct {
	Action   string   `json:"action"`
	Files    []string `json:"files,omitempty"`
	Message  string   `json:"message,omitempty"`
	Branch   string   `json:"branch,omitempty"`
	Remote   string   `json:"remote,omitempty"`
	RepoPath string   `json:"repo_path,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

func Actions() []string {
	return []string{ActionAdd, ActionCommit, ActionPush, ActionPull, ActionLog, ActionDiff, ActionDiffStaged}
}

// Dispatch routes req to the matching operation. Request errors
// (ErrUnknownAction, ErrBadRequest) are returned before anything runs;
// operational failures are in the result.
func (c *Client) Dispatch(ctx context.Context, req ActionRequest) (shell.ExecutionResult, error) {
	switch strings.TrimSpace(req.Action) {
	case ActionAdd:
		if len(req.Files) == 0 {
			return shell.ExecutionResult{}, fmt.Errorf("%w: files required for add action", ErrBadRequest)
		}
		return c.Add(ctx, req.Files, req.RepoPath), nil
	case ActionCommit:
		if strings.TrimSpace(req.Message) == "" {
			return shell.ExecutionResult{}, fmt.Errorf("%w: message required for commit action", ErrBadRequest)
		}
		return c.Commit(ctx, req.Message, req.RepoPath), nil
	case ActionPush:
		return c.Push(ctx, req.Remote, req.Branch, req.RepoPath), nil
	case ActionPull:
		return c.Pull(ctx, req.Remote, req.Branch, req.RepoPath), nil
	case ActionLog:
		return c.Log(ctx, req.Limit, req.RepoPath), nil
	case ActionDiff:
		return c.Diff(ctx, false, req.RepoPath), nil
	case ActionDiffStaged:
		return c.Diff(ctx, true, req.RepoPath), nil
	default:
		return shell.ExecutionResult{}, fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
	}
}
