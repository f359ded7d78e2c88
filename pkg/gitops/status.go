package gitops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexia-labs/nexia/pkg/logger"
	"github.com/nexia-labs/nexia/pkg/shell"
)

// Status is derived on every request and never persisted.
type Status struct {
	Branch    string   `json:"branch"`
	IsClean   bool     `json:"is_clean"`
	Staged    []string `json:"staged_files"`
	Modified  []string `json:"modified_files"`
	Untracked []string `json:"untracked_files"`
	Ahead     int      `json:"commits_ahead"`
	Behind    int      `json:"commits_behind"`
}

// Status runs branch, porcelain status and ahead/behind as sequential steps.
func (c *Client) Status(ctx context.Context, repoPath string) (Status, error) {
	dir := c.resolveDir(repoPath)
	if !IsRepository(dir) {
		return Status{}, fmt.Errorf("%w: %s", ErrNotRepository, dir)
	}

	st := Status{Branch: "unknown"}

	branch := c.run(ctx, "branch", dir, "branch", "--show-current")
	if branch.Succeeded() {
		if name := strings.TrimSpace(branch.Stdout); name != "" {
			st.Branch = name
		}
	}

	porcelain := c.run(ctx, "status", dir, "status", "--porcelain")
	if porcelain.Succeeded() {
		st.Staged, st.Modified, st.Untracked = ParsePorcelain(porcelain.Stdout)
	} else {
		logger.WarnCF("git", "Porcelain status failed", map[string]interface{}{
			"path":      dir,
			"exit_code": porcelain.ExitCode,
			"stderr":    strings.TrimSpace(porcelain.Stderr),
		})
	}
	st.IsClean = len(st.Staged) == 0 && len(st.Modified) == 0 && len(st.Untracked) == 0

	st.Ahead, st.Behind = c.aheadBehind(ctx, dir)
	return st, nil
}

// ParsePorcelain splits `git status --porcelain` output. The first two
// characters of each line are the index and worktree slots; the path starts
// at offset 3. "??" marks an untracked path and nothing else.
func ParsePorcelain(out string) (staged, modified, untracked []string) {
	staged, modified, untracked = []string{}, []string{}, []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || len(line) < 4 {
			continue
		}
		code := line[:2]
		path := line[3:]

		if code == "??" {
			untracked = append(untracked, path)
			continue
		}
		if code[0] == 'R' || code[0] == 'C' {
			if _, renamed, ok := strings.Cut(path, " -> "); ok {
				path = renamed
			}
		}
		if code[0] != ' ' {
			staged = append(staged, path)
		}
		if code[1] != ' ' {
			modified = append(modified, path)
		}
	}
	return staged, modified, untracked
}

// aheadBehind counts commits unique to HEAD and to its upstream. Without an
// upstream the command fails and both counts are zero.
func (c *Client) aheadBehind(ctx context.Context, dir string) (int, int) {
	res := c.run(ctx, "rev-list", dir, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if !res.Succeeded() {
		return 0, 0
	}
	ahead, behind, ok := parseAheadBehind(res.Stdout)
	if !ok {
		return 0, 0
	}
	return ahead, behind
}

func parseAheadBehind(out string) (int, int, bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, false
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil || ahead < 0 {
		return 0, 0, false
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil || behind < 0 {
		return 0, 0, false
	}
	return ahead, behind, true
}

var _ CommandRunner = (*shell.Executor)(nil)
