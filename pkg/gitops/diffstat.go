package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexia-labs/nexia/pkg/shell"
	sgdiff "github.com/sourcegraph/go-diff/diff"
)

type FileChange struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type DiffSummary struct {
	Files   []FileChange `json:"files"`
	Added   int          `json:"added"`
	Removed int          `json:"removed"`
}

// SummarizeDiff parses unified diff text (as printed by `git diff`) into
// per-file line counts. Empty input yields an empty summary.
func SummarizeDiff(patch string) (DiffSummary, error) {
	summary := DiffSummary{Files: []FileChange{}}
	if strings.TrimSpace(patch) == "" {
		return summary, nil
	}

	fileDiffs, err := sgdiff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return summary, fmt.Errorf("parse diff: %w", err)
	}

	for _, fd := range fileDiffs {
		change := FileChange{
			Path:    strings.TrimPrefix(fd.NewName, "b/"),
			Created: fd.OrigName == "/dev/null",
			Deleted: fd.NewName == "/dev/null",
		}
		if change.Deleted {
			change.Path = strings.TrimPrefix(fd.OrigName, "a/")
		}
		stat := fd.Stat()
		change.Added = int(stat.Added + stat.Changed)
		change.Removed = int(stat.Deleted + stat.Changed)

		summary.Added += change.Added
		summary.Removed += change.Removed
		summary.Files = append(summary.Files, change)
	}
	return summary, nil
}

// DiffStat runs Diff and summarizes its output. The summary is empty when
// the diff itself failed.
func (c *Client) DiffStat(ctx context.Context, staged bool, repoPath string) (DiffSummary, shell.ExecutionResult, error) {
	res := c.Diff(ctx, staged, repoPath)
	if !res.Succeeded() {
		return DiffSummary{Files: []FileChange{}}, res, nil
	}
	summary, err := SummarizeDiff(res.Stdout)
	return summary, res, err
}
