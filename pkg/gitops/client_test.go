package gitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/shell"
)

// fakeRunner answers git invocations from a table keyed by the joined args.
type fakeRunner struct {
	mu      sync.Mutex
	dir     string
	replies map[string]shell.ExecutionResult
	calls   []shell.CommandSpec
}

func (f *fakeRunner) Execute(_ context.Context, spec shell.CommandSpec) shell.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec)
	if res, ok := f.replies[strings.Join(spec.Args, " ")]; ok {
		res.Command = spec.Text()
		return res
	}
	return shell.ExecutionResult{Command: spec.Text()}
}

func (f *fakeRunner) CurrentDir() string { return f.dir }

func newFakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return dir
}

func TestStatusParsesPorcelain(t *testing.T) {
	dir := newFakeRepo(t)
	runner := &fakeRunner{dir: dir, replies: map[string]shell.ExecutionResult{
		"branch --show-current":                            {Stdout: "main\n"},
		"status --porcelain":                               {Stdout: "M  a.txt\n?? b.txt\n M c.txt\n"},
		"rev-list --left-right --count HEAD...@{upstream}": {Stdout: "2\t1\n"},
	}}
	c := NewClient(runner, nil)

	st, err := c.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := Status{
		Branch:    "main",
		IsClean:   false,
		Staged:    []string{"a.txt"},
		Modified:  []string{"c.txt"},
		Untracked: []string{"b.txt"},
		Ahead:     2,
		Behind:    1,
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusCleanWithoutUpstream(t *testing.T) {
	dir := newFakeRepo(t)
	runner := &fakeRunner{dir: dir, replies: map[string]shell.ExecutionResult{
		"branch --show-current": {Stdout: "feature\n"},
		"status --porcelain":    {Stdout: ""},
		"rev-list --left-right --count HEAD...@{upstream}": {
			ExitCode: 128,
			Kind:     shell.FailureExit,
			Stderr:   "fatal: no upstream configured for branch 'feature'",
		},
	}}
	c := NewClient(runner, nil)

	st, err := c.Status(context.Background(), dir)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.IsClean {
		t.Errorf("expected clean status, got %+v", st)
	}
	if st.Ahead != 0 || st.Behind != 0 {
		t.Errorf("ahead/behind = %d/%d, want 0/0", st.Ahead, st.Behind)
	}
}

func TestStatusUnknownBranch(t *testing.T) {
	dir := newFakeRepo(t)
	runner := &fakeRunner{dir: dir, replies: map[string]shell.ExecutionResult{
		"branch --show-current": {ExitCode: 129, Kind: shell.FailureExit},
	}}
	st, err := NewClient(runner, nil).Status(context.Background(), dir)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Branch != "unknown" {
		t.Errorf("Branch = %q, want unknown", st.Branch)
	}
}

func TestStatusOutsideRepository(t *testing.T) {
	runner := &fakeRunner{dir: t.TempDir()}
	_, err := NewClient(runner, nil).Status(context.Background(), "")
	if !errors.Is(err, ErrNotRepository) {
		t.Fatalf("err = %v, want ErrNotRepository", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no git invocations, got %d", len(runner.calls))
	}
}

func TestOperationsOutsideRepository(t *testing.T) {
	runner := &fakeRunner{dir: t.TempDir()}
	c := NewClient(runner, nil)
	ctx := context.Background()

	results := map[string]shell.ExecutionResult{
		"add":    c.Add(ctx, []string{"a.txt"}, ""),
		"commit": c.Commit(ctx, "msg", ""),
		"push":   c.Push(ctx, "", "", ""),
		"log":    c.Log(ctx, 0, ""),
		"diff":   c.Diff(ctx, true, ""),
	}
	for name, res := range results {
		if res.ExitCode != 1 || res.Kind != shell.FailureRepository {
			t.Errorf("%s: got exit=%d kind=%q, want repository failure", name, res.ExitCode, res.Kind)
		}
		if res.Stderr != "Not a git repository" {
			t.Errorf("%s: stderr = %q", name, res.Stderr)
		}
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no spawns, got %d", len(runner.calls))
	}
}

func TestOperationArguments(t *testing.T) {
	dir := newFakeRepo(t)
	runner := &fakeRunner{dir: dir}
	c := NewClient(runner, nil)
	ctx := context.Background()

	c.Add(ctx, []string{"a.txt", "b.txt"}, "")
	c.Commit(ctx, "initial commit", "")
	c.Push(ctx, "", "main", "")
	c.Pull(ctx, "upstream", "", "")
	c.CreateBranch(ctx, "feature", "")
	c.SwitchBranch(ctx, "main", "")
	c.Log(ctx, 0, "")
	c.Log(ctx, 3, "")
	c.Diff(ctx, false, "")
	c.Diff(ctx, true, "")

	var got []string
	for _, call := range runner.calls {
		if call.Program != "git" {
			t.Errorf("program = %q, want git", call.Program)
		}
		if call.WorkingDir != dir {
			t.Errorf("working dir = %q, want %q", call.WorkingDir, dir)
		}
		got = append(got, strings.Join(call.Args, " "))
	}
	want := []string{
		"add a.txt b.txt",
		"commit -m initial commit",
		"push origin main",
		"pull upstream",
		"checkout -b feature",
		"checkout main",
		"log --oneline -10",
		"log --oneline -3",
		"diff",
		"diff --staged",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("git args mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneSkipsRepositoryCheck(t *testing.T) {
	runner := &fakeRunner{dir: t.TempDir()}
	res := NewClient(runner, nil).Clone(context.Background(), "https://example.com/repo.git", "repo")
	if !res.Succeeded() {
		t.Fatalf("clone failed: %+v", res)
	}
	if len(runner.calls) != 1 || strings.Join(runner.calls[0].Args, " ") != "clone https://example.com/repo.git repo" {
		t.Errorf("unexpected calls: %+v", runner.calls)
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []hooks.Event
}

func (h *recordingHandler) Name() string { return "recorder" }

func (h *recordingHandler) Handle(_ context.Context, ev hooks.Event, _ hooks.Context) hooks.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return hooks.Result{Status: hooks.StatusOK}
}

func TestGitOperationsEmitHooks(t *testing.T) {
	rec := &recordingHandler{}
	d := hooks.NewDispatcher(nil, rec)
	runner := &fakeRunner{dir: newFakeRepo(t)}

	NewClient(runner, d).Log(context.Background(), 5, "")

	want := []hooks.Event{hooks.EventBeforeGit, hooks.EventAfterGit}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusAgainstRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ex := shell.NewExecutor(shell.Options{HomeDir: dir})
	c := NewClient(ex, nil)
	ctx := context.Background()

	initRes := ex.Execute(ctx, shell.CommandSpec{Program: "git", Args: []string{"init", "-q"}, WorkingDir: dir})
	if !initRes.Succeeded() {
		t.Fatalf("git init: %+v", initRes)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := c.Status(ctx, dir)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if diff := cmp.Diff([]string{"a.txt"}, st.Untracked); diff != "" {
		t.Errorf("untracked mismatch (-want +got):\n%s", diff)
	}
	if st.IsClean {
		t.Error("repository with untracked file reported clean")
	}
	if st.Ahead != 0 || st.Behind != 0 {
		t.Errorf("ahead/behind = %d/%d, want 0/0", st.Ahead, st.Behind)
	}

	if res := c.Add(ctx, []string{"a.txt"}, dir); !res.Succeeded() {
		t.Fatalf("git add: %+v", res)
	}
	st, err = c.Status(ctx, dir)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if diff := cmp.Diff([]string{"a.txt"}, st.Staged); diff != "" {
		t.Errorf("staged mismatch (-want +got):\n%s", diff)
	}
}
