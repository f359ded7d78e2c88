package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nexia-labs/nexia/pkg/browser"
	"github.com/nexia-labs/nexia/pkg/config"
	"github.com/nexia-labs/nexia/pkg/engine"
	"github.com/nexia-labs/nexia/pkg/gitops"
	"github.com/nexia-labs/nexia/pkg/shell"
)

type stubSpawner struct {
	mu   sync.Mutex
	reqs []shell.SpawnRequest
}

func (s *stubSpawner) Spawn(_ context.Context, req shell.SpawnRequest) shell.SpawnResult {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return shell.SpawnResult{Stdout: []byte(strings.Join(append([]string{req.Program}, req.Args...), " ") + "\n")}
}

func (s *stubSpawner) last() shell.SpawnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reqs) == 0 {
		return shell.SpawnRequest{}
	}
	return s.reqs[len(s.reqs)-1]
}

type noDriver struct{}

func (noDriver) Open(context.Context, browser.OpenOptions) (browser.Page, error) {
	return nil, errors.New("no chrome")
}

type noOpener struct{}

func (noOpener) Open(context.Context, string) error { return errors.New("no display") }

type testEnv struct {
	app     *app
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	spawner *stubSpawner
	home    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Shell.HomeDir = home
	cfg.Bridge.CookieFile = filepath.Join(dir, "cookies.json")
	cfg.Bridge.StateFile = filepath.Join(dir, "state", "bridge.json")
	cfg.Audit.Enabled = false
	cfgPath := filepath.Join(dir, "config.json")
	if err := config.SaveConfig(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		spawner: &stubSpawner{},
		home:    home,
	}
	env.app = &app{
		configPath: cfgPath,
		stdout:     env.stdout,
		stderr:     env.stderr,
		stdin:      strings.NewReader(""),
		engineOpts: []engine.Option{
			engine.WithoutLogSetup(),
			engine.WithSpawner(env.spawner),
			engine.WithDriver(noDriver{}),
			engine.WithOpener(noOpener{}),
			engine.WithAPI(nil),
			engine.WithProbeClient(http.DefaultClient),
		},
	}
	return env
}

func (env *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	return run(context.Background(), env.app, args)
}

func TestExecPassesArgumentsThrough(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "exec", "ls", "-la", "--color"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	got := env.spawner.last()
	want := shell.SpawnRequest{Program: "ls", Args: []string{"-la", "--color"}, Dir: env.home}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("spawn request mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(env.stdout.String(), "ls -la --color") {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestExecRejectedCommandExitsNonZero(t *testing.T) {
	env := newTestEnv(t)
	err := env.run(t, "exec", "rm", "-rf", "/")
	var ec exitCodeError
	if !errors.As(err, &ec) || ec.code != 1 {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if !strings.Contains(env.stderr.String(), "Command 'rm' is not allowed for security reasons") {
		t.Errorf("stderr = %q", env.stderr.String())
	}
	if len(env.spawner.reqs) != 0 {
		t.Errorf("rejected command was spawned: %+v", env.spawner.reqs)
	}
}

func TestExecJSONOutput(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "--json", "exec", "ls", "-a"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	var res shell.ExecutionResult
	if err := json.Unmarshal(env.stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", env.stdout.String(), err)
	}
	if res.Command != "ls -a" || res.ExitCode != 0 || res.EventID == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestGitStatusOutsideRepository(t *testing.T) {
	env := newTestEnv(t)
	err := env.run(t, "git", "status")
	var ec exitCodeError
	if !errors.As(err, &ec) {
		t.Fatalf("err = %v, want exitCodeError", err)
	}
	if !strings.Contains(env.stderr.String(), "Not a git repository") {
		t.Errorf("stderr = %q", env.stderr.String())
	}
}

func TestGitCommitRequiresMessage(t *testing.T) {
	env := newTestEnv(t)
	if err := os.Mkdir(filepath.Join(env.home, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	err := env.run(t, "git", "commit")
	if !errors.Is(err, gitops.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	if err := env.run(t, "git", "commit", "-m", "initial"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	want := []string{"commit", "-m", "initial"}
	if diff := cmp.Diff(want, env.spawner.last().Args); diff != "" {
		t.Errorf("git args mismatch (-want +got):\n%s", diff)
	}
}

func TestAskAlwaysPrintsAnswer(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "ask", "what", "is", "2+2?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Authentication required") {
		t.Errorf("stdout = %q", env.stdout.String())
	}

	env.stdout.Reset()
	if err := env.run(t, "bridge", "status"); err != nil {
		t.Fatalf("bridge status: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "auth-required") {
		t.Errorf("previous strategy not reported: %q", env.stdout.String())
	}
}

func TestBridgeStatusJSON(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "--json", "bridge", "status"); err != nil {
		t.Fatalf("bridge status: %v", err)
	}
	var out struct {
		Status struct {
			Available bool   `json:"available"`
			Connected bool   `json:"connected"`
			State     string `json:"state"`
		} `json:"status"`
		Strategies []string `json:"strategies"`
	}
	if err := json.Unmarshal(env.stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", env.stdout.String(), err)
	}
	if !out.Status.Available || out.Status.Connected || out.Status.State != "disconnected" {
		t.Errorf("status = %+v", out.Status)
	}
	if diff := cmp.Diff([]string{"direct", "cookies", "guided", "auth-required"}, out.Strategies); diff != "" {
		t.Errorf("strategies mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)
	env.app.configPath = filepath.Join(t.TempDir(), "nested", "config.json")

	if err := env.run(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := config.LoadConfig(env.app.configPath); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if err := env.run(t, "config", "init"); err == nil {
		t.Fatal("expected error when config exists")
	}
	if err := env.run(t, "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestEvalLine(t *testing.T) {
	env := newTestEnv(t)
	e, err := env.app.engine()
	if err != nil {
		t.Fatal(err)
	}
	defer env.app.close()
	ctx := context.Background()

	sub := filepath.Join(env.home, "project")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if evalLine(ctx, env.app, e, "cd project") {
		t.Fatal("cd ended the session")
	}
	if e.Shell.CurrentDir() != sub {
		t.Errorf("CurrentDir = %q, want %q", e.Shell.CurrentDir(), sub)
	}

	evalLine(ctx, env.app, e, "grep -n foo")
	if got := env.spawner.last(); got.Program != "grep" || got.Dir != sub {
		t.Errorf("spawn = %+v", got)
	}

	env.stdout.Reset()
	evalLine(ctx, env.app, e, "ask hello there")
	if !strings.Contains(env.stdout.String(), "Authentication required") {
		t.Errorf("ask output = %q", env.stdout.String())
	}

	for _, line := range []string{"exit", "  quit  "} {
		if !evalLine(ctx, env.app, e, line) {
			t.Errorf("%q should end the session", line)
		}
	}
	if evalLine(ctx, env.app, e, "   ") {
		t.Error("blank line ended the session")
	}
}

func TestReplGitCommitKeepsMessage(t *testing.T) {
	env := newTestEnv(t)
	if err := os.Mkdir(filepath.Join(env.home, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	e, err := env.app.engine()
	if err != nil {
		t.Fatal(err)
	}
	defer env.app.close()

	evalLine(context.Background(), env.app, e, "git commit fix:  two spaces")
	want := []string{"commit", "-m", "fix:  two spaces"}
	if diff := cmp.Diff(want, env.spawner.last().Args); diff != "" {
		t.Errorf("git args mismatch (-want +got):\n%s", diff)
	}
}

func TestNextRefresh(t *testing.T) {
	from := time.Date(2026, 3, 4, 10, 5, 0, 0, time.UTC)
	next, err := nextRefresh("*/30 * * * *", from)
	if err != nil {
		t.Fatalf("nextRefresh: %v", err)
	}
	want := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestRefreshLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := refreshLoop(ctx, "* * * * *", time.Now, func(context.Context) { called = true })
	if err != nil {
		t.Fatalf("refreshLoop: %v", err)
	}
	if called {
		t.Error("refresh ran after cancellation")
	}
}

func TestMaskValue(t *testing.T) {
	tests := map[string]string{
		"":           "****",
		"abc":        "****",
		"sk-ant-123": "sk-a****",
	}
	for in, want := range tests {
		if got := maskValue(in); got != want {
			t.Errorf("maskValue(%q) = %q, want %q", in, got, want)
		}
	}
}
