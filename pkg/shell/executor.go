package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/logger"
)

const (
	DefaultTimeout = 30 * time.Second
	// Grace period for pipes to drain after the process is killed.
	killWaitDelay = time.Second
)

// SpawnRequest is what the executor hands to a Spawner once policy passed.
type SpawnRequest struct {
	Program string
	Args    []string
	Dir     string
	Env     []string
}

// SpawnResult carries whatever a process produced. Err is set only when the
// process could not be started or waited on; a non-zero exit is reported via
// ExitCode alone.
type SpawnResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Err      error
}

// Spawner starts a process and waits for it. The context deadline bounds the
// process lifetime.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) SpawnResult
}

type Options struct {
	Timeout  time.Duration
	HomeDir  string
	Policy   *Policy
	Spawner  Spawner
	Hooks    *hooks.Dispatcher
	ExtraEnv map[string]string
}

// Executor runs allow-listed programs. The tracked current directory is
// shared by every caller; pass CommandSpec.WorkingDir for isolation.
type Executor struct {
	timeout  time.Duration
	policy   atomic.Pointer[Policy]
	spawner  Spawner
	hooks    *hooks.Dispatcher
	extraEnv map[string]string

	mu         sync.RWMutex
	currentDir string
}

func NewExecutor(opts Options) *Executor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	home := opts.HomeDir
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		} else if wd, err := os.Getwd(); err == nil {
			home = wd
		}
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	e := &Executor{
		timeout:    timeout,
		spawner:    spawner,
		hooks:      opts.Hooks,
		currentDir: home,
	}
	e.policy.Store(policy)
	e.SetExtraEnv(opts.ExtraEnv)
	return e
}

// SetPolicy swaps the allow/block policy wholesale.
func (e *Executor) SetPolicy(p *Policy) {
	if p == nil {
		return
	}
	e.policy.Store(p)
}

func (e *Executor) Policy() *Policy {
	return e.policy.Load()
}

// SetExtraEnv provides environment variables that will be injected into all spawned commands.
// Values override any existing variables with the same name.
func (e *Executor) SetExtraEnv(env map[string]string) {
	if len(env) == 0 {
		return
	}
	if e.extraEnv == nil {
		e.extraEnv = map[string]string{}
	}
	for k, v := range env {
		if strings.TrimSpace(k) == "" {
			continue
		}
		e.extraEnv[k] = v
	}
}

func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

func (e *Executor) CurrentDir() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentDir
}

func (e *Executor) AllowedCommands() []string {
	return e.Policy().Allowed()
}

// Execute runs spec under the policy and timeout. Operational failures are
// encoded in the result; Execute never returns an error.
func (e *Executor) Execute(ctx context.Context, spec CommandSpec) ExecutionResult {
	var res ExecutionResult
	data := hooks.Context{
		EventID:    uuid.NewString(),
		Component:  "shell",
		Operation:  BaseToken(spec.Program),
		Command:    spec.Text(),
		WorkingDir: spec.WorkingDir,
	}

	e.hooks.Instrument(ctx, hooks.EventBeforeCommand, hooks.EventAfterCommand, data,
		func(ctx context.Context) hooks.Context {
			res = e.execute(ctx, spec)
			out := data
			code := res.ExitCode
			out.ExitCode = &code
			out.DurationMs = res.DurationMs
			if res.Kind != FailureNone && res.Kind != FailureExit {
				out.ErrorMessage = res.Stderr
			}
			return out
		})

	res.EventID = data.EventID
	return res
}

func (e *Executor) execute(ctx context.Context, spec CommandSpec) ExecutionResult {
	command := spec.Text()

	if !e.Policy().Allows(spec.Program) {
		logger.WarnCF("shell", "Command rejected by policy", map[string]interface{}{
			"command": command,
		})
		return Failure(FailurePolicy, command,
			fmt.Sprintf("Command '%s' is not allowed for security reasons", spec.Program))
	}
	if spec.Program != BaseToken(spec.Program) {
		return Failure(FailurePolicy, command,
			fmt.Sprintf("Command '%s' must be a single program name; pass arguments separately", spec.Program))
	}

	workDir := e.resolveDir(spec.WorkingDir)

	if spec.Program == "cd" {
		return e.changeDir(spec, workDir)
	}

	logger.DebugCF("shell", "Executing command", map[string]interface{}{
		"command": command,
		"cwd":     workDir,
	})

	start := time.Now()
	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var env []string
	if len(e.extraEnv) > 0 {
		env = mergeEnv(os.Environ(), e.extraEnv)
	}

	out := e.spawner.Spawn(cmdCtx, SpawnRequest{
		Program: spec.Program,
		Args:    spec.Args,
		Dir:     workDir,
		Env:     env,
	})
	duration := time.Since(start).Milliseconds()

	res := ExecutionResult{
		Stdout:     sanitize(out.Stdout),
		Stderr:     sanitize(out.Stderr),
		ExitCode:   out.ExitCode,
		Command:    command,
		DurationMs: duration,
	}

	switch {
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.ExitCode = TimeoutExitCode
		res.Kind = FailureTimeout
		msg := fmt.Sprintf("Command timed out after %v", e.timeout)
		if res.Stderr != "" {
			res.Stderr = strings.TrimRight(res.Stderr, "\n") + "\n" + msg
		} else {
			res.Stderr = msg
		}
		logger.WarnCF("shell", "Command timed out", map[string]interface{}{
			"command":     command,
			"duration_ms": duration,
		})
	case ctx.Err() != nil:
		res.ExitCode = 1
		res.Kind = FailureSpawn
		res.Stderr = fmt.Sprintf("Execution error: %v", ctx.Err())
	case out.Err != nil:
		res.ExitCode = 1
		res.Kind = FailureSpawn
		res.Stderr = fmt.Sprintf("Execution error: %v", out.Err)
		logger.ErrorCF("shell", "Command could not run", map[string]interface{}{
			"command": command,
			"error":   out.Err.Error(),
		})
	case out.ExitCode != 0:
		res.Kind = FailureExit
	}

	logger.DebugCF("shell", "Command completed", map[string]interface{}{
		"command":     command,
		"exit_code":   res.ExitCode,
		"duration_ms": duration,
	})
	return res
}

// changeDir handles the navigation command in-process: cd has no effect on
// a child, so only the tracked directory can change.
func (e *Executor) changeDir(spec CommandSpec, workDir string) ExecutionResult {
	start := time.Now()
	target := ""
	if len(spec.Args) > 0 {
		target = spec.Args[0]
	}
	if target == "" || target == "~" {
		if h, err := os.UserHomeDir(); err == nil {
			target = h
		}
	} else if strings.HasPrefix(target, "~/") {
		if h, err := os.UserHomeDir(); err == nil {
			target = filepath.Join(h, target[2:])
		}
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(workDir, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		res := Failure(FailureExit, spec.Text(), fmt.Sprintf("cd: no such directory: %s", target))
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}

	e.mu.Lock()
	e.currentDir = target
	e.mu.Unlock()

	logger.InfoCF("shell", "Working directory changed", map[string]interface{}{
		"cwd": target,
	})
	return ExecutionResult{
		Stdout:     target + "\n",
		Command:    spec.Text(),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func (e *Executor) resolveDir(dir string) string {
	current := e.CurrentDir()
	if strings.TrimSpace(dir) == "" {
		return current
	}
	if !filepath.IsAbs(dir) {
		return filepath.Join(current, dir)
	}
	return dir
}

// ExecSpawner runs processes with os/exec.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(ctx context.Context, req SpawnRequest) SpawnResult {
	cmd := exec.CommandContext(ctx, req.Program, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = req.Env
	}
	cmd.WaitDelay = killWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := SpawnResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			res.ExitCode = signalExitCode(exitErr)
		}
		return res
	}
	res.ExitCode = 1
	res.Err = err
	return res
}

// signalExitCode follows the shell convention of 128+signal for a child
// killed by a signal. Timeouts are classified by the executor, not here.
func signalExitCode(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	// Remove keys we override (case-sensitive; matches typical UNIX semantics).
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		keep := true
		for k := range overrides {
			if strings.HasPrefix(kv, k+"=") {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, kv)
		}
	}
	for k, v := range overrides {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// sanitize drops invalid UTF-8 sequences.
func sanitize(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}
