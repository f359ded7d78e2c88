package shell

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SystemInfo is a best-effort snapshot of the host, gathered through Execute
// so the policy applies.
type SystemInfo struct {
	CurrentDir      string   `json:"current_directory"`
	System          string   `json:"system,omitempty"`
	DiskUsage       string   `json:"disk_usage,omitempty"`
	Memory          string   `json:"memory,omitempty"`
	AllowedCommands []string `json:"allowed_commands"`
}

func (e *Executor) SystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		CurrentDir:      e.CurrentDir(),
		AllowedCommands: e.AllowedCommands(),
	}
	if res := e.Execute(ctx, CommandSpec{Program: "uname", Args: []string{"-a"}}); res.Succeeded() {
		info.System = strings.TrimSpace(res.Stdout)
	}
	if res := e.Execute(ctx, CommandSpec{Program: "df", Args: []string{"-h"}}); res.Succeeded() {
		info.DiskUsage = res.Stdout
	}
	// free is absent on macOS; a failure simply leaves Memory empty.
	if res := e.Execute(ctx, CommandSpec{Program: "free", Args: []string{"-h"}}); res.Succeeded() {
		info.Memory = res.Stdout
	}
	return info
}

func (e *Executor) ListProcesses(ctx context.Context) ExecutionResult {
	return e.Execute(ctx, CommandSpec{Program: "ps", Args: []string{"aux"}})
}

// StartAssistantSession launches the assistant CLI in projectDir (or the
// tracked directory).
func (e *Executor) StartAssistantSession(ctx context.Context, projectDir string) ExecutionResult {
	dir := e.resolveDir(projectDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Failure(FailureSpawn, "claude code "+dir, fmt.Sprintf("Directory does not exist: %s", dir))
	}
	return e.Execute(ctx, CommandSpec{Program: "claude", Args: []string{"code"}, WorkingDir: dir})
}
