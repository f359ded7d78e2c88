package shell

import "strings"

// FailureKind classifies a non-successful ExecutionResult.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailurePolicy     FailureKind = "policy_violation"
	FailureTimeout    FailureKind = "timeout"
	FailureSpawn      FailureKind = "spawn_error"
	FailureExit       FailureKind = "exit_status"
	FailureRepository FailureKind = "repository_missing"
)

// TimeoutExitCode is reported when a process exceeds its time bound.
const TimeoutExitCode = 124

type CommandSpec struct {
	Program    string
	Args       []string
	WorkingDir string
}

// Text renders the spec the way it appears in results and logs.
func (s CommandSpec) Text() string {
	return strings.TrimSpace(strings.Join(append([]string{s.Program}, s.Args...), " "))
}

// ExecutionResult is produced exactly once per Execute call.
type ExecutionResult struct {
	Stdout     string      `json:"stdout"`
	Stderr     string      `json:"stderr"`
	ExitCode   int         `json:"return_code"`
	Command    string      `json:"command"`
	DurationMs int64       `json:"duration_ms"`
	EventID    string      `json:"event_id,omitempty"`
	Kind       FailureKind `json:"failure_kind,omitempty"`
}

func (r ExecutionResult) Succeeded() bool {
	return r.ExitCode == 0 && r.Kind == FailureNone
}

// Failure builds a result for a failure detected before or instead of
// spawning a process.
func Failure(kind FailureKind, command, stderr string) ExecutionResult {
	return ExecutionResult{
		Stderr:   stderr,
		ExitCode: 1,
		Command:  command,
		Kind:     kind,
	}
}
