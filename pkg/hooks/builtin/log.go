package builtin

import (
	"context"

	"github.com/nexia-labs/nexia/pkg/hooks"
	"github.com/nexia-labs/nexia/pkg/logger"
)

// LogHandler mirrors hook events into the process log.
type LogHandler struct{}

func NewLogHandler() *LogHandler {
	return &LogHandler{}
}

func (h *LogHandler) Name() string {
	return "log"
}

func (h *LogHandler) Handle(_ context.Context, ev hooks.Event, data hooks.Context) hooks.Result {
	fields := map[string]interface{}{
		"event":    string(ev),
		"event_id": data.EventID,
	}
	if data.Operation != "" {
		fields["operation"] = data.Operation
	}
	if data.Command != "" {
		fields["command"] = data.Command
	}
	if data.ExitCode != nil {
		fields["exit_code"] = *data.ExitCode
	}
	if data.Strategy != "" {
		fields["strategy"] = data.Strategy
	}
	if data.DurationMs > 0 {
		fields["duration_ms"] = data.DurationMs
	}

	component := data.Component
	if component == "" {
		component = "hooks"
	}

	if ev == hooks.EventOnError {
		fields["error"] = data.ErrorMessage
		logger.WarnCF(component, "Hook event reported an error", fields)
		return hooks.Result{Status: hooks.StatusOK, Message: "logged"}
	}
	logger.DebugCF(component, "Hook event", fields)
	return hooks.Result{Status: hooks.StatusOK, Message: "logged"}
}
