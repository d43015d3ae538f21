package runner

import (
	"context"
	"log/slog"

	"github.com/kwld/homescript/script"
)

// TriggerDispatcher adapts Runner to trigger.Dispatcher: a matched rule
// group hands its event payload and bound script off to the same Run
// entrypoint the HTTP run/webhook handlers use, with `event` seeded into
// the initial scope per §4.5 step 4.
type TriggerDispatcher struct {
	run    *Runner
	logger *slog.Logger
}

func NewTriggerDispatcher(run *Runner, logger *slog.Logger) *TriggerDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerDispatcher{run: run, logger: logger}
}

func (d *TriggerDispatcher) DispatchTriggered(ctx context.Context, sc script.Script, event map[string]any) {
	report := d.run.Run(ctx, sc, sc.Code, Request{
		Scope: map[string]any{"event": event},
	})
	if !report.Success {
		d.logger.Warn("trigger engine: dispatched script failed", "endpoint", sc.Endpoint, "error", report.Error)
	}
}
