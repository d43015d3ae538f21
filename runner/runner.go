// Package runner adapts a parsed script and a request-scoped initial scope
// into one interpreter run: it selects the capability host (live, mock, or
// dry-run) per SPEC_FULL.md §10.3's Mock/HA_URL configuration, drives
// interp.Execute, and finalizes the resulting host.Report. Both the HTTP
// run/webhook/debug-access handlers and the trigger engine's dispatch path
// share this one entrypoint, so "what counts as a run" has exactly one
// definition in the codebase.
package runner

import (
	"context"
	"log/slog"

	"github.com/kwld/homescript/config"
	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/hsvm"
	"github.com/kwld/homescript/interp"
	"github.com/kwld/homescript/script"
)

// Runner owns the shared expression evaluator and configuration every run
// is built against.
type Runner struct {
	ev     *hsvm.Evaluator
	cfg    *config.Config
	store  host.ImportResolver
	logger *slog.Logger
}

func New(cfg *config.Config, store host.ImportResolver, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{ev: hsvm.New(), cfg: cfg, store: store, logger: logger}
}

// Evaluator exposes the shared C1 instance to callers (e.g. the trigger-test
// endpoint) that need to evaluate an expression outside of a full run.
func (r *Runner) Evaluator() *hsvm.Evaluator { return r.ev }

// Request bundles the per-run inputs that vary by caller: the HTTP run
// endpoint supplies queryParams+body, the debugger supplies breakpoints,
// the trigger engine supplies an `event` entry in scope.
type Request struct {
	Scope         map[string]any
	QueryParams   map[string]string
	Breakpoints   []int
	DebugStepMode string
	OnBreakpoint  func(line int, scope map[string]any) interp.DebugDecision
	AuthMode      host.AuthMode
}

// Run executes source (chosen by the caller: sc.Code or the debug draft)
// against req and returns the completed report. It never returns a Go
// error for a HomeScript failure: that failure is folded into the report's
// Error field, per §7's "every failed run still returns a complete report".
func (r *Runner) Run(ctx context.Context, sc script.Script, source string, req Request) *host.Report {
	report := host.NewReport(sc.Endpoint)
	capHost := r.capabilitiesFor(report)

	opts := interp.Options{
		Scope:         req.Scope,
		QueryParams:   req.QueryParams,
		Breakpoints:   req.Breakpoints,
		DebugStepMode: req.DebugStepMode,
		OnBreakpoint:  req.OnBreakpoint,
		Host:          capHost,
		Report:        report,
	}

	result, err := interp.Execute(ctx, source, r.ev, opts)

	authMode := req.AuthMode
	if authMode == "" {
		authMode = host.AuthUnknown
	}
	haMode := host.HAModeMock
	if r.cfg != nil && r.cfg.Live() {
		haMode = host.HAModeReal
	}

	if err != nil {
		line := 0
		msg := err.Error()
		status := 400
		if hse, ok := err.(*interp.HomeScriptError); ok {
			line = hse.Line
			msg = hse.Message
		}
		report.Finalize(map[string]any{}, &host.RunError{Message: msg, Line: &line}, authMode, haMode, status)
		return report
	}

	var runErr *host.RunError
	status := 0
	if result.BreakCode != nil {
		report.AppendEvent(host.SourceEngine, host.LevelWarning, "script terminated via BREAK", nil)
		if *result.BreakCode >= 400 {
			runErr = &host.RunError{Message: result.BreakMessage}
			status = *result.BreakCode
		}
	}
	report.Finalize(result.Variables, runErr, authMode, haMode, status)
	return report
}

func (r *Runner) capabilitiesFor(report *host.Report) host.Capabilities {
	if r.cfg == nil {
		return host.NewDryRunHost(report)
	}
	if r.cfg.Mock {
		return host.NewMockHost(report, r.store)
	}
	if r.cfg.Live() {
		return host.NewLiveHost(report, r.store, r.cfg.HAURL, r.cfg.HAToken, r.cfg.HATimeout)
	}
	return host.NewDryRunHost(report)
}
