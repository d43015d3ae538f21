package interp

import (
	"time"

	"github.com/kwld/homescript/host"
)

// DebugDecision is the operator's reply to a breakpoint hook invocation.
type DebugDecision int

const (
	DebugContinue DebugDecision = iota
	DebugStep
	DebugStop
)

// Options configures one Execute call: preset scope, declared-parameter
// source, and the debugger's breakpoint set and step mode.
type Options struct {
	Scope         map[string]any
	QueryParams   map[string]string
	Breakpoints   []int
	DebugStepMode string // "auto" | "manual" | ""
	StepDelay     time.Duration

	Host     host.Capabilities
	Resolver host.ImportResolver
	Report   *host.Report

	// OnBreakpoint is invoked with (line, scope snapshot) whenever the
	// debugger protocol pauses execution; its absence in manual/breakpoint
	// mode is treated as an immediate STOP.
	OnBreakpoint func(line int, scope map[string]any) DebugDecision
}

// Result is what a completed (non-erroring) run returns to its caller.
// BreakCode/BreakMessage are populated when the script terminated via a
// BREAK statement rather than running to its last line.
type Result struct {
	Output      []string
	Variables   map[string]any
	BreakCode   *int
	BreakMessage string
}
