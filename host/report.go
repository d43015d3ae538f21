package host

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped on every ExecutionReport. Bump it on any
// breaking change to the report shape.
const SchemaVersion = 1

// AuthMode records which credential path authorized a run.
type AuthMode string

const (
	AuthJWT         AuthMode = "jwt"
	AuthServiceKey  AuthMode = "service_key"
	AuthDebugBypass AuthMode = "debug_bypass"
	AuthMock        AuthMode = "mock"
	AuthUnknown     AuthMode = "unknown"
)

// HAMode records whether the run was bound to a live automation backend.
type HAMode string

const (
	HAModeReal HAMode = "real"
	HAModeMock HAMode = "mock"
)

// EventSource identifies which subsystem produced an ExecutionEvent.
type EventSource string

const (
	SourceFrontend EventSource = "frontend"
	SourceBackend  EventSource = "backend"
	SourceEngine   EventSource = "engine"
	SourceHA       EventSource = "ha"
)

// EventLevel is the severity of an ExecutionEvent.
type EventLevel string

const (
	LevelInfo    EventLevel = "info"
	LevelSuccess EventLevel = "success"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// ExecutionEvent is one entry in a run's trace.
type ExecutionEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Level     EventLevel     `json:"level"`
	Message   string         `json:"message"`
	Line      *int           `json:"line,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HAAction identifies which capability slot produced an HAStateEvent.
type HAAction string

const (
	ActionGet  HAAction = "get"
	ActionSet  HAAction = "set"
	ActionCall HAAction = "call"
)

// HAStatus is the outcome of a host-callback invocation.
type HAStatus string

const (
	StatusSuccess HAStatus = "success"
	StatusFail    HAStatus = "fail"
)

// HAStateEvent records one host-callback invocation (Get/Set/Call).
type HAStateEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    HAAction  `json:"action"`
	Status    HAStatus  `json:"status"`
	EntityID  string    `json:"entityId,omitempty"`
	Service   string    `json:"service,omitempty"`
	Value     any       `json:"value,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RunError is the interpreter failure surfaced on a failed report.
type RunError struct {
	Message string `json:"message"`
	Line    *int   `json:"line,omitempty"`
}

// Meta carries request-scoped bookkeeping stamped by the host on completion.
type Meta struct {
	RequestID  string   `json:"requestId"`
	Endpoint   string   `json:"endpoint"`
	AuthMode   AuthMode `json:"authMode"`
	HAMode     HAMode   `json:"haMode"`
	DurationMs int64    `json:"durationMs"`
	HTTPStatus int      `json:"httpStatus"`
}

// Report is the structured artifact returned by every run. It is built up
// incrementally during execution (Append* methods are safe for the
// interpreter's synchronous call pattern) and finalized once the run ends.
type Report struct {
	mu            sync.Mutex
	SchemaVersion int              `json:"schemaVersion"`
	Success       bool             `json:"success"`
	DurationMs    int64            `json:"durationMs"`
	Output        []string         `json:"output"`
	Variables     map[string]any   `json:"variables"`
	Events        []ExecutionEvent `json:"events"`
	HAStates      []HAStateEvent   `json:"haStates"`
	Error         *RunError        `json:"error,omitempty"`
	Meta          Meta             `json:"meta"`

	startedAt time.Time
}

// NewReport starts a fresh report for one run.
func NewReport(endpoint string) *Report {
	return &Report{
		SchemaVersion: SchemaVersion,
		Output:        []string{},
		Variables:     map[string]any{},
		Events:        []ExecutionEvent{},
		HAStates:      []HAStateEvent{},
		Meta: Meta{
			RequestID: uuid.NewString(),
			Endpoint:  endpoint,
		},
		startedAt: time.Now(),
	}
}

func (r *Report) AppendOutput(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Output = append(r.Output, line)
}

func (r *Report) AppendEvent(source EventSource, level EventLevel, message string, line *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ExecutionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    source,
		Level:     level,
		Message:   message,
		Line:      line,
	})
}

func (r *Report) AppendHAState(ev HAStateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.HAStates = append(r.HAStates, ev)
}

// Finalize stamps duration/status/meta. httpStatus follows the invariant:
// 200 for success, otherwise the interpreter-supplied code (default 400).
func (r *Report) Finalize(variables map[string]any, runErr *RunError, authMode AuthMode, haMode HAMode, overrideStatus int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Variables = variables
	r.Success = runErr == nil
	r.Error = runErr
	r.DurationMs = time.Since(r.startedAt).Milliseconds()
	r.Meta.DurationMs = r.DurationMs
	r.Meta.AuthMode = authMode
	r.Meta.HAMode = haMode

	status := overrideStatus
	if r.Success {
		status = 200
	} else if status == 0 {
		status = 400
	}
	r.Meta.HTTPStatus = status
}
