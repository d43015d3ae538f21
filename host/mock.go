package host

import (
	"context"
)

// MockHost simulates a responsive automation backend without making any
// network call — the MOCK=true environment mode. Unlike DryRunHost it
// returns affirmative results so scripts can exercise their full happy
// path during development.
type MockHost struct {
	report   *Report
	resolver ImportResolver
}

func NewMockHost(report *Report, resolver ImportResolver) *MockHost {
	return &MockHost{report: report, resolver: resolver}
}

func (h *MockHost) Call(_ context.Context, service string, args []any) (any, error) {
	h.report.AppendHAState(HAStateEvent{Action: ActionCall, Status: StatusSuccess, Service: service, Payload: args})
	h.report.AppendEvent(SourceHA, LevelInfo, "mock call "+service, nil)
	return map[string]any{"success": true, "simulated": true}, nil
}

func (h *MockHost) Get(_ context.Context, entityID, _ string) (any, error) {
	h.report.AppendHAState(HAStateEvent{Action: ActionGet, Status: StatusSuccess, EntityID: entityID, Value: "mock_state"})
	h.report.AppendEvent(SourceHA, LevelInfo, "mock get "+entityID, nil)
	return "mock_state", nil
}

func (h *MockHost) Set(_ context.Context, entityID string, value any) error {
	h.report.AppendHAState(HAStateEvent{Action: ActionSet, Status: StatusSuccess, EntityID: entityID, Value: value})
	h.report.AppendEvent(SourceHA, LevelInfo, "mock set "+entityID, nil)
	return nil
}

func (h *MockHost) Import(_ context.Context, name string) (string, error) {
	if h.resolver == nil {
		return "", errScriptNotFound(name)
	}
	src, ok := h.resolver.SourceForEndpoint(name)
	if !ok {
		return "", errScriptNotFound(name)
	}
	return src, nil
}
