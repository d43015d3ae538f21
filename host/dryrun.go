package host

import (
	"context"
	"fmt"
)

// DryRunHost is bound when neither a mock nor a live host applies: the
// runner picks it when it has no configuration at all, and when MOCK is
// disabled but no HA_URL is set; it is also used to exercise the
// interpreter in isolation. Every call is a no-op that records its intent
// as an output line instead of touching anything.
type DryRunHost struct {
	report *Report
}

func NewDryRunHost(report *Report) *DryRunHost {
	return &DryRunHost{report: report}
}

func (h *DryRunHost) Call(_ context.Context, service string, args []any) (any, error) {
	h.report.AppendOutput(fmt.Sprintf("[Dry Run] CALL %s(%v)", service, args))
	return map[string]any{"success": true, "simulated": true}, nil
}

func (h *DryRunHost) Get(_ context.Context, entityID, varName string) (any, error) {
	h.report.AppendOutput(fmt.Sprintf("[Dry Run] GET %s INTO $%s", entityID, varName))
	return nil, nil
}

func (h *DryRunHost) Set(_ context.Context, entityID string, value any) error {
	h.report.AppendOutput(fmt.Sprintf("[Dry Run] SET %s = %v", entityID, value))
	return nil
}

func (h *DryRunHost) Import(_ context.Context, name string) (string, error) {
	return "", fmt.Errorf("script '%s' not found", name)
}
