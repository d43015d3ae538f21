package host

import (
	"context"
	"strings"
	"testing"
)

func TestDryRunHostRecordsOutputLines(t *testing.T) {
	report := NewReport("test")
	h := NewDryRunHost(report)
	ctx := context.Background()

	if v, err := h.Get(ctx, "light.kitchen", "brightness"); err != nil || v != nil {
		t.Fatalf("Get() = (%v, %v), want (nil, nil)", v, err)
	}
	if err := h.Set(ctx, "light.kitchen", true); err != nil {
		t.Fatalf("Set(): %v", err)
	}

	if len(report.Output) != 2 {
		t.Fatalf("Output = %v, want 2 dry-run lines", report.Output)
	}
	if !strings.Contains(report.Output[0], "[Dry Run] GET light.kitchen INTO $brightness") {
		t.Fatalf("unexpected GET line: %q", report.Output[0])
	}
	if !strings.Contains(report.Output[1], "[Dry Run] SET light.kitchen") {
		t.Fatalf("unexpected SET line: %q", report.Output[1])
	}
}

func TestMockHostAlwaysSucceeds(t *testing.T) {
	report := NewReport("test")
	h := NewMockHost(report, nil)
	ctx := context.Background()

	v, err := h.Get(ctx, "sensor.power", "power")
	if err != nil || v != "mock_state" {
		t.Fatalf("Get() = (%v, %v), want (mock_state, nil)", v, err)
	}
	if err := h.Set(ctx, "light.kitchen", true); err != nil {
		t.Fatalf("Set(): %v", err)
	}
	if len(report.HAStates) != 2 {
		t.Fatalf("HAStates = %v, want 2 entries", report.HAStates)
	}
	for _, ev := range report.HAStates {
		if ev.Status != StatusSuccess {
			t.Fatalf("mock host recorded non-success status: %+v", ev)
		}
	}
}

func TestDomainServiceMapping(t *testing.T) {
	cases := []struct {
		entity  string
		value   any
		service string
		direct  bool
	}{
		{"light.kitchen", true, "light.turn_on", false},
		{"light.kitchen", false, "light.turn_off", false},
		{"input_number.target_temp", 21.5, "input_number.set_value", false},
		{"input_select.mode", "away", "input_select.select_option", false},
		{"sensor.power", 100, "", true},
	}
	for _, tc := range cases {
		domain := strings.SplitN(tc.entity, ".", 2)[0]
		service, _, direct := domainService(domain, tc.entity, tc.value)
		if service != tc.service || direct != tc.direct {
			t.Fatalf("domainService(%q, %v) = (%q, %v), want (%q, %v)",
				tc.entity, tc.value, service, direct, tc.service, tc.direct)
		}
	}
}
