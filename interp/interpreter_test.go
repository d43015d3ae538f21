package interp

import (
	"context"
	"strings"
	"testing"

	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/hsvm"
)

func run(t *testing.T, source string, opts Options) (*Result, error) {
	t.Helper()
	if opts.Report == nil {
		opts.Report = host.NewReport("test")
	}
	if opts.Host == nil {
		opts.Host = host.NewDryRunHost(opts.Report)
	}
	return Execute(context.Background(), source, hsvm.New(), opts)
}

func TestSimpleBranch(t *testing.T) {
	src := `
SET $x = 5
IF $x > 3
  PRINT "Greater"
ELSE
  PRINT "Lesser"
END_IF
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "Greater" {
		t.Fatalf("output = %v, want [Greater]", res.Output)
	}
	if res.Variables["x"] != 5 {
		t.Fatalf("x = %v, want 5", res.Variables["x"])
	}
}

func TestWhileWithBreak(t *testing.T) {
	src := `
SET $i = 0
WHILE $i < 10 DO
  IF $i == 3
    BREAK 200 "stopping"
  END_IF
  PRINT $i
  SET $i = $i + 1
END_WHILE
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"0", "1", "2"}
	if strings.Join(res.Output, ",") != strings.Join(want, ",") {
		t.Fatalf("output = %v, want %v", res.Output, want)
	}
	if res.BreakCode == nil || *res.BreakCode != 200 {
		t.Fatalf("BreakCode = %v, want 200", res.BreakCode)
	}
}

func TestRequiredMissing(t *testing.T) {
	_, err := run(t, "REQUIRED $mode", Options{QueryParams: map[string]string{}})
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "Missing required query variable: mode") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequiredAndOptional(t *testing.T) {
	src := `
REQUIRED $mode
OPTIONAL $missing
PRINT "mode=$mode missing=$missing"
`
	res, err := run(t, src, Options{QueryParams: map[string]string{"mode": "night"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "mode=night missing=" {
		t.Fatalf("output = %v", res.Output)
	}
}

func TestInOperatorOverPayload(t *testing.T) {
	src := `
SET $payload = {"mode":"auto","target":22}
PRINT "mode" IN $payload
PRINT "missing" IN $payload
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"true", "false"}
	if strings.Join(res.Output, ",") != strings.Join(want, ",") {
		t.Fatalf("output = %v, want %v", res.Output, want)
	}
}

func TestDebuggerStop(t *testing.T) {
	src := "PRINT \"one\"\nPRINT \"two\"\n"
	calls := 0
	opts := Options{
		Breakpoints: []int{2},
		OnBreakpoint: func(line int, scope map[string]any) DebugDecision {
			calls++
			if line != 2 {
				t.Fatalf("breakpoint fired on line %d, want 2", line)
			}
			return DebugStop
		},
	}
	_, err := run(t, src, opts)
	if err == nil || !strings.Contains(err.Error(), "Debugger stopped") {
		t.Fatalf("expected Debugger stopped error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("breakpoint hook called %d times, want 1", calls)
	}
}

func TestFunctionCallAndArity(t *testing.T) {
	src := `
FUNCTION greet($name)
  PRINT "hi $name"
  RETURN
END_FUNCTION
CALL greet("sam")
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "hi sam" {
		t.Fatalf("output = %v", res.Output)
	}
}

func TestFunctionArityMismatch(t *testing.T) {
	src := `
FUNCTION greet($name)
  PRINT "hi $name"
END_FUNCTION
CALL greet()
`
	_, err := run(t, src, Options{})
	if err == nil || !strings.Contains(err.Error(), "expects 1 arguments, got 0") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGotoAndLabel(t *testing.T) {
	src := `
SET $i = 0
LABEL loop
SET $i = $i + 1
IF $i < 3
  GOTO loop
END_IF
PRINT $i
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "3" {
		t.Fatalf("output = %v, want [3]", res.Output)
	}
}

func TestTestStatement(t *testing.T) {
	src := `
SET $name = "kitchen-light"
TEST $name /^kitchen/ INTO $matched
PRINT $matched
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "true" {
		t.Fatalf("output = %v, want [true]", res.Output)
	}
}

func TestDryRunGetAndSet(t *testing.T) {
	report := host.NewReport("test")
	src := `
GET light.kitchen INTO $state
SET light.kitchen = true
`
	res, err := run(t, src, Options{Report: report})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Variables["state"] != nil {
		t.Fatalf("state = %v, want nil on dry run", res.Variables["state"])
	}
	if len(report.Output) != 2 {
		t.Fatalf("report.Output = %v, want 2 dry-run lines", report.Output)
	}
	if !strings.Contains(report.Output[0], "INTO $state") {
		t.Fatalf("expected the dry-run GET line to name the bound variable, got %q", report.Output[0])
	}
}

func TestEnumsIncludeMediaPlayerAndAlarmStates(t *testing.T) {
	src := `
PRINT $ENUMS.state.playing
PRINT $ENUMS.state.paused
PRINT $ENUMS.state.idle
PRINT $ENUMS.state.armed_home
PRINT $ENUMS.state.armed_away
PRINT $ENUMS.state.disarmed
`
	res, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"playing", "paused", "idle", "armed_home", "armed_away", "disarmed"}
	if strings.Join(res.Output, ",") != strings.Join(want, ",") {
		t.Fatalf("output = %v, want %v", res.Output, want)
	}
}

func TestImportRunsOnceEvenIfCalledTwice(t *testing.T) {
	calls := 0
	resolver := stubResolver{src: `PRINT "from import"`, onCall: func() { calls++ }}
	report := host.NewReport("test")
	src := `
IMPORT "shared"
IMPORT "shared"
`
	res, err := run(t, src, Options{Report: report, Host: trackingImportHost{NewTrackingHost(report, resolver)}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("import resolver called %d times, want 1", calls)
	}
	if len(res.Output) != 1 || res.Output[0] != "from import" {
		t.Fatalf("output = %v", res.Output)
	}
}

type stubResolver struct {
	src    string
	onCall func()
}

func (r stubResolver) SourceForEndpoint(name string) (string, bool) {
	if r.onCall != nil {
		r.onCall()
	}
	return r.src, true
}

type trackingImportHost struct {
	*host.MockHost
}

func NewTrackingHost(report *host.Report, resolver host.ImportResolver) *host.MockHost {
	return host.NewMockHost(report, resolver)
}
