package interp

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kwld/homescript/host"
	"github.com/kwld/homescript/hsvm"
)

const maxLoopIterations = 100000

type frame struct {
	returnPC   int
	savedScope hsvm.Scope
}

// Interpreter executes one parsed HomeScript program against a scope, an
// evaluator, and a capability host. One Interpreter instance is owned
// exclusively by one run; nothing here is safe to share across goroutines.
type Interpreter struct {
	ev   *hsvm.Evaluator
	opts Options

	prog  *program
	scope hsvm.Scope

	callStack   []frame
	breakpoints map[int]bool
	stepping    bool
	imported    map[string]bool
	loopChecks  int
	chainTaken  map[int]bool
}

// Execute parses source and runs it to completion, returning the final
// output lines and scope, or a HomeScriptError on failure. A BREAK is not
// an error: it ends the run with a Result carrying BreakCode/BreakMessage.
func Execute(ctx context.Context, source string, ev *hsvm.Evaluator, opts Options) (*Result, error) {
	if opts.Host == nil {
		return nil, fmt.Errorf("interp: Execute called without a capability host bound")
	}

	prog, err := parse(source)
	if err != nil {
		pe, ok := err.(*ParseError)
		if ok {
			return nil, &HomeScriptError{Message: pe.Message, Line: pe.Line}
		}
		return nil, err
	}

	scope := hsvm.Scope{}
	for k, v := range defaultEnums() {
		scope[k] = v
	}
	for k, v := range opts.Scope {
		scope[k] = v
	}

	interp := &Interpreter{
		ev:          ev,
		opts:        opts,
		prog:        prog,
		scope:       scope,
		breakpoints: toSet(opts.Breakpoints),
		stepping:    opts.DebugStepMode == "manual",
		imported:    map[string]bool{},
	}

	err = interp.run(ctx)
	if ab, ok := err.(*abortSignal); ok {
		if interp.opts.Report != nil {
			interp.opts.Report.AppendEvent(host.SourceEngine, host.LevelInfo, ab.message, nil)
		}
		code := ab.code
		return &Result{
			Output:       interp.outputSnapshot(),
			Variables:    copyScope(interp.scope),
			BreakCode:    &code,
			BreakMessage: ab.message,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Output: interp.outputSnapshot(), Variables: copyScope(interp.scope)}, nil
}

func toSet(lines []int) map[int]bool {
	out := make(map[int]bool, len(lines))
	for _, l := range lines {
		out[l] = true
	}
	return out
}

func copyScope(s hsvm.Scope) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (in *Interpreter) outputSnapshot() []string {
	if in.opts.Report == nil {
		return nil
	}
	return append([]string(nil), in.opts.Report.Output...)
}

func (in *Interpreter) appendOutput(line string) {
	if in.opts.Report != nil {
		in.opts.Report.AppendOutput(line)
	}
}

// run is the interpreter's sole entrypoint loop: a program-counter walk
// over the flat statement list, dispatching by kind and following the
// jump table linkBlocks computed at parse time.
func (in *Interpreter) run(ctx context.Context) error {
	pc := 0
	for pc < len(in.prog.stmts) {
		s := &in.prog.stmts[pc]

		if decision, err := in.checkDebugger(s); err != nil {
			return err
		} else if decision == DebugStop {
			return newErr(s.line, "Debugger stopped")
		}

		next, err := in.exec(ctx, pc, s)
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

func (in *Interpreter) checkDebugger(s *stmt) (DebugDecision, error) {
	isBreakpoint := in.breakpoints[s.line]
	if !isBreakpoint && !in.stepping {
		return DebugContinue, nil
	}
	if in.opts.DebugStepMode == "auto" {
		return DebugContinue, nil
	}
	if in.opts.OnBreakpoint == nil {
		return DebugStop, nil
	}
	decision := in.opts.OnBreakpoint(s.line, copyScope(in.scope))
	switch decision {
	case DebugStop:
		return DebugStop, nil
	case DebugStep:
		in.stepping = true
	default:
		in.stepping = false
	}
	return decision, nil
}

func (in *Interpreter) exec(ctx context.Context, pc int, s *stmt) (int, error) {
	switch s.kind {
	case kSetVar:
		v, err := in.ev.Eval(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "SET failed: %s", err)
		}
		in.scope[s.varName] = v
		return pc + 1, nil

	case kSetEntity:
		v, err := in.ev.Eval(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "SET failed: %s", err)
		}
		if err := in.opts.Host.Set(ctx, s.entity, v); err != nil {
			return 0, newErr(s.line, "SET failed: %s", err)
		}
		return pc + 1, nil

	case kPrint:
		if s.ifLiteral {
			in.appendOutput(interpolate(s.literalValue, in.scope))
			return pc + 1, nil
		}
		v, err := in.ev.Eval(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "PRINT failed: %s", err)
		}
		in.appendOutput(formatValue(v))
		return pc + 1, nil

	case kGet:
		v, err := in.opts.Host.Get(ctx, s.entity, s.varName)
		if err != nil {
			return 0, newErr(s.line, "GET failed: %s", err)
		}
		in.scope[s.varName] = v
		return pc + 1, nil

	case kCallService:
		args, err := in.evalArgs(s.args)
		if err != nil {
			return 0, newErr(s.line, "CALL failed: %s", err)
		}
		if _, err := in.opts.Host.Call(ctx, s.service, args); err != nil {
			return 0, newErr(s.line, "CALL failed: %s", err)
		}
		return pc + 1, nil

	case kCallFunc:
		return in.callFunction(pc, s)

	case kIf:
		in.setChainTaken(s.endIdx, false)
		cond, err := in.ev.Bool(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "IF condition failed: %s", err)
		}
		if cond {
			in.setChainTaken(s.endIdx, true)
			return pc + 1, nil
		}
		return s.matchIdx, nil

	case kElseIf:
		if in.ifChainTaken(s) {
			return s.endIdx + 1, nil
		}
		cond, err := in.ev.Bool(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "IF condition failed: %s", err)
		}
		if cond {
			in.setChainTaken(s.endIdx, true)
			return pc + 1, nil
		}
		return s.matchIdx, nil

	case kElse:
		taken := in.ifChainTaken(s)
		if taken {
			return s.endIdx + 1, nil
		}
		return pc + 1, nil

	case kEndIf:
		return pc + 1, nil

	case kWhile:
		in.loopChecks++
		if in.loopChecks > maxLoopIterations {
			return 0, newErr(s.line, "Infinite loop detected")
		}
		cond, err := in.ev.Bool(s.expr, in.scope)
		if err != nil {
			return 0, newErr(s.line, "WHILE condition failed: %s", err)
		}
		if cond {
			return pc + 1, nil
		}
		return s.matchIdx + 1, nil

	case kEndWhile:
		return s.matchIdx, nil

	case kContinue:
		if s.enclosing < 0 {
			return 0, newErr(s.line, "CONTINUE outside WHILE")
		}
		return s.enclosing, nil

	case kFunction:
		return s.matchIdx + 1, nil

	case kEndFunction, kReturn:
		if len(in.callStack) == 0 {
			return pc + 1, nil
		}
		f := in.callStack[len(in.callStack)-1]
		in.callStack = in.callStack[:len(in.callStack)-1]
		in.scope = f.savedScope
		return f.returnPC, nil

	case kImport:
		return in.doImport(ctx, pc, s)

	case kRequired:
		v, ok := in.opts.QueryParams[s.varName]
		if !ok {
			return 0, newErr(s.line, "Missing required query variable: %s", s.varName)
		}
		in.scope[s.varName] = v
		if s.validator != "" {
			ok, err := in.ev.Bool(s.validator, in.scope)
			if err != nil || !ok {
				return 0, newErr(s.line, "Validation failed for %s", s.varName)
			}
		}
		return pc + 1, nil

	case kOptional:
		if v, ok := in.opts.QueryParams[s.varName]; ok {
			in.scope[s.varName] = v
			if s.validator != "" {
				valid, err := in.ev.Bool(s.validator, in.scope)
				if err != nil || !valid {
					return 0, newErr(s.line, "Validation failed for %s", s.varName)
				}
			}
			return pc + 1, nil
		}
		if s.hasDef {
			v, err := in.ev.Eval(s.defExpr, in.scope)
			if err != nil {
				return 0, newErr(s.line, "OPTIONAL default failed: %s", err)
			}
			in.scope[s.varName] = v
		} else {
			in.scope[s.varName] = ""
		}
		return pc + 1, nil

	case kLabel:
		return pc + 1, nil

	case kGoto:
		target := in.prog.labels[s.label]
		curFunc, curIn := enclosingFunction(in.prog, pc)
		tgtFunc, tgtIn := enclosingFunction(in.prog, target)
		if curIn != tgtIn || (curIn && tgtIn && curFunc.start != tgtFunc.start) {
			return 0, newErr(s.line, "GOTO cannot cross a function boundary")
		}
		return target, nil

	case kBreak:
		return 0, &abortSignal{code: s.code, message: s.message}

	case kTest:
		return in.execTest(pc, s)
	}
	return pc + 1, nil
}

func (in *Interpreter) ifChainTaken(s *stmt) bool {
	return in.chainTaken != nil && in.chainTaken[s.endIdx]
}

func (in *Interpreter) setChainTaken(endIdx int, v bool) {
	if in.chainTaken == nil {
		in.chainTaken = map[int]bool{}
	}
	in.chainTaken[endIdx] = v
}

func (in *Interpreter) evalArgs(exprs []string) ([]any, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := in.ev.Eval(e, in.scope)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interpreter) callFunction(pc int, s *stmt) (int, error) {
	fn, ok := in.prog.functions[s.funcName]
	if !ok {
		return 0, newErr(s.line, "unknown function %q", s.funcName)
	}
	if len(s.args) != len(fn.params) {
		return 0, newErr(s.line, "%s expects %d arguments, got %d", s.funcName, len(fn.params), len(s.args))
	}
	args, err := in.evalArgs(s.args)
	if err != nil {
		return 0, newErr(s.line, "CALL failed: %s", err)
	}

	local := hsvm.Scope{}
	for k, v := range in.scope {
		local[k] = v
	}
	for i, p := range fn.params {
		local[p] = args[i]
	}

	in.callStack = append(in.callStack, frame{returnPC: pc + 1, savedScope: in.scope})
	in.scope = local
	return fn.start + 1, nil
}

func (in *Interpreter) doImport(ctx context.Context, pc int, s *stmt) (int, error) {
	if in.imported[s.label] {
		return pc + 1, nil
	}
	in.imported[s.label] = true
	src, err := in.opts.Host.Import(ctx, s.label)
	if err != nil {
		return 0, newErr(s.line, "Failed to import '%s': %s", s.label, err)
	}

	sub, err := parse(src)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			return 0, newErr(pe.Line, "Failed to import '%s': %s", s.label, pe.Message)
		}
		return 0, err
	}
	nested := &Interpreter{
		ev:          in.ev,
		opts:        in.opts,
		prog:        sub,
		scope:       in.scope,
		breakpoints: map[int]bool{},
		imported:    in.imported,
	}
	if err := nested.run(ctx); err != nil {
		return 0, err
	}
	in.scope = nested.scope
	return pc + 1, nil
}

var regexLiteral = regexp.MustCompile(`^/(.*)/([a-zA-Z]*)$`)

func (in *Interpreter) execTest(pc int, s *stmt) (int, error) {
	pattern, flags, aIsRegex := parseRegexLiteral(s.testA)
	var valueExpr string
	if aIsRegex {
		valueExpr = s.testB
	} else {
		p2, f2, bIsRegex := parseRegexLiteral(s.testB)
		if !bIsRegex {
			return 0, newErr(s.line, "malformed TEST: neither operand is a regex literal")
		}
		pattern, flags, valueExpr = p2, f2, s.testA
	}

	v, err := in.ev.Eval(valueExpr, in.scope)
	if err != nil {
		return 0, newErr(s.line, "TEST failed: %s", err)
	}

	reSrc := pattern
	if strings.Contains(flags, "i") {
		reSrc = "(?i)" + reSrc
	}
	re, err := regexp.Compile(reSrc)
	if err != nil {
		return 0, newErr(s.line, "TEST failed: invalid regex /%s/%s: %s", pattern, flags, err)
	}

	in.scope[s.varName] = re.MatchString(formatValue(v))
	return pc + 1, nil
}

func parseRegexLiteral(tok string) (pattern, flags string, ok bool) {
	m := regexLiteral.FindStringSubmatch(tok)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

var interpolatePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`)

func interpolate(literal string, scope hsvm.Scope) string {
	return interpolatePattern.ReplaceAllStringFunc(literal, func(tok string) string {
		path := tok[1:]
		return formatValue(hsvm.Resolve(scope, path))
	})
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case hsvm.Undefined:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func defaultEnums() map[string]any {
	return map[string]any{
		"ENUMS": map[string]any{
			"state": map[string]any{
				"on":         "on",
				"off":        "off",
				"home":       "home",
				"not_home":   "not_home",
				"open":       "open",
				"closed":     "closed",
				"locked":     "locked",
				"unlocked":   "unlocked",
				"unknown":    "unknown",
				"playing":    "playing",
				"paused":     "paused",
				"idle":       "idle",
				"armed_home": "armed_home",
				"armed_away": "armed_away",
				"disarmed":   "disarmed",
			},
		},
		"TEST": false,
	}
}
