// Package hsvm implements the HomeScript expression evaluator (C1): the
// sublanguage used in SET right-hand sides, IF/WHILE conditions, and any
// place a HomeScript statement needs a value.
//
// Expressions compile through expr-lang/expr, the same library the upstream
// flow engine uses for its YAML step evaluator. A textual preprocessing pass
// aliases HomeScript's case-insensitive AND/OR/NOT/IN keywords onto
// expr-lang's operators and promotes a bare `=` to `==` (but leaves `==`,
// `!=`, `<=`, `>=` alone), and a custom `in` operator implements the
// array/string/object containment semantics HomeScript documents instead of
// expr-lang's default (which only supports array/map membership).
package hsvm

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Jeffail/gabs/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Scope is the variable namespace an expression is evaluated against. Keys
// may be dotted ("device.attributes.brightness"); HSVM walks the dots with
// gabs so a missing intermediate path resolves to Undefined rather than an
// error.
type Scope map[string]any

// Undefined is the value produced when a dotted path does not resolve.
// No expr-lang operator is overridden for it, so using Undefined in
// arithmetic is an evaluation error rather than yielding Undefined.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }

// Evaluator compiles and caches HomeScript expressions. A single Evaluator
// is shared across every concurrent request handler and the trigger
// engine's dispatch goroutine (spec §5's parallel-handlers-plus-persistent-
// task model), so the cache is guarded by a mutex the same way
// script.InMemoryStore guards its own map.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Eval compiles (or reuses a cached compile of) expr and runs it against
// scope. Dotted identifiers are pre-resolved into the flat env expr-lang
// sees, so expr never has to know about HomeScript's path syntax.
func (ev *Evaluator) Eval(exprSrc string, scope Scope) (any, error) {
	env := flattenScope(scope)

	program, ok := ev.compiled(exprSrc)
	if !ok {
		normalized := normalize(exprSrc)
		compiled, err := expr.Compile(normalized,
			expr.Env(env),
			expr.AllowUndefinedVariables(),
			homescriptIn(),
			builtins()...,
		)
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", exprSrc, err)
		}
		ev.mu.Lock()
		ev.cache[exprSrc] = compiled
		ev.mu.Unlock()
		program = compiled
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", exprSrc, err)
	}
	return normalizeResult(out), nil
}

func (ev *Evaluator) compiled(exprSrc string) (*vm.Program, bool) {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	program, ok := ev.cache[exprSrc]
	return program, ok
}

// Bool evaluates expr and requires a boolean result, as IF/WHILE do.
func (ev *Evaluator) Bool(exprSrc string, scope Scope) (bool, error) {
	v, err := ev.Eval(exprSrc, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q evaluated to %T, expected boolean", exprSrc, v)
	}
	return b, nil
}

// Resolve walks a dotted path ("a.b.c") through scope using gabs. A missing
// segment anywhere along the path returns Undefined, never an error — this
// is the "missing path never errors" invariant HomeScript scripts rely on
// when probing optional device attributes.
func Resolve(scope Scope, path string) any {
	if v, ok := scope[path]; ok {
		return v
	}
	wrapped := gabs.Wrap(map[string]any(scope))
	if !wrapped.ExistsP(path) {
		return Undefined{}
	}
	return wrapped.Path(path).Data()
}

// flattenScope walks scope and injects every dotted path as its own flat
// key (gabs-addressed) so expr-lang's identifier resolution finds both
// top-level names ("device") and dotted ones ("device.attributes.brightness")
// without expr-lang needing to understand nested member access semantics
// that differ from HomeScript's "missing means undefined" rule.
func flattenScope(scope Scope) map[string]any {
	env := make(map[string]any, len(scope)*2+1)
	for k, v := range scope {
		env[k] = v
	}
	flatten("", map[string]any(scope), env)
	// expr.Operator("in", "HSIn") resolves HSIn by looking it up in the
	// environment passed to both Compile and Run, not as a package symbol.
	env["HSIn"] = HSIn
	return env
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		out[key] = v
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
		}
	}
}

func normalizeResult(v any) any {
	if v == nil {
		return Undefined{}
	}
	return v
}

// keyword aliasing: HomeScript allows AND/OR/NOT/IN in any case; expr-lang
// only recognizes the lowercase spellings, and `=` where expr-lang wants `==`.
// TRUE/FALSE are HomeScript's (case-sensitive, uppercase) boolean literals
// per spec §4.1/§6; expr-lang only knows the lowercase `true`/`false`.
var (
	keywordPattern = regexp.MustCompile(`(?i)\b(AND|OR|NOT|IN)\b`)
	boolPattern    = regexp.MustCompile(`\b(TRUE|FALSE)\b`)
	bareEquals     = regexp.MustCompile(`([^=!<>])=([^=])`)
	sigilPattern   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_.]*)`)
)

// normalize rewrites HomeScript expression surface into expr-lang surface:
// the `$` variable sigil is stripped (flattenScope already exposes dotted
// paths as plain identifiers), keywords are lowercased, TRUE/FALSE fold to
// expr-lang's boolean literals, and a bare `=` is promoted to `==`.
func normalize(src string) string {
	out := sigilPattern.ReplaceAllString(src, "$1")
	out = keywordPattern.ReplaceAllStringFunc(out, strings.ToLower)
	out = boolPattern.ReplaceAllStringFunc(out, strings.ToLower)
	// Promote a single '=' to '==' unless adjacent to !, <, >, or another =.
	for {
		loc := bareEquals.FindStringSubmatchIndex(out)
		if loc == nil {
			break
		}
		out = out[:loc[2]] + out[loc[2]:loc[3]] + "==" + out[loc[4]:loc[5]] + out[loc[5]:]
	}
	return out
}

// homescriptIn overrides expr-lang's `in` operator. HomeScript's IN is
// defined by string form (spec §4.1):
//   - array:  true if any element's string form equals the needle's string form
//   - string: true if the needle's string form is a substring of the haystack
//   - object: true if the needle's string form is a present key
func homescriptIn() expr.Option {
	return expr.Operator("in", "HSIn")
}

// HSIn is exported so expr-lang's operator override can resolve it by name.
func HSIn(needle, haystack any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, stringForm(needle))
	case map[string]any:
		_, exists := h[stringForm(needle)]
		return exists
	case Undefined:
		return false
	default:
		rv := reflect.ValueOf(haystack)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		target := stringForm(needle)
		for i := 0; i < rv.Len(); i++ {
			if stringForm(rv.Index(i).Interface()) == target {
				return true
			}
		}
		return false
	}
}

// stringForm renders a value the way HomeScript compares it for IN: the
// same textual form PRINT interpolation would produce (see interp's
// formatValue), so "5" and 5 and 5.0 all compare equal. The one difference
// is Undefined, which renders here as "undefined" and in formatValue as "".
func stringForm(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case Undefined:
		return "undefined"
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

func builtins() []expr.Option {
	return []expr.Option{
		expr.Function("len", func(params ...any) (any, error) {
			switch v := params[0].(type) {
			case string:
				return len(v), nil
			case Undefined:
				return 0, nil
			default:
				rv := reflect.ValueOf(v)
				if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map || rv.Kind() == reflect.Array {
					return rv.Len(), nil
				}
				return 0, fmt.Errorf("len() unsupported for %T", v)
			}
		}),
		expr.Function("round", func(params ...any) (any, error) {
			f, ok := toFloat(params[0])
			if !ok {
				return nil, fmt.Errorf("round() expects a number")
			}
			return float64(int64(f + 0.5)), nil
		}),
		expr.Function("abs", func(params ...any) (any, error) {
			f, ok := toFloat(params[0])
			if !ok {
				return nil, fmt.Errorf("abs() expects a number")
			}
			if f < 0 {
				f = -f
			}
			return f, nil
		}),
		expr.Function("defined", func(params ...any) (any, error) {
			_, isUndef := params[0].(Undefined)
			return !isUndef, nil
		}),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
