// Package trigger implements the event-trigger engine (C5): matching
// incoming home-automation state-change events against each script's rule
// group, evaluating the group's boolean expression over per-rule variables,
// and handing matched scripts off to a Dispatcher (the execution host, C4).
//
// This file holds the pure, synchronous matching logic — grounded on the
// upstream YAML evaluator's "flatten then evaluate" shape (runtime/engine/
// yaml/evaluator.go) but working over TriggerRule/StateChange values instead
// of flow steps. rules.go has no I/O and no goroutines; engine.go owns the
// websocket connection and calls into this file per delivered event.
package trigger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kwld/homescript/hsvm"
	"github.com/kwld/homescript/script"
)

// StateChange is one "state_changed" event delivered by the automation bus.
type StateChange struct {
	EntityID string
	Old      string
	New      string
}

// MatchRule reports whether rule fires for change, per §4.5's per-eventType
// semantics.
func MatchRule(rule script.TriggerRule, change StateChange) bool {
	if rule.EntityID != change.EntityID {
		return false
	}
	switch rule.EventType {
	case "any_change":
		return change.Old != change.New
	case "toggle":
		if change.Old == change.New {
			return false
		}
		return toggleSideMatches(rule.ToggleFrom, rule.ToggleFromCustom, change.Old) &&
			toggleSideMatches(rule.ToggleTo, rule.ToggleToCustom, change.New)
	case "sensor_levels":
		return matchSensorLevels(rule, change)
	default:
		return false
	}
}

func toggleSideMatches(spec, custom, actual string) bool {
	if spec == "" || spec == "any" {
		return true
	}
	if spec == "custom" {
		return actual == custom
	}
	return actual == spec
}

// matchSensorLevels implements §4.5's sensor_levels rule: both states must
// parse as finite numbers, and the rule fires on a strict crossing of any
// level boundary in either direction, or — preserved per spec.md's Open
// Questions as an intentional quirk, not a bug — when new sits at or above
// some level and the value changed at all, even without a crossing.
func matchSensorLevels(rule script.TriggerRule, change StateChange) bool {
	if len(rule.Levels) == 0 {
		return false
	}
	oldV, oldOK := parseFiniteFloat(change.Old)
	newV, newOK := parseFiniteFloat(change.New)
	if !oldOK || !newOK {
		return false
	}
	for _, lvl := range rule.Levels {
		crossedUp := oldV < lvl.Value && newV >= lvl.Value
		crossedDown := oldV >= lvl.Value && newV < lvl.Value
		if crossedUp || crossedDown {
			return true
		}
	}
	if newV != oldV {
		for _, lvl := range rule.Levels {
			if newV >= lvl.Value {
				return true
			}
		}
	}
	return false
}

func parseFiniteFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RuleVars builds the {ruleVarName -> matched} map §4.5 step 2 describes.
func RuleVars(rules []script.TriggerRule, change StateChange) map[string]bool {
	out := make(map[string]bool, len(rules))
	for _, r := range rules {
		out[r.VarName()] = MatchRule(r, change)
	}
	return out
}

// EvalResult is the outcome of evaluating one rule group against one event.
type EvalResult struct {
	Fired            bool
	Vars             map[string]bool
	ExpressionError  string
}

// stripIfEndIf removes a cosmetic "IF (...)"/"END_IF" wrapper some rule
// expressions carry over from the script editor's autocomplete, per §4.5
// step 3 ("with IF/END_IF stripped").
func stripIfEndIf(expr string) string {
	e := strings.TrimSpace(expr)
	upper := strings.ToUpper(e)
	if strings.HasPrefix(upper, "IF") {
		e = strings.TrimSpace(e[2:])
		e = strings.TrimPrefix(e, "(")
		e = strings.TrimSuffix(strings.TrimSpace(e), ")")
	}
	e = strings.TrimSuffix(strings.TrimSpace(e), "END_IF")
	return strings.TrimSpace(e)
}

// Evaluate runs a rule group against one state change: builds the per-rule
// variable map, then evaluates the group's expression over it (or, if the
// expression is empty, fires iff any rule matched).
func Evaluate(ev *hsvm.Evaluator, cfg script.TriggerConfig, change StateChange) EvalResult {
	vars := RuleVars(cfg.Rules, change)

	scope := hsvm.Scope{}
	for k, v := range vars {
		scope[k] = v
	}

	expr := stripIfEndIf(cfg.RuleExpression)
	if expr == "" {
		fired := false
		for _, v := range vars {
			if v {
				fired = true
				break
			}
		}
		return EvalResult{Fired: fired, Vars: vars}
	}

	result, err := ev.Bool(expr, scope)
	if err != nil {
		return EvalResult{Vars: vars, ExpressionError: fmt.Sprintf("rule expression evaluation failed: %s", err)}
	}
	return EvalResult{Fired: result, Vars: vars}
}

// DeriveEventName synthesizes the event's `name` field from the rules that
// actually matched: a toggle match yields "toggled_<newState>", a plain
// any_change match yields "changed", a sensor_levels match yields
// "level_crossed", and no match falls back to "event".
func DeriveEventName(rules []script.TriggerRule, vars map[string]bool, change StateChange) string {
	for _, r := range rules {
		if r.EventType == "toggle" && vars[r.VarName()] {
			return "toggled_" + sanitizeEventWord(change.New)
		}
	}
	for _, r := range rules {
		if r.EventType == "any_change" && vars[r.VarName()] {
			return "changed"
		}
	}
	for _, r := range rules {
		if r.EventType == "sensor_levels" && vars[r.VarName()] {
			return "level_crossed"
		}
	}
	return "event"
}

func sanitizeEventWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// Payload builds the §4.5 step-4 event payload bound into the dispatched
// script's scope under `event`.
func Payload(cfg script.TriggerConfig, change StateChange, result EvalResult, name string) map[string]any {
	return map[string]any{
		"type":             "rule_group",
		"logic":            cfg.Logic,
		"expression":       cfg.RuleExpression,
		"entity_id":        change.EntityID,
		"name":             name,
		"value":            change.New,
		"matches":          result.Fired,
		"rule_vars":        result.Vars,
		"expression_error": result.ExpressionError,
		"old":              change.Old,
		"current":          change.New,
	}
}
