// Package script defines the HomeScript script and trigger-config data
// model and an in-memory store for it. The reference system persists
// scripts in a relational schema; that adapter is out of scope here (see
// SPEC_FULL.md §13), so the store is the narrow interface the rest of the
// system needs: CRUD plus the read-path C5 uses on every bus event.
package script

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Script is a single HomeScript program bound to an HTTP endpoint.
type Script struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Endpoint      string        `json:"endpoint"`
	Code          string        `json:"code"`
	DebugCode     string        `json:"debugCode"`
	DebugEnabled  bool          `json:"debugEnabled"`
	TestParams    string        `json:"testParams"`
	TriggerConfig TriggerConfig `json:"triggerConfig"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// TriggerConfig is a rule group: a logical combinator over a set of rules,
// evaluated against each incoming state-change event by the trigger engine.
type TriggerConfig struct {
	Logic          string        `json:"logic"` // "AND" | "OR"
	RuleExpression string        `json:"ruleExpression"`
	Rules          []TriggerRule `json:"rules"`
}

// HasRules reports whether this config is wired to any rule, i.e. whether
// the trigger engine should consider this script at all.
func (c TriggerConfig) HasRules() bool { return len(c.Rules) > 0 }

// TriggerRule is one condition within a rule group.
type TriggerRule struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	EntityID         string  `json:"entityId"`
	EventType        string  `json:"eventType"` // any_change | toggle | sensor_levels
	ToggleFrom       string  `json:"toggleFrom"`
	ToggleTo         string  `json:"toggleTo"`
	ToggleFromCustom string  `json:"toggleFromCustom"`
	ToggleToCustom   string  `json:"toggleToCustom"`
	PreviewScale     float64 `json:"previewScale"`
	Levels           []Level `json:"levels"`
	RangeMin         float64 `json:"rangeMin"`
	RangeMax         float64 `json:"rangeMax"`
}

// Level is one threshold within a sensor_levels rule.
type Level struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// VarName returns the rule's contribution name in the rule-group boolean
// expression, per toRuleVarName: uppercase, non-identifier characters
// become underscores, and a leading digit gets a RULE_<n> prefix.
func (r TriggerRule) VarName() string {
	return toRuleVarName(r.Name)
}

var nonIdentChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

func toRuleVarName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	upper = nonIdentChar.ReplaceAllString(upper, "_")
	if upper == "" {
		upper = "RULE"
	}
	if upper[0] >= '0' && upper[0] <= '9' {
		upper = "RULE_" + upper
	}
	return upper
}

// NormalizeTriggerConfig canonicalizes a trigger config so repeated
// normalization is idempotent: trims strings, uppercases logic, and drops
// rules with a blank entity ID (which could never match anything).
func NormalizeTriggerConfig(c TriggerConfig) TriggerConfig {
	out := TriggerConfig{
		Logic:          strings.ToUpper(strings.TrimSpace(c.Logic)),
		RuleExpression: strings.TrimSpace(c.RuleExpression),
	}
	if out.Logic != "AND" && out.Logic != "OR" {
		out.Logic = "AND"
	}
	for _, r := range c.Rules {
		r.EntityID = strings.TrimSpace(r.EntityID)
		if r.EntityID == "" {
			continue
		}
		r.Name = strings.TrimSpace(r.Name)
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		out.Rules = append(out.Rules, r)
	}
	return out
}

// ValidEndpoint reports whether endpoint matches the URL-safe charset
// scripts are keyed by.
var endpointPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func ValidEndpoint(endpoint string) bool {
	return endpoint != "" && endpointPattern.MatchString(endpoint)
}

// New constructs a Script with a fresh ID and creation timestamp.
func New(name, endpoint, code string) Script {
	return Script{
		ID:        uuid.NewString(),
		Name:      name,
		Endpoint:  endpoint,
		Code:      code,
		CreatedAt: time.Now(),
	}
}
