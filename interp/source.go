// Package interp implements the HomeScript interpreter (C3): tokenizing
// logical lines, parsing them into a flat, jump-addressable statement list,
// and executing that list against an expression evaluator (hsvm) and an
// execution host (host.Capabilities).
//
// The statement list itself mirrors the upstream DSL parser's scanning
// style (position-based, string/escape-aware) adapted from line-block
// scanning to HomeScript's line-oriented syntax rather than brace blocks.
package interp

import "strings"

// Line is one logical line of HomeScript source: one physical line, except
// an IF condition that continues across lines ending in a logical operator.
type Line struct {
	Number int // 1-based physical line number of the first physical line
	Text   string
}

var continuationSuffixes = []string{"AND", "OR", "NOT", "&&", "||", "!"}

// splitLogicalLines implements the source model in §4.3.1: trailing
// whitespace-only and '#'-prefixed lines are transparent; an IF condition
// may continue across physical lines when the accumulated text ends in a
// logical operator or the next non-blank line begins with one.
func splitLogicalLines(source string) []Line {
	raw := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	var out []Line
	i := 0
	for i < len(raw) {
		lineNo := i + 1
		text := strings.TrimRight(raw[i], " \t")
		trimmed := strings.TrimSpace(text)
		i++

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "IF ") || trimmed == "IF" {
			for {
				endsWithOp := endsWithContinuation(trimmed)
				nextStartsWithOp := false
				nextIdx := i
				for nextIdx < len(raw) && strings.TrimSpace(raw[nextIdx]) == "" {
					nextIdx++
				}
				if nextIdx < len(raw) {
					nextTrimmed := strings.TrimSpace(raw[nextIdx])
					nextStartsWithOp = startsWithContinuation(nextTrimmed) && !startsNewStatement(nextTrimmed)
				}
				if !endsWithOp && !nextStartsWithOp {
					break
				}
				if nextIdx >= len(raw) {
					break
				}
				if startsNewStatement(strings.TrimSpace(raw[nextIdx])) {
					break
				}
				text = text + " " + strings.TrimSpace(raw[nextIdx])
				trimmed = strings.TrimSpace(text)
				i = nextIdx + 1
			}
		}

		out = append(out, Line{Number: lineNo, Text: trimmed})
	}
	return out
}

func endsWithContinuation(s string) bool {
	upper := strings.ToUpper(s)
	for _, suf := range continuationSuffixes {
		if strings.HasSuffix(upper, " "+suf) || upper == suf {
			return true
		}
	}
	return false
}

func startsWithContinuation(s string) bool {
	upper := strings.ToUpper(s)
	for _, suf := range continuationSuffixes {
		if strings.HasPrefix(upper, suf+" ") || upper == suf {
			return true
		}
	}
	return false
}

var topLevelKeywords = []string{
	"SET", "PRINT", "GET", "CALL", "IF", "ELSE", "END_IF", "WHILE", "END_WHILE",
	"FUNCTION", "END_FUNCTION", "RETURN", "IMPORT", "REQUIRED", "OPTIONAL",
	"LABEL", "GOTO", "BREAK", "CONTINUE", "TEST",
}

func startsNewStatement(s string) bool {
	upper := strings.ToUpper(s)
	for _, kw := range topLevelKeywords {
		if upper == kw || strings.HasPrefix(upper, kw+" ") || strings.HasPrefix(upper, kw+"(") {
			return true
		}
	}
	return false
}
