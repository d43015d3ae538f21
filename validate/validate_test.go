package validate

import "testing"

func hasMessage(t *testing.T, diags []Diagnostic, substr string) {
	t.Helper()
	for _, d := range diags {
		if containsSubstring(d.Message, substr) {
			return
		}
	}
	t.Fatalf("expected a diagnostic containing %q, got %+v", substr, diags)
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestValidate_EmptySource(t *testing.T) {
	if diags := Validate(""); len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
}

func TestValidate_DeclarationAfterStatement(t *testing.T) {
	src := "PRINT \"hi\"\nREQUIRED $mode\n"
	diags := Validate(src)
	hasMessage(t, diags, "top of script")
	if diags[0].Line != 2 {
		t.Fatalf("expected diagnostic on line 2, got %d", diags[0].Line)
	}
}

func TestValidate_UnbalancedIf(t *testing.T) {
	diags := Validate("IF $x > 1\nPRINT \"hi\"\n")
	hasMessage(t, diags, "IF/END_IF")
}

func TestValidate_StrayEndIf(t *testing.T) {
	diags := Validate("END_IF\n")
	hasMessage(t, diags, "stray END_IF")
}

func TestValidate_DuplicateLabel(t *testing.T) {
	diags := Validate("LABEL start\nLABEL start\n")
	hasMessage(t, diags, "duplicate label")
}

func TestValidate_GotoUnknownLabel(t *testing.T) {
	diags := Validate("GOTO nowhere\n")
	hasMessage(t, diags, "unknown label")
}

func TestValidate_MalformedBreak(t *testing.T) {
	diags := Validate("BREAK oops\n")
	hasMessage(t, diags, "malformed BREAK")
}

func TestValidate_BreakCodeNotThreeDigits(t *testing.T) {
	diags := Validate("BREAK 42 \"short\"\n")
	hasMessage(t, diags, "three digits")
}

func TestValidate_TestMissingRegex(t *testing.T) {
	diags := Validate("TEST $a $b\n")
	hasMessage(t, diags, "regex literal")
}

func TestValidate_ValidScriptIsClean(t *testing.T) {
	src := "REQUIRED $mode\nIF $mode = \"night\"\nPRINT \"ok\"\nEND_IF\nLABEL done\nGOTO done\n"
	diags := Validate(src)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
}

func TestValidate_LineNumbersAreOneBasedAndInRange(t *testing.T) {
	src := "PRINT \"a\"\nREQUIRED $x\nIF true\n"
	lineCount := 3
	for _, d := range Validate(src) {
		if d.Line < 1 || d.Line > lineCount {
			t.Fatalf("diagnostic line %d out of range [1,%d]", d.Line, lineCount)
		}
	}
}
