package util

import "testing"

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare value", "4.5", "4.5"},
		{"quoted value", `"4.5"`, "4.5"},
		{"quoted word", `"true"`, "true"},
		{"empty", "", ""},
		{"only quotes", `""`, ""},
		{"inner quotes untouched", `say ""hi""`, `say ""hi`},
		{"single quotes kept", `'90'`, `'90'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimQuotes(tt.input); got != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no escapes", "budget 4", "budget 4"},
		{"doubled quotes", `say ""hi""`, `say "hi"`},
		{"quadrupled", `""""`, `""`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixEscapeQuotes(tt.input); got != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// Console args arrive quoted with doubled inner quotes; handlers trim
// then unescape.
func TestTrimThenUnescape(t *testing.T) {
	got := FixEscapeQuotes(TrimQuotes(`"say ""hi"" now"`))
	want := `say "hi" now`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContains(t *testing.T) {
	levels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

	if !Contains(levels, "WARN") {
		t.Error("expected WARN to be found")
	}
	if Contains(levels, "FATAL") {
		t.Error("did not expect FATAL to be found")
	}
	if Contains(nil, "WARN") {
		t.Error("nil slice contains nothing")
	}
	if !Contains([]string{""}, "") {
		t.Error("empty string should match itself")
	}
}
