package validation

import (
	"strings"
	"testing"
)

func TestValidateBody(t *testing.T) {
	t.Cleanup(func() { SetRules(Rules{}) })

	if err := ValidateBody("hello"); err != nil {
		t.Fatalf("plain body rejected: %v", err)
	}
	if err := ValidateBody(""); err == nil {
		t.Fatalf("empty body accepted")
	}
	if err := ValidateBody("   \n\t "); err == nil {
		t.Fatalf("whitespace-only body accepted")
	}

	// default cap counts runes, not bytes
	if err := ValidateBody(strings.Repeat("é", 4096)); err != nil {
		t.Fatalf("4096-rune body rejected: %v", err)
	}
	if err := ValidateBody(strings.Repeat("a", 4097)); err == nil {
		t.Fatalf("over-long body accepted")
	}

	SetRules(Rules{MaxBodyLen: 10})
	if err := ValidateBody(strings.Repeat("a", 11)); err == nil {
		t.Fatalf("configured cap not applied")
	}
	if err := ValidateBody("short"); err != nil {
		t.Fatalf("short body rejected under configured cap: %v", err)
	}
}
