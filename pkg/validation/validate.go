package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rules holds configurable message validation limits. Installed once at
// startup from the effective config.
type Rules struct {
	// MaxBodyLen bounds the message body in runes; 0 means the default.
	MaxBodyLen int
}

const defaultMaxBodyLen = 4096

var rules Rules

// SetRules installs the active validation rules.
func SetRules(r Rules) { rules = r }

// ValidateBody rejects empty or whitespace-only bodies and bodies exceeding
// the configured length.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("body is empty")
	}
	max := rules.MaxBodyLen
	if max <= 0 {
		max = defaultMaxBodyLen
	}
	if n := utf8.RuneCountInString(body); n > max {
		return fmt.Errorf("body too long: %d > %d", n, max)
	}
	return nil
}
