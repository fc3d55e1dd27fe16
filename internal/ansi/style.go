package ansi

import (
	"strconv"
	"strings"
)

// Reset clears every attribute and color.
const Reset = "\x1b[0m"

// StyleSet is a tri-state attribute toggle. StyleUnset and StyleSetOff both emit nothing when opening a style; StyleSetOff
// documents intent when composing styles.
type StyleSet int

const (
	StyleUnset StyleSet = iota
	StyleSetOn
	StyleSetOff
)

// Style is a set of SGR attributes plus optional colors.
type Style struct {
	Foreground Color
	Background Color
	Bold       StyleSet
	Faint      StyleSet
	Italic     StyleSet
	Underline  StyleSet
}

// OpeningControlCodes returns the sequences that turn s on: attributes first (joined in one SGR sequence), then foreground,
// then background.
func (s Style) OpeningControlCodes() string {
	var attrs []string
	for _, a := range []struct {
		set  StyleSet
		code int
	}{
		{s.Bold, 1},
		{s.Faint, 2},
		{s.Italic, 3},
		{s.Underline, 4},
	} {
		if a.set == StyleSetOn {
			attrs = append(attrs, strconv.Itoa(a.code))
		}
	}

	var b strings.Builder
	if len(attrs) > 0 {
		b.WriteString("\x1b[")
		b.WriteString(strings.Join(attrs, ";"))
		b.WriteString("m")
	}
	if s.Foreground != nil {
		b.WriteString(s.Foreground.ANSISequence(false))
	}
	if s.Background != nil {
		b.WriteString(s.Background.ANSISequence(true))
	}
	return b.String()
}

// Apply surrounds text with s's opening codes and a single trailing reset. Text that already ends in a reset is not reset
// twice, so nested Apply calls compose.
func (s Style) Apply(text string) string {
	if text == "" {
		return ""
	}
	open := s.OpeningControlCodes()
	if open == "" {
		return text
	}
	if strings.HasSuffix(text, Reset) {
		return open + text
	}
	return open + text + Reset
}

// IsZero reports whether s emits no control codes.
func (s Style) IsZero() bool {
	return s.OpeningControlCodes() == ""
}
