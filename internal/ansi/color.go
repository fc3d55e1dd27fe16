package ansi

import "fmt"

// Color can generate ANSI sequences for foreground/background colors.
type Color interface {
	// ANSISequence returns the ANSI sequence for the foreground(bg=false) or background(bg=true) color. Ex: "\033[31m".
	ANSISequence(bg bool) string
}

// NoColor leaves the terminal's current color untouched.
type NoColor struct{}

// String implements fmt.Stringer.
func (NoColor) String() string {
	return "none"
}

// ANSISequence returns an empty sequence.
func (NoColor) ANSISequence(bg bool) string {
	return ""
}

// ANSIColor is a color (0-15) as defined by the ANSI Standard.
type ANSIColor int

const (
	ANSIBlack ANSIColor = iota
	ANSIRed
	ANSIGreen
	ANSIYellow
	ANSIBlue
	ANSIMagenta
	ANSICyan
	ANSIWhite
	ANSIBrightBlack
	ANSIBrightRed
	ANSIBrightGreen
	ANSIBrightYellow
	ANSIBrightBlue
	ANSIBrightMagenta
	ANSIBrightCyan
	ANSIBrightWhite
)

var (
	_ Color = NoColor{}
	_ Color = ANSIColor(0)
)

// String implements fmt.Stringer.
func (ac ANSIColor) String() string {
	if !ac.Valid() {
		return "ansi:invalid"
	}
	return fmt.Sprintf("ansi:%d", int(ac))
}

// Valid returns true if c is valid (0-15).
func (ac ANSIColor) Valid() bool {
	return ac >= 0 && ac < 16
}

// ANSISequence returns the ANSI escape sequence for an ANSIColor.
func (ac ANSIColor) ANSISequence(bg bool) string {
	if !ac.Valid() {
		return ""
	}

	codeBase := 30
	if bg {
		codeBase = 40
	}

	ci := int(ac)
	switch {
	case ci < 8:
		return fmt.Sprintf("\x1b[%dm", codeBase+ci)
	default:
		if bg {
			return fmt.Sprintf("\x1b[%dm", 100+(ci-8))
		}
		return fmt.Sprintf("\x1b[%dm", 90+(ci-8))
	}
}
