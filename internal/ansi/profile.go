package ansi

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorProfile says whether output should carry ANSI styling at all. Only the 16 standard colors are used, so richer
// profiles collapse to ColorProfileANSI.
type ColorProfile string

const (
	ColorProfileANSI      ColorProfile = "ansi16"
	ColorProfileUncolored ColorProfile = "uncolored"
)

// GetColorProfile inspects NO_COLOR / CLICOLOR / CLICOLOR_FORCE, CI, TERM and whether stdout is a terminal.
func GetColorProfile() ColorProfile {
	if envNoColor() {
		return ColorProfileUncolored
	}
	if cliColorForced() {
		return ColorProfileANSI
	}
	if !stdoutIsTTY() {
		return ColorProfileUncolored
	}
	if strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return ColorProfileUncolored
	}
	return ColorProfileANSI
}

// Convert converts c to the ColorProfile p. ColorProfileUncolored results in NoColor.
func (p ColorProfile) Convert(c Color) Color {
	if c == nil {
		return nil
	}
	if p == ColorProfileUncolored {
		return NoColor{}
	}
	return c
}

// Style returns s unchanged for colored profiles and the zero Style otherwise, so that uncolored output carries no
// escape sequences at all.
func (p ColorProfile) Style(s Style) Style {
	if p == ColorProfileUncolored {
		return Style{}
	}
	return s
}

func envNoColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	return os.Getenv("CLICOLOR") == "0" && !cliColorForced()
}

func cliColorForced() bool {
	forced := os.Getenv("CLICOLOR_FORCE")
	if forced == "" {
		return false
	}
	return forced != "0"
}

func stdoutIsTTY() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return term.IsTerminal(int(fd))
}
