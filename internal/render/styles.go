package render

import "github.com/andrewcai8/agentswarm/internal/ansi"

var (
	styleDim       = ansi.Style{Faint: ansi.StyleSetOn}
	styleBold      = ansi.Style{Bold: ansi.StyleSetOn}
	styleLink      = ansi.Style{Underline: ansi.StyleSetOn, Faint: ansi.StyleSetOn}
	styleTitle     = ansi.Style{Bold: ansi.StyleSetOn, Foreground: ansi.ANSICyan}
	styleOK        = ansi.Style{Bold: ansi.StyleSetOn, Foreground: ansi.ANSIGreen}
	styleFail      = ansi.Style{Bold: ansi.StyleSetOn, Foreground: ansi.ANSIRed}
	styleRed       = fg(ansi.ANSIRed)
	styleGreen     = fg(ansi.ANSIGreen)
	styleYellow    = fg(ansi.ANSIYellow)
	styleCyan      = fg(ansi.ANSICyan)
	styleWhiteText = fg(ansi.ANSIWhite)
)

var levelStyles = map[string]ansi.Style{
	"debug": styleDim,
	"info":  styleGreen,
	"warn":  styleYellow,
	"error": styleRed,
}

var agentStyles = map[string]ansi.Style{
	"planner":      styleCyan,
	"orchestrator": fg(ansi.ANSIMagenta),
	"monitor":      fg(ansi.ANSIBlue),
	"worker-pool":  fg(ansi.ANSIMagenta),
	"reconciler":   styleYellow,
	"merge-queue":  fg(ansi.ANSIBlue),
	"llm-client":   styleDim,
	"main":         styleWhiteText,
	"shared":       styleDim,
}

func fg(c ansi.Color) ansi.Style {
	return ansi.Style{Foreground: c}
}

func agentStyle(agent string) ansi.Style {
	if s, ok := agentStyles[agent]; ok {
		return s
	}
	return styleWhiteText
}
