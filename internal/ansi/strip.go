package ansi

import "regexp"

var sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Strip removes SGR escape sequences from s.
func Strip(s string) string {
	return sgrPattern.ReplaceAllString(s, "")
}
