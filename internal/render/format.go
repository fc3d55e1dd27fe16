package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andrewcai8/agentswarm/internal/types"
)

// Truncation limits for auxiliary data values, in runes.
const (
	DebugTruncateLimit   = 2000
	ErrorTruncateLimit   = 500
	DefaultTruncateLimit = 200
)

const ellipsis = "…"

func truncateLimit(debug bool, level string) int {
	switch {
	case debug:
		return DebugTruncateLimit
	case level == "error" || level == "warn":
		return ErrorTruncateLimit
	default:
		return DefaultTruncateLimit
	}
}

// FormatData renders data as space-separated key=value pairs in key order.
func FormatData(data types.Data, limit int) string {
	if data.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, data.Len())
	for _, f := range data.Fields() {
		parts = append(parts, f.Key+"="+formatValue(f.Value, limit))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any, limit int) string {
	switch val := v.(type) {
	case json.Number:
		return formatNumber(val)
	case float64:
		return strconv.FormatFloat(val, 'f', 2, 64)
	case string:
		return truncate(val, limit)
	case []any:
		return truncate(compactJSON(val), limit)
	default:
		return compactJSON(val)
	}
}

func formatNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// truncate cuts s to limit runes and appends an ellipsis when anything was removed.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + ellipsis
}

// FormatTimestamp renders t as HH:MM:SS, with milliseconds in debug mode.
func FormatTimestamp(t time.Time, debug bool) string {
	if debug {
		return t.Format("15:04:05.000")
	}
	return t.Format("15:04:05")
}

// FormatClock renders an elapsed duration as m:ss, or h:mm:ss once it reaches an hour.
func FormatClock(d time.Duration) string {
	h, m, s := splitDuration(d)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatDuration renders an elapsed duration as "Xm SSs", or "Xh MMm SSs" once it reaches an hour.
func FormatDuration(d time.Duration) string {
	h, m, s := splitDuration(d)
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

func splitDuration(d time.Duration) (h, m, s int64) {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	return total / 3600, (total / 60) % 60, total % 60
}

// GroupThousands renders n with comma thousands separators.
func GroupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
