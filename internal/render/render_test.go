package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andrewcai8/agentswarm/internal/ansi"
	"github.com/andrewcai8/agentswarm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(debug bool) (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	r := New(&buf, Options{Debug: debug, Profile: ansi.ColorProfileANSI, Location: time.UTC})
	return r, &buf
}

func plain(buf *bytes.Buffer) string {
	return ansi.Strip(buf.String())
}

func TestMetricsBar(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Metrics(types.Metrics{
		ActiveWorkers:   3,
		PendingTasks:    5,
		CompletedTasks:  10,
		FailedTasks:     1,
		CommitsPerHour:  4.7,
		TotalTokensUsed: 12345,
	}, 65*time.Second)

	assert.Equal(t, "\r[1:05]  workers=3  pending=5  done=10  failed=1  commits/hr=5  tokens=12,345    ", plain(buf))
}

func TestMetricsBarOptionalCounters(t *testing.T) {
	tests := []struct {
		name    string
		metrics types.Metrics
		want    []string
		absent  []string
	}{
		{
			name:    "merged_shown_when_non_zero",
			metrics: types.Metrics{TotalMerged: 2},
			want:    []string{"merged=2"},
			absent:  []string{"merge-q=", "merge-fail="},
		},
		{
			name:    "queue_depth_only",
			metrics: types.Metrics{MergeQueueDepth: 4},
			want:    []string{"merge-q=4"},
			absent:  []string{"merged=", "merge-fail="},
		},
		{
			name:    "merge_failures_show_queue_too",
			metrics: types.Metrics{TotalMergeFailed: 1},
			want:    []string{"merge-q=0", "merge-fail=1"},
		},
		{
			name:    "in_flight_tokens",
			metrics: types.Metrics{TotalTokensUsed: 1000000, EstimatedInFlightTokens: 2500},
			want:    []string{"tokens=1,000,000 (~+2,500 in-flight)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, buf := newTestRenderer(false)
			r.Metrics(tt.metrics, 2*time.Hour+3*time.Minute+4*time.Second)
			out := plain(buf)
			assert.True(t, strings.HasPrefix(out, "\r[2:03:04]"), out)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, out, a)
			}
		})
	}
}

func TestMetricsBarSealedBeforeOtherOutput(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Metrics(types.Metrics{ActiveWorkers: 1}, time.Second)
	r.Metrics(types.Metrics{ActiveWorkers: 2}, 2*time.Second)
	r.Text("build finished")

	out := plain(buf)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.True(t, strings.HasSuffix(out, "    \nbuild finished\n"), out)
	assert.Contains(t, buf.String(), "\x1b[2mbuild finished\x1b[0m")
}

func TestSealIsNoopWithoutBar(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Seal()
	r.Text("a")
	r.Seal()
	assert.Equal(t, "a\n", plain(buf))
}

func TestRecordLine(t *testing.T) {
	var rec types.Record
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":3723004,"level":"warn","agentId":"planner","message":"Task created","data":{"id":"t-1","score":0.5,"count":3,"tags":["a","b"],"ok":true}}`), &rec))

	r, buf := newTestRenderer(false)
	r.Record(rec)
	assert.Equal(t, "01:02:03 WARN  planner        Task created id=t-1 score=0.50 count=3 tags=[\"a\",\"b\"] ok=true\n", plain(buf))
	assert.Contains(t, buf.String(), "\x1b[33mWARN \x1b[0m")
	assert.Contains(t, buf.String(), "\x1b[36mplanner       \x1b[0m")

	r, buf = newTestRenderer(true)
	r.Record(rec)
	assert.True(t, strings.HasPrefix(plain(buf), "01:02:03.004 "), plain(buf))
}

func TestRecordUnknownAgentAndLevel(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Record(types.Record{Level: "trace", AgentID: "somebody", Message: "m"})
	assert.Contains(t, buf.String(), "TRACE ")
	assert.Contains(t, buf.String(), "\x1b[37msomebody      \x1b[0m")
}

func TestFormatDataTruncation(t *testing.T) {
	long := strings.Repeat("é", 600)
	data := types.NewData(types.Field{Key: "s", Value: long})

	tests := []struct {
		name  string
		debug bool
		level string
		runes int
	}{
		{name: "default", level: "info", runes: DefaultTruncateLimit},
		{name: "warn", level: "warn", runes: ErrorTruncateLimit},
		{name: "error", level: "error", runes: ErrorTruncateLimit},
		{name: "debug", debug: true, level: "info", runes: 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatData(data, truncateLimit(tt.debug, tt.level))
			val := strings.TrimPrefix(got, "s=")
			if tt.runes < 600 {
				assert.Equal(t, strings.Repeat("é", tt.runes)+"…", val)
			} else {
				assert.Equal(t, long, val)
			}
		})
	}
}

func TestFormatDataNumbers(t *testing.T) {
	data := types.NewData(
		types.Field{Key: "a", Value: json.Number("42")},
		types.Field{Key: "b", Value: json.Number("4.7")},
		types.Field{Key: "c", Value: json.Number("1e3")},
		types.Field{Key: "d", Value: nil},
		types.Field{Key: "e", Value: map[string]any{"k": "v"}},
	)
	assert.Equal(t, `a=42 b=4.70 c=1000.00 d=null e={"k":"v"}`, FormatData(data, DefaultTruncateLimit))
	assert.Equal(t, "", FormatData(types.Data{}, DefaultTruncateLimit))
}

func TestRunFilesBlock(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.RunFiles(types.RunFiles{LogFile: "a.log", TraceFile: "b.trace", LLMDetailFile: "c.log"})
	assert.Equal(t, "  Log:     a.log\n  Traces:  b.trace\n  LLM:     c.log\n\n", plain(buf))
	assert.Contains(t, buf.String(), "\x1b[2;4ma.log\x1b[0m")
}

func TestSummaryDegradesToDuration(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Summary(Summary{Elapsed: 5*time.Second + 300*time.Millisecond})
	assert.Equal(t, "\n═══ Run Summary ═══\n  Duration:  0m 05s\n", plain(buf))
}

func TestSummaryFull(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Summary(Summary{
		Elapsed: time.Hour + 2*time.Minute + 3*time.Second,
		Metrics: &types.Metrics{
			PendingTasks:     5,
			CompletedTasks:   10,
			FailedTasks:      1,
			TotalMerged:      7,
			TotalMergeFailed: 2,
			TotalConflicts:   1,
			CommitsPerHour:   12.4,
			TotalTokensUsed:  1234567,
		},
		RunFiles: &types.RunFiles{LogFile: "a.log", TraceFile: "b.trace", LLMDetailFile: "c.log"},
	})
	want := strings.Join([]string{
		"",
		"═══ Run Summary ═══",
		"  Duration:  1h 02m 03s",
		"  Tasks:     10 done / 1 failed / 16 total",
		"  Merges:    7 merged / 2 failed / 1 conflicts",
		"  Throughput: 12 commits/hr  |  1,234,567 tokens",
		"  Log:       a.log",
		"  Traces:    b.trace",
		"  LLM log:   c.log",
		"",
	}, "\n")
	assert.Equal(t, want, plain(buf))
}

func TestBannersAndHeader(t *testing.T) {
	r, buf := newTestRenderer(true)
	r.Header(Header{Request: strings.Repeat("x", 130), WorkDir: "/work", Runtime: "/rt", Debug: true})
	r.Finished(0)
	r.Finished(3)
	out := plain(buf)
	assert.Contains(t, out, "▶ Longshot\n  Request: "+strings.Repeat("x", 120)+"\n  CWD:     /work\n  Runtime: /rt\n  Debug:   enabled (LOG_LEVEL=debug)\n\n")
	assert.Contains(t, out, "✓ Orchestrator finished\n")
	assert.Contains(t, out, "✗ Orchestrator exited with code 3\n")
}

func TestShuttingDownSealsBar(t *testing.T) {
	r, buf := newTestRenderer(false)
	r.Metrics(types.Metrics{}, 0)
	r.ShuttingDown()
	assert.True(t, strings.HasSuffix(plain(buf), "    \n\n⏹ Shutting down…\n"))
}

func TestUncoloredProfileHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Profile: ansi.ColorProfileUncolored, Location: time.UTC})
	r.Record(types.Record{Level: "info", AgentID: "main", Message: "hello"})
	r.Metrics(types.Metrics{ActiveWorkers: 1}, 0)
	r.Summary(Summary{})
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestChildEscapesStrippedWhenUncolored(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Profile: ansi.ColorProfileUncolored, Location: time.UTC})
	r.Text("\x1b[32mbuild ok\x1b[0m")
	r.Record(types.Record{Level: "info", AgentID: "main", Message: "\x1b[1mmerged\x1b[0m"})
	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.True(t, strings.HasPrefix(out, "build ok\n"), out)
	assert.Contains(t, out, "merged")

	colored, cbuf := newTestRenderer(false)
	colored.Text("\x1b[32mbuild ok\x1b[0m")
	assert.Contains(t, cbuf.String(), "\x1b[32mbuild ok")
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("closed")
}

func TestWriteErrorIsSticky(t *testing.T) {
	w := &failingWriter{}
	r := New(w, Options{})
	r.Text("a")
	r.Text("b")
	require.Error(t, r.Err())
	assert.Equal(t, 1, w.writes)
}

func TestGroupThousands(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		12345:   "12,345",
		123456:  "123,456",
		1234567: "1,234,567",
		-1234:   "-1,234",
		-123456: "-123,456",
		-12:     "-12",
	}
	for in, want := range tests {
		assert.Equal(t, want, GroupThousands(in), "input %d", in)
	}
}
