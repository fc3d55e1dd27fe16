// Package render turns orchestrator output into the operator's terminal view: colorized records, the in-place metrics
// bar, and the end-of-run summary.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andrewcai8/agentswarm/internal/ansi"
	"github.com/andrewcai8/agentswarm/internal/types"
)

const requestPreviewLimit = 120

// Options configure a Renderer. They are fixed for the Renderer's lifetime.
type Options struct {
	Debug    bool
	Profile  ansi.ColorProfile
	Location *time.Location // zero value means time.Local
}

// Renderer writes the operator view to out. It is not safe for concurrent use; the supervising goroutine owns it.
type Renderer struct {
	out     io.Writer
	debug   bool
	profile ansi.ColorProfile
	loc     *time.Location

	barOpen bool  // last thing written was a metrics bar with no trailing newline
	err     error // first write error; later writes are skipped
}

// New creates a Renderer writing to out.
func New(out io.Writer, opts Options) *Renderer {
	if out == nil {
		out = io.Discard
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	profile := opts.Profile
	if profile == "" {
		profile = ansi.ColorProfileANSI
	}
	return &Renderer{out: out, debug: opts.Debug, profile: profile, loc: loc}
}

// Err returns the first error encountered writing to the output.
func (r *Renderer) Err() error {
	return r.err
}

// Header describes the session banner printed before the child starts.
type Header struct {
	Request string
	WorkDir string
	Runtime string
	Debug   bool
}

// Header prints the session banner.
func (r *Renderer) Header(h Header) {
	r.line(r.apply(styleTitle, "▶ Longshot"))
	r.line("  " + r.apply(styleDim, "Request:") + " " + preview(h.Request, requestPreviewLimit))
	r.line("  " + r.apply(styleDim, "CWD:") + "     " + h.WorkDir)
	r.line("  " + r.apply(styleDim, "Runtime:") + " " + h.Runtime)
	if h.Debug {
		r.line("  " + r.apply(styleDim, "Debug:") + "   " + r.apply(styleYellow, "enabled") + " (LOG_LEVEL=debug)")
	}
	r.line("")
}

// ResetStarted announces the workspace reset.
func (r *Renderer) ResetStarted() {
	r.line(r.apply(styleYellow, "⟳ Resetting target repo…"))
}

// ResetFailed reports a reset script that exited with code.
func (r *Renderer) ResetFailed(code int) {
	r.line(r.apply(styleRed, fmt.Sprintf("✗ Reset failed (exit code %d)", code)))
}

// ResetSucceeded reports a successful reset.
func (r *Renderer) ResetSucceeded() {
	r.line(r.apply(styleGreen, "✓ Target repo reset to initial commit"))
	r.line("")
}

// Text renders an unstructured line, dimmed.
func (r *Renderer) Text(text string) {
	r.Seal()
	r.line(r.apply(styleDim, r.childText(text)))
}

// RunFiles renders the run artifact links followed by a blank line.
func (r *Renderer) RunFiles(files types.RunFiles) {
	r.Seal()
	r.line("  " + r.apply(styleDim, "Log:") + "     " + r.link(files.LogFile))
	r.line("  " + r.apply(styleDim, "Traces:") + "  " + r.link(files.TraceFile))
	r.line("  " + r.apply(styleDim, "LLM:") + "     " + r.link(files.LLMDetailFile))
	r.line("")
}

// Metrics overwrites the status bar in place. The bar stays open (no newline) until Seal is called, which every other
// rendering method does first.
func (r *Renderer) Metrics(m types.Metrics, elapsed time.Duration) {
	r.write("\r" + r.apply(styleDim, "["+FormatClock(elapsed)+"]") + r.metricsBar(m) + "    ")
	r.barOpen = true
}

func (r *Renderer) metricsBar(m types.Metrics) string {
	var b strings.Builder
	b.WriteString(r.counter("workers", strconv.FormatInt(m.ActiveWorkers, 10), styleCyan))
	b.WriteString(r.counter("pending", strconv.FormatInt(m.PendingTasks, 10), styleYellow))
	b.WriteString(r.counter("done", strconv.FormatInt(m.CompletedTasks, 10), styleGreen))
	b.WriteString(r.counter("failed", strconv.FormatInt(m.FailedTasks, 10), styleRed))
	b.WriteString(r.counter("commits/hr", strconv.FormatFloat(m.CommitsPerHour, 'f', 0, 64), styleCyan))
	if m.TotalMerged != 0 {
		b.WriteString(r.counter("merged", strconv.FormatInt(m.TotalMerged, 10), styleGreen))
	}
	if m.MergeQueueDepth > 0 || m.TotalMergeFailed > 0 {
		b.WriteString(r.counter("merge-q", strconv.FormatInt(m.MergeQueueDepth, 10), styleYellow))
	}
	if m.TotalMergeFailed > 0 {
		b.WriteString(r.counter("merge-fail", strconv.FormatInt(m.TotalMergeFailed, 10), styleRed))
	}
	tokens := GroupThousands(m.TotalTokensUsed)
	if m.EstimatedInFlightTokens > 0 {
		tokens += " (~+" + GroupThousands(m.EstimatedInFlightTokens) + " in-flight)"
	}
	b.WriteString(r.counter("tokens", tokens, styleDim))
	return b.String()
}

func (r *Renderer) counter(name, value string, valueStyle ansi.Style) string {
	valueStyle.Bold = ansi.StyleSetOn
	return "  " + r.apply(styleBold, name+"=") + r.apply(valueStyle, value)
}

// Record renders a generic structured record on one line.
func (r *Renderer) Record(rec types.Record) {
	r.Seal()

	level := rec.Level
	parts := []string{
		r.apply(styleDim, FormatTimestamp(rec.Time(r.loc), r.debug)),
		r.apply(levelStyles[level], fmt.Sprintf("%-5s", strings.ToUpper(level))),
		r.apply(agentStyle(rec.AgentID), fmt.Sprintf("%-14s", rec.AgentID)),
		r.apply(styleBold, r.childText(rec.Message)),
	}
	if data := FormatData(rec.Data, truncateLimit(r.debug, level)); data != "" {
		parts = append(parts, r.apply(styleDim, data))
	}
	r.line(strings.Join(parts, " "))
}

// Seal ends an open metrics bar with a newline. It is a no-op otherwise.
func (r *Renderer) Seal() {
	if !r.barOpen {
		return
	}
	r.barOpen = false
	r.write("\n")
}

// ShuttingDown announces a signal-initiated shutdown.
func (r *Renderer) ShuttingDown() {
	r.Seal()
	r.line("")
	r.line(r.apply(styleYellow, "⏹ Shutting down…"))
}

// Finished renders the banner for a child that exited with code.
func (r *Renderer) Finished(code int) {
	r.Seal()
	if code == 0 {
		r.line(r.apply(styleOK, "✓ Orchestrator finished"))
		return
	}
	r.line(r.apply(styleFail, fmt.Sprintf("✗ Orchestrator exited with code %d", code)))
}

// Summary is the data shown in the end-of-run summary. Nil sections are omitted.
type Summary struct {
	Elapsed  time.Duration
	Metrics  *types.Metrics
	RunFiles *types.RunFiles
}

// Summary renders the run summary. It always prints at least the title and the duration.
func (r *Renderer) Summary(s Summary) {
	r.Seal()
	r.line("")
	r.line(r.apply(styleTitle, "═══ Run Summary ═══"))
	r.line("  " + r.apply(styleDim, "Duration:") + "  " + FormatDuration(s.Elapsed))

	if m := s.Metrics; m != nil {
		r.line("  " + r.apply(styleDim, "Tasks:") + "     " +
			r.apply(styleGreen, strconv.FormatInt(m.CompletedTasks, 10)) + " done / " +
			r.apply(styleRed, strconv.FormatInt(m.FailedTasks, 10)) + " failed / " +
			strconv.FormatInt(m.TotalTasks(), 10) + " total")
		r.line("  " + r.apply(styleDim, "Merges:") + "    " +
			r.apply(styleGreen, strconv.FormatInt(m.TotalMerged, 10)) + " merged / " +
			r.apply(styleRed, strconv.FormatInt(m.TotalMergeFailed, 10)) + " failed / " +
			r.apply(styleYellow, strconv.FormatInt(m.TotalConflicts, 10)) + " conflicts")
		r.line("  " + r.apply(styleDim, "Throughput:") + " " +
			r.apply(styleCyan, strconv.FormatFloat(m.CommitsPerHour, 'f', 0, 64)) + " commits/hr  |  " +
			r.apply(styleDim, GroupThousands(m.TotalTokensUsed)+" tokens"))
	}

	if f := s.RunFiles; f != nil {
		r.line("  " + r.apply(styleDim, "Log:") + "       " + r.link(f.LogFile))
		r.line("  " + r.apply(styleDim, "Traces:") + "    " + r.link(f.TraceFile))
		r.line("  " + r.apply(styleDim, "LLM log:") + "   " + r.link(f.LLMDetailFile))
	}
}

// Blank prints an empty line.
func (r *Renderer) Blank() {
	r.Seal()
	r.line("")
}

func (r *Renderer) link(path string) string {
	return r.apply(styleLink, path)
}

// childText drops escape codes the orchestrator put in its own text when the output is uncolored.
func (r *Renderer) childText(text string) string {
	if r.profile == ansi.ColorProfileUncolored {
		return ansi.Strip(text)
	}
	return text
}

func (r *Renderer) apply(s ansi.Style, text string) string {
	return r.profile.Style(s).Apply(text)
}

func (r *Renderer) line(text string) {
	r.write(text + "\n")
}

func (r *Renderer) write(text string) {
	if r.err != nil {
		return
	}
	_, r.err = io.WriteString(r.out, text)
}

func preview(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
