// Package logstream classifies the orchestrator's output lines and routes them to the renderer, the secondary consumer
// and the run's bookkeeping state.
package logstream

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/andrewcai8/agentswarm/internal/types"
)

// Kind is the closed set of line categories.
type Kind int

const (
	KindText         Kind = iota // not a structured record
	KindRunFiles                 // "Run files" announcement
	KindMetrics                  // periodic "Metrics" update
	KindFinalSummary             // "Final summary" before exit
	KindGeneric                  // any other structured record
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRunFiles:
		return "run-files"
	case KindMetrics:
		return "metrics"
	case KindFinalSummary:
		return "final-summary"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Control messages recognized by message text.
const (
	MessageRunFiles     = "Run files"
	MessageMetrics      = "Metrics"
	MessageFinalSummary = "Final summary"
)

const (
	defaultLevel = "info"
	defaultAgent = "?"
)

// Line is one classified output line. Record is set for every Kind except KindText.
type Line struct {
	Kind   Kind
	Text   string
	Record types.Record
}

// Parse classifies a raw output line. Invalid UTF-8 is replaced and trailing whitespace trimmed. ok is false for lines
// that are blank after trimming.
func Parse(raw []byte) (line Line, ok bool) {
	text := strings.TrimRightFunc(string(bytes.ToValidUTF8(raw, []byte("�"))), unicode.IsSpace)
	if text == "" {
		return Line{}, false
	}
	line = Line{Kind: KindText, Text: text}

	if !strings.HasPrefix(strings.TrimLeftFunc(text, unicode.IsSpace), "{") {
		return line, true
	}
	var rec types.Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return line, true
	}
	if rec.Level == "" {
		rec.Level = defaultLevel
	}
	if rec.AgentID == "" {
		rec.AgentID = defaultAgent
	}
	line.Record = rec
	line.Kind = classify(rec.Message)
	return line, true
}

func classify(message string) Kind {
	switch message {
	case MessageRunFiles:
		return KindRunFiles
	case MessageMetrics:
		return KindMetrics
	case MessageFinalSummary:
		return KindFinalSummary
	default:
		return KindGeneric
	}
}
