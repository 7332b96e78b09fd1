package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message describes a problem reported to the user
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Help        []string
	NoColor     bool
}

// Format renders a message as
//
//	✗ UNKNOWN CLASS: db.Tabel
//	   Did you mean: db.Table?
//	   → List classes: grt classes
func Format(m Message) string {
	var b strings.Builder

	var attr color.Attribute
	var symbol string
	switch m.Level {
	case LevelWarning:
		attr, symbol = color.FgYellow, "!"
	case LevelInfo:
		attr, symbol = color.FgCyan, "i"
	default:
		attr, symbol = color.FgRed, "✗"
	}
	head := newColor(m.NoColor, attr, color.Bold)

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if len(m.Suggestions) > 0 {
		newColor(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	hint := newColor(m.NoColor, color.FgCyan)
	for _, h := range m.Help {
		hint.Fprintf(&b, "   → %s\n", h)
	}
	return b.String()
}

// Write writes a formatted message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// UnknownClassError reports a class name missing from the registry
func UnknownClassError(name string, known []string, noColor bool) string {
	return Format(Message{
		Context:     "unknown class",
		Problem:     name,
		Suggestions: Suggest(name, known, 3),
		Help:        []string{"List classes: grt classes"},
		NoColor:     noColor,
	})
}

// DocumentNotFoundError reports a document missing from the store
func DocumentNotFoundError(name string, known []string, noColor bool) string {
	return Format(Message{
		Context:     "document not found",
		Problem:     name,
		Suggestions: Suggest(name, known, 3),
		Help:        []string{"List documents: grt store list"},
		NoColor:     noColor,
	})
}

// ConfigError reports an invalid configuration
func ConfigError(err error, noColor bool) string {
	return Format(Message{
		Context: "configuration error",
		Problem: err.Error(),
		Help:    []string{"Check grt.yml and GRT_* environment variables"},
		NoColor: noColor,
	})
}

// Success renders a confirmation line
func Success(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}
