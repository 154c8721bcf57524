// Package notify renders reconciliation records for humans.
//
// Core code emits Records with a severity; colors and symbols are chosen
// here and nowhere else.
package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	fcolor "github.com/fatih/color"
)

// Severity of a record
type Severity int

const (
	// Success is a completed action (green, ✔)
	Success Severity = iota
	// Info is a neutral status line (blue, ℹ)
	Info
	// Warning needs the user's attention (yellow, ⚠)
	Warning
	// Error is a failed task (red, ✗)
	Error
)

// String returns the lowercase severity name
func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Record is one message for the user. Details is an optional multi-line
// block printed below the message, e.g. a patch listing.
type Record struct {
	Severity Severity
	Message  string
	Details  string
}

// Notifier receives records
type Notifier interface {
	Notify(Record)
}

// Console writes records to a writer
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console. A nil writer means os.Stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// Notify writes the record
func (c *Console) Notify(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	style := styleFor(r.Severity)
	_, err := style.color.Fprintf(c.w, "%s%s\n", style.symbol, indent(r.Message, style.symbol))
	handleNotifyError(err)

	if r.Details == "" {
		return
	}
	_, err = fmt.Fprintf(c.w, "%s\n\n", indent(strings.Repeat(" ", len([]rune(style.symbol)))+r.Details, style.symbol))
	handleNotifyError(err)
}

// Recorder keeps records in memory
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Notify appends the record
func (r *Recorder) Notify(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of the recorded records
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// BySeverity returns the recorded records of one severity
func (r *Recorder) BySeverity(s Severity) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Severity == s {
			out = append(out, rec)
		}
	}
	return out
}

// Discard drops every record
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Record) {}

// SetColor turns colored output on or off for all consoles
func SetColor(enabled bool) {
	fcolor.NoColor = !enabled
}

type style struct {
	symbol string
	color  *fcolor.Color
}

func styleFor(s Severity) style {
	switch s {
	case Success:
		return style{symbol: "✔ ", color: fcolor.New(fcolor.FgGreen)}
	case Info:
		return style{symbol: "ℹ ", color: fcolor.New(fcolor.FgBlue)}
	case Warning:
		return style{symbol: "⚠ ", color: fcolor.New(fcolor.FgYellow)}
	case Error:
		return style{symbol: "✗ ", color: fcolor.New(fcolor.FgRed)}
	default:
		return style{symbol: "", color: fcolor.New(fcolor.Reset)}
	}
}

// indent aligns continuation lines with the text after the symbol
func indent(content, symbol string) string {
	if symbol == "" || !strings.Contains(content, "\n") {
		return content
	}

	pad := strings.Repeat(" ", len([]rune(symbol)))
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] == "" {
			continue
		}
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func handleNotifyError(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "notify: failed to print message: %v\n", err)
	}
}
