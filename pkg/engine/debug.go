package engine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// DebugLevel controls how much a mutation echoes while executing
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugSQL
	DebugTrace
)

// ParseDebugLevel maps "off", "sql" and "trace" to a DebugLevel
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return DebugOff, nil
	case "sql":
		return DebugSQL, nil
	case "trace":
		return DebugTrace, nil
	default:
		return DebugOff, fmt.Errorf("unknown debug level %q (expected off, sql or trace)", s)
	}
}

func (l DebugLevel) String() string {
	switch l {
	case DebugSQL:
		return "sql"
	case DebugTrace:
		return "trace"
	default:
		return "off"
	}
}

// DebugContext is where statement echo goes
type DebugContext struct {
	Level       DebugLevel
	Writer      io.Writer
	ColorOutput bool
}

// DefaultDebugContext is silent and writes to stdout once enabled
func DefaultDebugContext() *DebugContext {
	return &DebugContext{
		Level:       DebugOff,
		Writer:      os.Stdout,
		ColorOutput: true,
	}
}

// WithLevel returns a copy of the context at the given level
func (d *DebugContext) WithLevel(level DebugLevel) *DebugContext {
	cp := DefaultDebugContext()
	if d != nil {
		*cp = *d
	}
	cp.Level = level
	return cp
}

// Enabled reports whether output at level should be written
func (d *DebugContext) Enabled(level DebugLevel) bool {
	return d != nil && level != DebugOff && d.Level >= level
}

// SQL echoes a statement and its bindings
func (d *DebugContext) SQL(entity, op, statement string, params any) {
	if !d.Enabled(DebugSQL) {
		return
	}
	d.tag(color.FgCyan, "[SQL]")
	fmt.Fprintf(d.writer(), " %s %s\n%s\n", op, entity, statement)
	d.tag(color.FgYellow, "[PARAMS]")
	fmt.Fprintf(d.writer(), " %v\n\n", params)
}

// Trace reports timing and affected rows
func (d *DebugContext) Trace(entity, op string, elapsed time.Duration, affected int) {
	if !d.Enabled(DebugTrace) {
		return
	}
	d.tag(color.FgMagenta, "[TRACE]")
	fmt.Fprintf(d.writer(), " %s on %s: %v, %d rows\n", op, entity, elapsed, affected)
}

func (d *DebugContext) tag(attr color.Attribute, s string) {
	if !d.ColorOutput {
		fmt.Fprint(d.writer(), s)
		return
	}
	c := color.New(attr, color.Bold)
	c.EnableColor()
	c.Fprint(d.writer(), s)
}

func (d *DebugContext) writer() io.Writer {
	if d.Writer == nil {
		return os.Stdout
	}
	return d.Writer
}
