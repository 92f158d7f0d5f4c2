// Package output provides the progress sink for sync jobs.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Severity prefixes of progress lines.
const (
	PrefixSuccess  = "✅ "
	PrefixFailure  = "❌ "
	PrefixAdvisory = "⚠️ "
)

// Sink receives one line per sync step.
type Sink interface {
	Success(format string, args ...any)
	Failure(format string, args ...any)
	Advisory(format string, args ...any)
}

// Stats holds sync statistics for the recap line.
type Stats interface {
	GetFiles() int
	GetBytes() int64
	GetFailed() int
	GetDuration() time.Duration
}

// Output writes progress lines to a terminal or any io.Writer.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// Success prints a ✅ line.
func (o *Output) Success(format string, args ...any) {
	o.printf("%s%s\n", PrefixSuccess, o.color(colorGreen, fmt.Sprintf(format, args...)))
}

// Failure prints a ❌ line.
func (o *Output) Failure(format string, args ...any) {
	o.printf("%s%s\n", PrefixFailure, o.color(colorRed, fmt.Sprintf(format, args...)))
}

// Advisory prints a ⚠️ line.
func (o *Output) Advisory(format string, args ...any) {
	o.printf("%s%s\n", PrefixAdvisory, o.color(colorYellow, fmt.Sprintf(format, args...)))
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

// Command echoes a shell command followed by its captured output.
func (o *Output) Command(cmd, stdout, stderr string) {
	o.printf("%s %s\n", o.color(colorCyan, ">"), cmd)
	for _, s := range []string{stdout, stderr} {
		s = strings.TrimRight(s, "\n")
		if s == "" {
			continue
		}
		for _, line := range strings.Split(s, "\n") {
			o.printf("  %s\n", line)
		}
	}
}

// Summary prints the recap line of a sync.
func (o *Output) Summary(stats Stats) {
	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	files := o.color(colorGreen, fmt.Sprintf("files=%d", stats.GetFiles()))
	bytes := o.color(colorCyan, fmt.Sprintf("bytes=%d", stats.GetBytes()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))

	o.printf("%s %s %s", files, bytes, failed)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

// Recorder is a Sink that keeps lines in memory.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(prefix, format string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, prefix+fmt.Sprintf(format, args...))
}

// Success records a ✅ line.
func (r *Recorder) Success(format string, args ...any) { r.add(PrefixSuccess, format, args) }

// Failure records a ❌ line.
func (r *Recorder) Failure(format string, args ...any) { r.add(PrefixFailure, format, args) }

// Advisory records a ⚠️ line.
func (r *Recorder) Advisory(format string, args ...any) { r.add(PrefixAdvisory, format, args) }

// Lines returns a copy of the recorded lines in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Last returns the most recent line, or "" if none.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

var (
	_ Sink = (*Output)(nil)
	_ Sink = (*Recorder)(nil)
)
