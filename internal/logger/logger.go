// Package logger provides leveled console logging for jetbox.
//
// Every line carries a timestamp and a color-coded severity tag:
//
//	[2026-10-16 09:30:12] INFO  Starting container jetson-dev
//	[2026-10-16 09:30:43] ERROR Container did not become ready after 30 attempts
//
// Colors are rendered through lipgloss with the color profile detected by
// termenv for the configured writer, so piping output to a file or a CI log
// produces plain text. NO_COLOR and CLICOLOR_FORCE are honored in auto mode.
//
// The API is printf-style and package level so that any component can log
// without threading a logger through its constructor:
//
//	logger.Info("Created directory: %s", dir)
//	logger.Warn("xhost not found, skipping display configuration")
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ColorMode selects how severity tags are colored.
type ColorMode string

const (
	// ColorAuto detects color support from the writer and environment.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces ANSI colors.
	ColorAlways ColorMode = "always"
	// ColorNever disables colors.
	ColorNever ColorMode = "never"
)

const timestampLayout = "2006-01-02 15:04:05"

type tag struct {
	text  string
	color lipgloss.Color
}

var (
	tagDebug   = tag{text: "DEBUG", color: lipgloss.Color("8")}
	tagInfo    = tag{text: "INFO", color: lipgloss.Color("4")}
	tagSuccess = tag{text: "OK", color: lipgloss.Color("2")}
	tagWarn    = tag{text: "WARN", color: lipgloss.Color("3")}
	tagError   = tag{text: "ERROR", color: lipgloss.Color("1")}
)

// Logger writes leveled, timestamped lines to a writer.
//
// Thread Safety: All methods are safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	level    Level
	now      func() time.Time
}

// New creates a logger writing to out at the given minimum level.
func New(out io.Writer, level Level, mode ColorMode) *Logger {
	l := &Logger{
		out:   out,
		level: level,
		now:   time.Now,
	}
	l.renderer = newRenderer(out, mode)
	return l
}

func newRenderer(out io.Writer, mode ColorMode) *lipgloss.Renderer {
	switch mode {
	case ColorAlways:
		return lipgloss.NewRenderer(out, termenv.WithProfile(termenv.ANSI))
	case ColorNever:
		return lipgloss.NewRenderer(out, termenv.WithProfile(termenv.Ascii))
	default:
		profile := termenv.NewOutput(out).EnvColorProfile()
		return lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	}
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *Logger) log(level Level, t tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	msg = strings.TrimRight(msg, "\n")

	label := l.renderer.NewStyle().
		Foreground(t.color).
		Bold(true).
		Width(5).
		Render(t.text)

	fmt.Fprintf(l.out, "[%s] %s %s\n", l.now().Format(timestampLayout), label, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, tagDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, tagInfo, format, args...)
}

// Success logs at info level with a distinct tag, used for completed steps.
func (l *Logger) Success(format string, args ...interface{}) {
	l.log(LevelInfo, tagSuccess, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, tagWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, tagError, format, args...)
}

var (
	stdMu sync.RWMutex
	std   = New(os.Stderr, LevelInfo, ColorAuto)
)

// Default returns the package-level logger.
func Default() *Logger {
	stdMu.RLock()
	defer stdMu.RUnlock()
	return std
}

// SetDefault replaces the package-level logger and returns the previous one.
// Tests use it to capture output.
func SetDefault(l *Logger) *Logger {
	stdMu.Lock()
	defer stdMu.Unlock()
	prev := std
	std = l
	return prev
}

// SetVerbose enables or disables debug output on the package-level logger.
func SetVerbose(verbose bool) {
	if verbose {
		Default().SetLevel(LevelDebug)
	} else {
		Default().SetLevel(LevelInfo)
	}
}

func Debug(format string, args ...interface{})   { Default().Debug(format, args...) }
func Info(format string, args ...interface{})    { Default().Info(format, args...) }
func Success(format string, args ...interface{}) { Default().Success(format, args...) }
func Warn(format string, args ...interface{})    { Default().Warn(format, args...) }
func Error(format string, args ...interface{})   { Default().Error(format, args...) }
