// Package logger provides the leveled console logger used by the API server
// and the CLI commands.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fixed column width for the service name
const ServiceNameWidth = 12

type Logger struct {
	serviceName string
	level       Level
	fields      map[string]string

	mu           *sync.Mutex
	out          io.Writer
	colorEnabled bool
}

// New creates a logger writing to stdout. Colors are used only when stdout
// is a terminal.
func New(serviceName string, level Level) *Logger {
	return &Logger{
		serviceName:  serviceName,
		level:        level,
		mu:           &sync.Mutex{},
		out:          os.Stdout,
		colorEnabled: isTerminal(os.Stdout),
	}
}

// NewWithWriter creates an uncolored logger writing to w.
func NewWithWriter(serviceName string, level Level, w io.Writer) *Logger {
	return &Logger{
		serviceName: serviceName,
		level:       level,
		mu:          &sync.Mutex{},
		out:         w,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter("", LevelError+1, io.Discard)
}

func isTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *Logger) SetColor(enabled bool) {
	l.mu.Lock()
	l.colorEnabled = enabled && isTerminalWriter(l.out)
	l.mu.Unlock()
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// WithFields returns a child logger that appends the given fields to every line.
func (l *Logger) WithFields(fields map[string]string) *Logger {
	merged := make(map[string]string, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		serviceName:  l.serviceName,
		level:        l.level,
		fields:       merged,
		mu:           l.mu,
		out:          l.out,
		colorEnabled: l.colorEnabled,
	}
}

func (l *Logger) levelColor(level Level) *color.Color {
	switch level {
	case LevelDebug:
		return color.New(color.FgHiBlack)
	case LevelInfo:
		return color.New(color.FgGreen)
	case LevelWarn:
		return color.New(color.FgHiYellow)
	default:
		return color.New(color.FgHiRed, color.Bold)
	}
}

func formatServiceName(name string) string {
	if len(name) > ServiceNameWidth {
		return name[:ServiceNameWidth-1] + "…"
	}
	return fmt.Sprintf("%-*s", ServiceNameWidth, name)
}

func (l *Logger) log(level Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	levelStr := fmt.Sprintf("%-5s", level.String())
	if l.colorEnabled {
		c := l.levelColor(level)
		c.EnableColor()
		levelStr = c.Sprint(levelStr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] [%s] %s", timestamp, formatServiceName(l.serviceName), levelStr, message)

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, l.fields[k])
		}
	}
	b.WriteByte('\n')

	io.WriteString(l.out, b.String())
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(message string) { l.log(LevelDebug, message) }
func (l *Logger) Info(message string)  { l.log(LevelInfo, message) }
func (l *Logger) Warn(message string)  { l.log(LevelWarn, message) }
func (l *Logger) Error(message string) { l.log(LevelError, message) }
