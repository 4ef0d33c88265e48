package logbowl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Environment variable names
const (
	LogLevelEnvVar  = "RELEASE_LOG_LEVEL"
	LogFormatEnvVar = "RELEASE_LOG_CONSOLE_FORMATTER"
)

// Log formats
const (
	FormatEmoji = "emoji"
	FormatText  = "text"
	FormatJSON  = "json"
)

// FileTimeFormat is the timestamp layout used in the log file.
const FileTimeFormat = "2006-01-02 15:04:05.000"

var domains = map[string]string{"system": "⚙️", "config": "🔩", "pipeline": "🛤️", "workspace": "🗂️", "source": "🌐", "assets": "🎨", "env": "🌿", "launcher": "🚀", "wheels": "🛞", "installer": "📀", "archive": "📦", "signing": "✍️", "keymgmt": "🔑", "tool": "🧰", "file": "📄", "test": "🧪", "default": "❓"}
var actions = map[string]string{"init": "🌱", "start": "🚀", "stop": "🛑", "fetch": "📥", "clone": "🐑", "check": "🔍", "install": "🧩", "build": "🏗️", "compile": "⚙️", "generate": "✨", "read": "📖", "write": "📝", "copy": "📋", "clean": "🧹", "lock": "🔒", "exec": "▶️", "pack": "📦", "sign": "✍️", "verify": "🔍", "retry": "🔁", "finish": "🏁", "summary": "📊", "default": "⚙️"}
var statuses = map[string]string{"success": "✅", "failure": "❌", "error": "🔥", "fatal": "💀", "warning": "⚠️", "info": "ℹ️", "debug": "🐞", "attempt": "⏳", "retry": "🔁", "skip": "⏭️", "cached": "🎯", "complete": "🏁", "timeout": "⏱️", "notfound": "❓", "invalid": "💢", "progress": "➡️", "ok": "✅", "default": "➡️"}

func getEmoji(m map[string]string, key string) string {
	if val, ok := m[key]; ok {
		return val
	}
	return m["default"]
}

// Logger wraps hclog.Logger to provide the domain/action/status API.
type Logger struct {
	hclog.Logger
	format string
	file   *os.File
}

// Create creates a new Logger instance writing to stdout.
func Create(name string) Logger {
	return NewWithOutput(name, os.Stdout)
}

// NewWithOutput creates a Logger writing to w only.
func NewWithOutput(name string, w io.Writer) Logger {
	return Logger{
		Logger: hclog.New(consoleOptions(name, w)),
		format: consoleFormat(),
	}
}

// CreateWithFile creates a Logger writing to stdout that mirrors every record,
// at debug level and without colors, into a log file at path. Any existing
// file is truncated.
func CreateWithFile(name, path string) (Logger, error) {
	return NewWithFile(name, path, os.Stdout)
}

// NewWithFile is CreateWithFile with the console output directed to console.
func NewWithFile(name, path string, console io.Writer) (Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return Logger{}, fmt.Errorf("create log file: %w", err)
	}
	il := hclog.NewInterceptLogger(consoleOptions(name, console))
	il.RegisterSink(hclog.NewSinkAdapter(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.Debug,
		Output:     f,
		TimeFormat: FileTimeFormat,
		Color:      hclog.ColorOff,
	}))
	return Logger{Logger: il, format: consoleFormat(), file: f}, nil
}

// Close releases the log file, if any.
func (l Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func consoleOptions(name string, w io.Writer) *hclog.LoggerOptions {
	levelStr := os.Getenv(LogLevelEnvVar)
	level := hclog.LevelFromString(strings.ToUpper(levelStr))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return &hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     w,
		JSONFormat: consoleFormat() == FormatJSON,
		TimeFormat: FileTimeFormat,
	}
}

func consoleFormat() string {
	return strings.ToLower(os.Getenv(LogFormatEnvVar))
}

func (l Logger) log(level hclog.Level, domain, action, status, message string, args ...interface{}) {
	switch l.format {
	case FormatText:
		l.Logger.Log(level, fmt.Sprintf("[%s] %s", strings.ToUpper(domain), message), args...)
	case FormatJSON:
		l.Logger.With("domain", domain, "action", action, "status", status).Log(level, message, args...)
	default: // Emoji format
		l.Logger.Log(level, fmt.Sprintf("%s %s %s %s", getEmoji(domains, domain), getEmoji(actions, action), getEmoji(statuses, status), message), args...)
	}
}

func (l Logger) Info(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Info, domain, action, status, message, args...)
}
func (l Logger) Debug(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Debug, domain, action, status, message, args...)
}
func (l Logger) Warn(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Warn, domain, action, status, message, args...)
}
func (l Logger) Error(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Error, domain, action, status, message, args...)
}
