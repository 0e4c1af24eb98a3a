package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const timeFormat = "15:04:05.000"

var (
	mu       sync.Mutex
	enabled  bool
	counters = make(map[string]int)
	limiters = make(map[string]*rate.Limiter)

	// root writes through sink, so loggers taken from it before a Setup
	// follow the new outputs
	root = zerolog.New(sink{}).With().Timestamp().Logger()

	outMu sync.Mutex
	out   zerolog.LevelWriter // nil discards
	level zerolog.Level
	file  *os.File
)

// sink forwards every event to the outputs installed last
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	return sink{}.WriteLevel(zerolog.NoLevel, p)
}

func (sink) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	outMu.Lock()
	defer outMu.Unlock()
	if out == nil || (l != zerolog.NoLevel && l < level) {
		return len(p), nil
	}
	return out.WriteLevel(l, p)
}

// install swaps the outputs and closes the file of the previous ones
func install(w zerolog.LevelWriter, lvl zerolog.Level, f *os.File) {
	outMu.Lock()
	old := file
	out, level, file = w, lvl, f
	outMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Options configures the process logger
type Options struct {
	Level   string // trace, debug, info, warn, error
	Console bool   // human readable output on stderr
	File    string // JSON lines file; empty = no file
}

// Setup replaces the outputs. Safe to call again on config reload; loggers
// handed out earlier write to the new outputs.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorFieldName = "err"

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat})
	}
	var f *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return errors.Wrap(err, "create log dir")
		}
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrapf(err, "open log file %s", opts.File)
		}
		writers = append(writers, f)
	}

	if len(writers) == 0 {
		install(nil, zerolog.InfoLevel, nil)
		enabled = false
		return nil
	}
	install(zerolog.MultiLevelWriter(writers...), ParseLevel(opts.Level), f)
	enabled = true
	return nil
}

// SetOutput routes logs to w at the given level (used by tests)
func SetOutput(w io.Writer, lvl string) {
	mu.Lock()
	defer mu.Unlock()
	install(zerolog.MultiLevelWriter(w), ParseLevel(lvl), nil)
	enabled = true
}

// Enable starts debug logging to ~/.config/go-transport/debug.log
func Enable() error {
	outMu.Lock()
	on := file != nil
	outMu.Unlock()
	if on {
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, "resolve home dir")
	}
	path := filepath.Join(homeDir, ".config", "go-transport", "debug.log")
	if err := Setup(Options{Level: "debug", File: path}); err != nil {
		return err
	}
	Log("debug", "=== Debug logging started ===")
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	install(nil, zerolog.InfoLevel, nil)
	enabled = false
}

// Logger returns a structured logger tagged with a component name
func Logger(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}

// Log writes a debug message under a category
func Log(category, format string, args ...any) {
	mu.Lock()
	on := enabled
	mu.Unlock()

	if !on {
		return
	}
	root.Debug().Str("cat", category).Msg(fmt.Sprintf(format, args...))
}

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n <= 1 || count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Limited reports whether a message keyed by key may be emitted now.
// At most perSecond messages per key pass, with a burst of one.
func Limited(key string, perSecond float64) bool {
	mu.Lock()
	defer mu.Unlock()
	lim, ok := limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
		limiters[key] = lim
	}
	return lim.Allow()
}

// ParseLevel maps a config string to a zerolog level (default info)
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
