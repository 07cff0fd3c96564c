package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu     sync.Mutex
	file   *os.File
	logger = charmlog.New(io.Discard)
)

// Enable starts debug logging to ~/.config/gridbeat/debug.log.
// The TUI owns stdout, so everything goes to the file.
func Enable() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(homeDir, ".config", "gridbeat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	EnableWriter(f)

	mu.Lock()
	file = f
	mu.Unlock()
	return nil
}

// EnableWriter sends debug output to w (used by the CLI for stderr)
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	logger.Debug("=== Debug logging started ===")
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger = charmlog.New(io.Discard)
}

// Logger returns the current logger
func Logger() *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log writes a debug line tagged with a category
func Log(category, msg string, keyvals ...any) {
	Logger().WithPrefix(category).Debug(msg, keyvals...)
}

// Warn writes a warning line tagged with a category
func Warn(category, msg string, keyvals ...any) {
	Logger().WithPrefix(category).Warn(msg, keyvals...)
}

var counters = make(map[string]int)

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, msg string, keyvals ...any) {
	mu.Lock()
	key := category + msg
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, msg, append(keyvals, "every", n, "count", count)...)
	}
}
