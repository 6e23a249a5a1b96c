package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Configure sets the default slog logger. Logs go to stderr so that stdout
// only carries update progress.
func Configure(levelStr string, env string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, levelStr, env, isTerminal(os.Stderr))))
}

// NewHandler returns a tint handler for dev (or auto on a terminal) and a
// JSON handler otherwise.
func NewHandler(w io.Writer, levelStr string, env string, tty bool) slog.Handler {
	level := parseLogLevel(levelStr)

	switch strings.ToLower(env) {
	case "dev", "development":
		return tint.NewHandler(w, &tint.Options{Level: level, NoColor: !tty})
	case "auto", "":
		if tty {
			return tint.NewHandler(w, &tint.Options{Level: level})
		}
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
