// Package logging builds the slog handlers used by the command line tools.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
)

// Logger returns a logger writing text, or JSON when json is set, to w at
// level. Text written to the process stdout or stderr goes through a
// colorable writer so escape sequences survive Windows consoles.
func Logger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level < slog.LevelInfo}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	switch w {
	case os.Stdout:
		w = colorable.NewColorableStdout()
	case os.Stderr:
		w = colorable.NewColorableStderr()
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel reads DEBUG, INFO, WARN or ERROR in any case. Unknown names give
// INFO and false.
func ParseLevel(name string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}
