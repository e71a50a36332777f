package behind

import (
	"log/slog"

	"github.com/gogpu/gg"

	"github.com/gogpu/behind/internal/logx"
)

// SetLogger configures the logger for behind and all its sub-packages. The
// same logger is installed in gg, which does the drawing.
// By default nothing is logged. Pass nil to restore the silent default.
//
// SetLogger is safe for concurrent use.
//
// Log levels used by behind:
//   - [slog.LevelDebug]: per-frame render statistics, pointer events, decodes
//   - [slog.LevelInfo]: export lifecycle
//   - [slog.LevelWarn]: skipped layers, decode failures, asset timeouts
//   - [slog.LevelError]: failed exports
//
// Example:
//
//	behind.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logx.Set(l)
	gg.SetLogger(logx.Get())
}

// Logger returns the current logger. It never returns nil.
func Logger() *slog.Logger {
	return logx.Get()
}
