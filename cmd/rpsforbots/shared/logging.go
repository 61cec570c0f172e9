package shared

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger creates a logger at the named level, falling back to info
// for unknown names.
func SetupLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}
