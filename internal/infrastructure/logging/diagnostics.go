package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Diagnostics is the operator-facing status channel. Every line is written
// verbatim to the configured writer (typically the serial console or stdout)
// and mirrored into the structured log at info level under "diagnostic".
//
// Writes are serialised, so one Diagnostics may be shared by the poll
// loop and the HTTP console.
type Diagnostics struct {
	mu     sync.Mutex
	w      io.Writer
	logger *Logger
}

// NewDiagnostics creates a diagnostics sink. Either argument may be nil.
func NewDiagnostics(w io.Writer, logger *Logger) *Diagnostics {
	return &Diagnostics{w: w, logger: logger}
}

// Printf formats a diagnostic message. A trailing newline is added when
// missing so callers can pass single-line messages.
func (d *Diagnostics) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.w != nil {
		_, _ = io.WriteString(d.w, msg) //nolint:errcheck // console output is best effort
	}
	if d.logger != nil {
		d.logger.Info("diagnostic", "text", strings.TrimRight(msg, "\n"))
	}
}
