// Package logging provides the structured, leveled logger shared by every
// BK25 subsystem, plus the redaction and truncation helpers spec.md §7
// requires of user-facing error messages.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Base is the process-wide root logger. Subsystems derive a tagged child
// with For instead of logging through Base directly.
var Base = zerolog.New(os.Stdout).With().Timestamp().Logger()

func init() {
	level := zerolog.InfoLevel
	if s := os.Getenv("BK25_LOG_LEVEL"); s != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			level = lvl
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// For returns a child logger tagged with the given component name, e.g.
// logging.For("supervisor"), matching the component breakdown in SPEC_FULL.md §3.
func For(component string) zerolog.Logger {
	return Base.With().Str("component", component).Logger()
}

// WithTrace enriches a logger with trace_id/span_id from ctx when a span is
// present, mirroring the teacher's observability.LoggerWithTrace.
func WithTrace(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	lc := l.With().Str("trace_id", sc.TraceID().String())
	if sc.HasSpanID() {
		lc = lc.Str("span_id", sc.SpanID().String())
	}
	return lc.Logger()
}

// MaxInlineOutput bounds how much raw subprocess stderr/stdout may appear in
// a user-facing error per spec.md §7 ("truncate and mark").
const MaxInlineOutput = 4096

// TruncateForUser clips s to MaxInlineOutput bytes, appending a marker when
// truncation happened. It never panics on invalid UTF-8 boundaries since it
// only needs to bound byte length for display purposes.
func TruncateForUser(s string) string {
	if len(s) <= MaxInlineOutput {
		return s
	}
	return s[:MaxInlineOutput] + fmt.Sprintf("... [truncated %d bytes]", len(s)-MaxInlineOutput)
}
