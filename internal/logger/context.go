package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context: identifying fields that
// should ride along on every log line emitted while handling one session's
// traffic, without threading them through every function signature.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // declare_subscriber, put, get, scout, etc.
	Locator   string    // the locator this entry concerns (tcp/host:port)
	ZID       string    // this session's own zenoh id, hex-encoded
	PeerZID   string    // remote peer's zenoh id, hex-encoded, once known
	Channel   string    // reliable, best_effort
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a session dialing or listening
// on locator.
func NewLogContext(locator string) *LogContext {
	return &LogContext{
		Locator:   locator,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		Locator:   lc.Locator,
		ZID:       lc.ZID,
		PeerZID:   lc.PeerZID,
		Channel:   lc.Channel,
		StartTime: lc.StartTime,
	}
}

// WithOperation returns a copy with the operation set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithLocator returns a copy with the locator set
func (lc *LogContext) WithLocator(locator string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Locator = locator
	}
	return clone
}

// WithZIDs returns a copy with the local and peer zenoh ids set
func (lc *LogContext) WithZIDs(zid, peerZID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ZID = zid
		clone.PeerZID = peerZID
	}
	return clone
}

// WithChannel returns a copy with the transport channel set
func (lc *LogContext) WithChannel(channel string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Channel = channel
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
