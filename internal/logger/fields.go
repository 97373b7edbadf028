package logger

import (
	"log/slog"

	"github.com/marmos91/zenopico/internal/bytesize"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so aggregation/querying doesn't have to guess
// at naming.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Session & Transport
	// ========================================================================
	KeyOperation = "operation" // declare_subscriber, put, get, scout, etc.
	KeyLocator   = "locator"   // protocol/address[:port][?params]
	KeyZID       = "zid"       // this session's own zenoh id, hex
	KeyPeerZID   = "peer_zid"  // remote peer's zenoh id, hex
	KeyChannel   = "channel"   // reliable, best_effort
	KeyState     = "state"     // transport.State string
	KeyReason    = "reason"    // protocol.CloseReason string

	// ========================================================================
	// Wire / Protocol
	// ========================================================================
	KeyKeyExpr        = "key_expr"        // resolved key expression
	KeyResourceID     = "resource_id"     // declared resource id (RID)
	KeyDeclarationID  = "declaration_id"  // subscriber/publisher/queryable/token id
	KeyRequestID      = "request_id"      // pending-query request id
	KeySequenceNumber = "sn"              // frame/fragment sequence number
	KeyFragmentCount  = "fragment_count"  // number of fragments a payload was split into
	KeyPayloadBytes   = "payload_bytes"   // encoded payload size in bytes
	KeyBatchSize      = "batch_size"      // negotiated batch_size
	KeyLeaseMs        = "lease_ms"        // negotiated lease, milliseconds

	// ========================================================================
	// Declaration Tables
	// ========================================================================
	KeyTable     = "table"     // resources, subscribers, publishers, queryables, tokens
	KeyDirection = "direction" // local, remote
	KeyTableSize = "table_size"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric/kind error code
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts
	KeyHitRate    = "hit_rate"    // KE resolver cache hit rate
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for the operation name
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Locator returns a slog.Attr for a locator string
func Locator(l string) slog.Attr {
	return slog.String(KeyLocator, l)
}

// ZID returns a slog.Attr for this session's own zenoh id
func ZID(hex string) slog.Attr {
	return slog.String(KeyZID, hex)
}

// PeerZID returns a slog.Attr for the remote peer's zenoh id
func PeerZID(hex string) slog.Attr {
	return slog.String(KeyPeerZID, hex)
}

// Channel returns a slog.Attr for the transport channel
func Channel(c string) slog.Attr {
	return slog.String(KeyChannel, c)
}

// State returns a slog.Attr for the transport session state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Reason returns a slog.Attr for a close reason
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// KeyExpression returns a slog.Attr for a resolved key expression
func KeyExpression(ke string) slog.Attr {
	return slog.String(KeyKeyExpr, ke)
}

// ResourceID returns a slog.Attr for a declared resource id
func ResourceID(rid uint16) slog.Attr {
	return slog.Any(KeyResourceID, rid)
}

// DeclarationID returns a slog.Attr for a subscriber/publisher/queryable/
// token id
func DeclarationID(id uint32) slog.Attr {
	return slog.Any(KeyDeclarationID, id)
}

// RequestID returns a slog.Attr for a pending-query request id
func RequestID(id uint32) slog.Attr {
	return slog.Any(KeyRequestID, id)
}

// SequenceNumber returns a slog.Attr for a frame/fragment sequence number
func SequenceNumber(sn uint64) slog.Attr {
	return slog.Uint64(KeySequenceNumber, sn)
}

// FragmentCount returns a slog.Attr for a fragment count
func FragmentCount(n int) slog.Attr {
	return slog.Int(KeyFragmentCount, n)
}

// PayloadBytes returns a slog.Attr for an encoded payload size, formatted
// human-readable (e.g. "1.50KiB") rather than a raw byte count.
func PayloadBytes(n int) slog.Attr {
	return slog.String(KeyPayloadBytes, bytesize.ByteSize(n).String())
}

// BatchSize returns a slog.Attr for the negotiated batch_size
func BatchSize(n uint16) slog.Attr {
	return slog.Any(KeyBatchSize, n)
}

// LeaseMs returns a slog.Attr for the negotiated lease, in milliseconds
func LeaseMs(ms uint64) slog.Attr {
	return slog.Uint64(KeyLeaseMs, ms)
}

// Table returns a slog.Attr for a declaration table name
func Table(name string) slog.Attr {
	return slog.String(KeyTable, name)
}

// Direction returns a slog.Attr for local/remote
func Direction(d string) slog.Attr {
	return slog.String(KeyDirection, d)
}

// TableSize returns a slog.Attr for a declaration table's current size
func TableSize(n int) slog.Attr {
	return slog.Int(KeyTableSize, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/kind error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// HitRate returns a slog.Attr for the KE resolver cache hit rate
func HitRate(rate float64) slog.Attr {
	return slog.Float64(KeyHitRate, rate)
}
