// Package logging provides structured logging correlated with traces.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - One JSON (or text) line per record with time, level and message keys
//   - trace_id and span_id from the active OpenTelemetry span, null outside one
//   - request_id from the request context
//   - Values that cannot be encoded as JSON written as their string form
//   - A runtime adjustable level shared by derived loggers
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logger.InfoContext(ctx, "request_processed",
//	    "method", "GET",
//	    "status_code", 200,
//	)
//
// Output:
//
//	{"time":"...","level":"INFO","message":"request_processed","method":"GET","status_code":200,"trace_id":"4bf9...","span_id":"00f0..."}
package logging
