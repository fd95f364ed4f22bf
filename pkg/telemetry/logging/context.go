package logging

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	taskIDKey
)

// WithRequestID stores the HTTP request ID; records logged with the
// returned context carry it as request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request ID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTaskID stores the background task ID; records logged with the
// returned context carry it as task_id.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskIDFrom returns the task ID stored in ctx, or "".
func TaskIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey).(string)
	return id
}

func contextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	if id := RequestIDFrom(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	if id := TaskIDFrom(ctx); id != "" {
		fields = append(fields, "task_id", id)
	}
	return fields
}
