package db

import "context"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID returns a context carrying the request correlation id.
// Everything downstream that touches the database resolves its connection
// through this id, so all data access within one request shares a single
// connection and a single transaction.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the request correlation id from ctx. The second
// return value is false for contexts outside request processing
// (background tasks, tests without a bracket).
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
