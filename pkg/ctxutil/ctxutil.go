package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	runIDKey    ctxKey = "run_id"
	protocolKey ctxKey = "protocol"
)

// WithRunID stores the extraction run ID in the context.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the extraction run ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func RunIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithProtocol stores the name of the protocol being processed in the
// context, for log correlation in worker goroutines.
func WithProtocol(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, protocolKey, name)
}

// ProtocolFromCtx extracts the protocol name from the context.
// Returns an empty string if absent.
func ProtocolFromCtx(ctx context.Context) string {
	name, _ := ctx.Value(protocolKey).(string)
	return name
}
