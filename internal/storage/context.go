package storage

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is a type for context keys used in storage layer
type ContextKey string

const (
	// RunIDContextKey is the key for the harness run id in context
	RunIDContextKey ContextKey = "storage_run_id"
)

// WithRunID returns a context that attributes stored exchanges to runID
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) (uuid.UUID, bool) {
	if runID, ok := ctx.Value(RunIDContextKey).(uuid.UUID); ok {
		return runID, true
	}
	return uuid.Nil, false
}

