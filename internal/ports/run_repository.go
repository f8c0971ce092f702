package ports

import (
	"context"

	"traffic-probe-service/internal/domain"
)

// Port: a boundary for persisting and retrieving acquisition run history.
type RunRepository interface {
	// RecordRun stores one cycle summary. Recording the same run twice is a no-op.
	RecordRun(ctx context.Context, rec domain.RunRecord) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
