package metrics

import (
	"context"

	"codeberg.org/mutker/macstatd/internal/collector"
)

// Recorder persists published snapshots for later inspection.
type Recorder interface {
	Record(ctx context.Context, snapshot collector.Snapshot) error
	Close() error
}

// Repository defines the interface for sample storage.
type Repository interface {
	Record(snapshot collector.Snapshot) error
	Close() error
}
