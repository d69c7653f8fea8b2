package repository

import (
	"streamdetect/internal/model"
)

// EventRepository defines the interface for detection event storage.
type EventRepository interface {
	// Create operations
	Insert(runID string, rec model.LogRecord) (int64, error)
	InsertBatch(runID string, records []model.LogRecord) error

	// Read operations
	GetByRun(runID string) ([]model.Event, error)
	Count(runID string) (int, error)
	CountByClass() (map[string]int, error)
	GetRunIDs() ([]string, error)

	// Delete operations
	DeleteByRun(runID string) error
}
