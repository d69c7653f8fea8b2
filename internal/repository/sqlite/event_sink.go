package sqlite

import (
	"streamdetect/internal/model"
)

// EventSink mirrors the detection log of one run into the event store. It owns
// the database handle.
type EventSink struct {
	db    *DB
	repo  *EventRepository
	runID string
}

func OpenEventSink(dbPath, runID string) (*EventSink, error) {
	db, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	return &EventSink{db: db, repo: NewEventRepository(db), runID: runID}, nil
}

func (s *EventSink) Append(rec model.LogRecord) error {
	_, err := s.repo.Insert(s.runID, rec)
	return err
}

func (s *EventSink) Close() error {
	return s.db.Close()
}
