package sqlite

import (
	"fmt"

	"streamdetect/internal/model"
	"streamdetect/internal/repository"
)

var _ repository.EventRepository = (*EventRepository)(nil)

const insertEvent = `
	INSERT INTO events (run_id, timestamp, class, confidence, x_min, y_min, x_max, y_max)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert adds a new event record to the database.
func (r *EventRepository) Insert(runID string, rec model.LogRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertEvent, runID, rec.Timestamp, rec.ClassName, rec.Confidence,
		rec.Box.XMin, rec.Box.YMin, rec.Box.XMax, rec.Box.YMax)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple events in a single transaction.
func (r *EventRepository) InsertBatch(runID string, records []model.LogRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertEvent)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(runID, rec.Timestamp, rec.ClassName, rec.Confidence,
			rec.Box.XMin, rec.Box.YMin, rec.Box.XMax, rec.Box.YMax); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return tx.Commit()
}

// GetByRun retrieves all events of a run in insertion order.
func (r *EventRepository) GetByRun(runID string) ([]model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, timestamp, class, confidence, x_min, y_min, x_max, y_max
		FROM events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Timestamp, &ev.ClassName, &ev.Confidence,
			&ev.Box.XMin, &ev.Box.YMin, &ev.Box.XMax, &ev.Box.YMax); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Count returns the number of events stored for a run.
func (r *EventRepository) Count(runID string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// CountByClass returns how many events were stored per class across all runs.
func (r *EventRepository) CountByClass() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT class, COUNT(*) FROM events GROUP BY class ORDER BY class`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("failed to scan class count: %w", err)
		}
		counts[class] = count
	}

	return counts, rows.Err()
}

// GetRunIDs returns the distinct run ids, oldest first.
func (r *EventRepository) GetRunIDs() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT run_id FROM events GROUP BY run_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// DeleteByRun removes all events of a run.
func (r *EventRepository) DeleteByRun(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
