package eventlog

import (
	"errors"
	"fmt"

	"streamdetect/internal/model"
)

// Outcome tells the caller whether a record reached the log.
type Outcome int

const (
	Logged Outcome = iota
	Dropped
)

func (o Outcome) String() string {
	if o == Logged {
		return "logged"
	}
	return "dropped"
}

// Sink is an append-only destination for detection records.
type Sink interface {
	Append(rec model.LogRecord) error
	Close() error
}

// Logger appends records to its sinks until max records have been written in
// this run. Past the cap every call is a silent no-op.
type Logger struct {
	sinks   []Sink
	max     int
	count   int
	dropped int
	closed  bool
}

func New(max int, sinks ...Sink) *Logger {
	return &Logger{sinks: sinks, max: max}
}

// Log writes rec to every sink. A sink failure is returned as an error and the
// record is not counted.
func (l *Logger) Log(rec model.LogRecord) (Outcome, error) {
	if l.closed {
		return Dropped, errors.New("event log is closed")
	}
	if l.count >= l.max {
		l.dropped++
		return Dropped, nil
	}

	for _, s := range l.sinks {
		if err := s.Append(rec); err != nil {
			return Dropped, fmt.Errorf("failed to append record: %w", err)
		}
	}
	l.count++
	return Logged, nil
}

// Count is the number of records written in this run.
func (l *Logger) Count() int { return l.count }

// Dropped is the number of records discarded because the cap was reached.
func (l *Logger) Dropped() int { return l.dropped }

// Close flushes and closes every sink. Safe to call more than once.
func (l *Logger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
