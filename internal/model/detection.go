package model

import "time"

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Detection represents one classified box produced by the detector for one frame.
type Detection struct {
	ClassName  string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionKey is the coarsened identity used to recognize the same detection
// across nearby frames.
type DetectionKey struct {
	ClassName string
	XMin      int
	YMin      int
	XMax      int
	YMax      int
}

// Key quantizes every coordinate down to a multiple of bucket.
func (d Detection) Key(bucket int) DetectionKey {
	return DetectionKey{
		ClassName: d.ClassName,
		XMin:      quantize(d.Box.XMin, bucket),
		YMin:      quantize(d.Box.YMin, bucket),
		XMax:      quantize(d.Box.XMax, bucket),
		YMax:      quantize(d.Box.YMax, bucket),
	}
}

func quantize(v, bucket int) int {
	if bucket <= 1 {
		return v
	}
	q := v / bucket
	if v%bucket != 0 && v < 0 {
		q--
	}
	return q * bucket
}

// LogRecord is one row of the persistent detection log.
type LogRecord struct {
	Timestamp  time.Time   `json:"timestamp"`
	ClassName  string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// NewLogRecord stamps a detection with the time it was accepted for logging.
func NewLogRecord(ts time.Time, d Detection) LogRecord {
	return LogRecord{
		Timestamp:  ts,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		Box:        d.Box,
	}
}

// Event is a LogRecord persisted in the event store.
type Event struct {
	ID    int64  `json:"id"`
	RunID string `json:"run_id"`
	LogRecord
}
