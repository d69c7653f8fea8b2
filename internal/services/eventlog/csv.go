package eventlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"streamdetect/internal/model"
)

// TimestampLayout is the layout of the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Header is the fixed schema of the detection log.
var Header = []string{"timestamp", "class", "confidence", "x_min", "y_min", "x_max", "y_max"}

// CSVSink appends rows to a CSV file, writing the header only when the file
// is new or empty. Every row is flushed so the file always reflects Count.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

func OpenCSV(path string) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat detection log: %w", err)
	}

	sink := &CSVSink{file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := sink.write(Header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return sink, nil
}

func (s *CSVSink) Append(rec model.LogRecord) error {
	return s.write([]string{
		rec.Timestamp.Format(TimestampLayout),
		rec.ClassName,
		strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
		strconv.Itoa(rec.Box.XMin),
		strconv.Itoa(rec.Box.YMin),
		strconv.Itoa(rec.Box.XMax),
		strconv.Itoa(rec.Box.YMax),
	})
}

func (s *CSVSink) write(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to sync detection log: %w", err)
	}
	return s.file.Close()
}

// ReadCSV parses a detection log written by CSVSink.
func ReadCSV(r io.Reader) ([]model.LogRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected column %q at %d, want %q", header[i], i, col)
		}
	}

	var records []model.LogRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return records, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (model.LogRecord, error) {
	ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	conf, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("invalid confidence: %w", err)
	}

	var coords [4]int
	for i := range coords {
		coords[i], err = strconv.Atoi(row[3+i])
		if err != nil {
			return model.LogRecord{}, fmt.Errorf("invalid %s: %w", Header[3+i], err)
		}
	}

	return model.LogRecord{
		Timestamp:  ts,
		ClassName:  row[1],
		Confidence: conf,
		Box:        model.BoundingBox{XMin: coords[0], YMin: coords[1], XMax: coords[2], YMax: coords[3]},
	}, nil
}
