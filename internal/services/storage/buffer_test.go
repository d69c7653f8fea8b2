package storage

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
)

func rawEncode(frame model.Frame) ([]byte, error) {
	return frame.Data, nil
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBuffer_FlushesWhenFull(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBufferService(dir, 2, rawEncode, logger.Discard())
	if err != nil {
		t.Fatalf("NewBufferService failed: %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC) }

	if err := s.Add(model.Frame{Seq: 10, Data: []byte("a")}, "car"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := listFiles(t, dir); len(got) != 0 {
		t.Fatalf("Expected nothing on disk before the buffer fills, got %v", got)
	}

	if err := s.Add(model.Frame{Seq: 20, Data: []byte("b")}, "traffic light"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	files := listFiles(t, dir)
	if len(files) != 2 {
		t.Fatalf("Expected 2 files after flush, got %v", files)
	}
	if files[0] != "2025-06-15_14-30-00_000010_car.jpg" {
		t.Errorf("Unexpected filename %s", files[0])
	}
	if !strings.HasSuffix(files[1], "_000020_traffic-light.jpg") {
		t.Errorf("Expected sanitized label in %s", files[1])
	}
}

func TestBuffer_CloseFlushesRemainder(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBufferService(dir, 10, rawEncode, logger.Discard())
	if err != nil {
		t.Fatalf("NewBufferService failed: %v", err)
	}

	s.Add(model.Frame{Seq: 1, Data: []byte("x")}, "dog")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.Saved() != 1 {
		t.Errorf("Expected 1 saved snapshot, got %d", s.Saved())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if s.Saved() != 1 {
		t.Errorf("Expected no extra writes, got %d", s.Saved())
	}
}

func TestBuffer_EncodeError(t *testing.T) {
	boom := errors.New("bad frame")
	s, err := NewBufferService(t.TempDir(), 1, func(model.Frame) ([]byte, error) { return nil, boom }, logger.Discard())
	if err != nil {
		t.Fatalf("NewBufferService failed: %v", err)
	}
	if err := s.Add(model.Frame{}, "car"); !errors.Is(err, boom) {
		t.Errorf("Expected encode error, got %v", err)
	}
}
