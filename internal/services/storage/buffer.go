package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
)

// EncodeFunc compresses a raw frame to an image file format.
type EncodeFunc func(model.Frame) ([]byte, error)

type Image struct {
	Timestamp string
	Seq       int
	Object    string
	Data      []byte
}

// BufferService keeps annotated snapshots in memory and writes them to disk
// in batches of bufferLimit, and once more on Close.
type BufferService struct {
	imagesDir   string
	images      []Image
	bufferLimit int
	encode      EncodeFunc
	now         func() time.Time
	logger      *logger.Logger
	saved       int
}

func NewBufferService(imagesDir string, bufferLimit int, encode EncodeFunc, logger *logger.Logger) (*BufferService, error) {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if bufferLimit < 1 {
		bufferLimit = 1
	}
	return &BufferService{
		imagesDir:   imagesDir,
		bufferLimit: bufferLimit,
		images:      make([]Image, 0, bufferLimit),
		encode:      encode,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Add encodes frame and buffers it, flushing once the buffer is full.
func (s *BufferService) Add(frame model.Frame, object string) error {
	data, err := s.encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.images = append(s.images, Image{
		Timestamp: s.now().Format("2006-01-02_15-04-05"),
		Seq:       frame.Seq,
		Object:    object,
		Data:      data,
	})

	if len(s.images) >= s.bufferLimit {
		return s.FlushImages()
	}
	return nil
}

// FlushImages writes every buffered snapshot and empties the buffer.
func (s *BufferService) FlushImages() error {
	if len(s.images) == 0 {
		return nil
	}

	var firstErr error
	written := 0
	for _, image := range s.images {
		filename := fmt.Sprintf("%s_%06d_%s.jpg", image.Timestamp, image.Seq, sanitize(image.Object))
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, image.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	s.saved += written
	s.logger.Info("💾 Flushed %d snapshot(s) to %s", written, s.imagesDir)
	s.images = s.images[:0]
	return firstErr
}

// Saved is the number of snapshots written to disk.
func (s *BufferService) Saved() int {
	return s.saved
}

func (s *BufferService) Close() error {
	return s.FlushImages()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}
