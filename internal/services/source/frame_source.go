package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
)

var (
	// ErrEndOfStream means no further full frame is available. Truncated
	// streams and exited acquisition processes both end up here.
	ErrEndOfStream = errors.New("end of stream")
	ErrReadFailed  = errors.New("frame read failed")
)

// QueuePolicy decides what the reader does when the frame queue is full.
type QueuePolicy string

const (
	// Block stops reading until the pipeline takes a frame; the OS pipe then
	// fills up and the acquisition process stalls.
	Block QueuePolicy = "block"
	// Drop discards the newly read frame and keeps reading.
	Drop QueuePolicy = "drop"
)

type Options struct {
	Width     int
	Height    int
	QueueSize int
	Policy    QueuePolicy
}

// FrameSource reads fixed-size raw frames from a byte stream. A reader
// goroutine fills a bounded queue; ReadFrame takes from it.
type FrameSource struct {
	stream    io.ReadCloser
	frameSize int
	width     int
	height    int
	policy    QueuePolicy
	logger    *logger.Logger

	frames  chan []byte
	stop    chan struct{}
	done    chan struct{}
	readErr error
	dropped atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// New attaches to stream and starts reading. The FrameSource owns stream and
// closes it in Close.
func New(stream io.ReadCloser, opts Options, logger *logger.Logger) (*FrameSource, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	switch opts.Policy {
	case "":
		opts.Policy = Block
	case Block, Drop:
	default:
		return nil, fmt.Errorf("unknown queue policy %q", opts.Policy)
	}

	s := &FrameSource{
		stream:    stream,
		frameSize: model.FrameSize(opts.Width, opts.Height),
		width:     opts.Width,
		height:    opts.Height,
		policy:    opts.Policy,
		logger:    logger,
		frames:    make(chan []byte, opts.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *FrameSource) readLoop() {
	defer close(s.done)
	defer close(s.frames)

	for {
		buf := make([]byte, s.frameSize)
		n, err := io.ReadFull(s.stream, buf)
		if err != nil {
			if !isEndOfStream(err) {
				s.readErr = err
			} else if n > 0 {
				s.logger.Warning("Stream truncated: %d of %d bytes in last frame", n, s.frameSize)
			}
			return
		}

		if s.policy == Drop {
			select {
			case s.frames <- buf:
			case <-s.stop:
				return
			default:
				if d := s.dropped.Add(1); d == 1 || d%100 == 0 {
					s.logger.Warning("⚠️  Frame queue full - dropped %d frame(s) so far", d)
				}
			}
			continue
		}

		select {
		case s.frames <- buf:
		case <-s.stop:
			return
		}
	}
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// ReadFrame returns the next complete frame. It returns ErrEndOfStream once
// the stream is exhausted, ctx.Err() if ctx is done first, and an error
// wrapping ErrReadFailed for other I/O failures.
func (s *FrameSource) ReadFrame(ctx context.Context) (model.Frame, error) {
	select {
	case buf, ok := <-s.frames:
		if !ok {
			// readErr is written before frames is closed.
			if s.readErr != nil {
				return model.Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, s.readErr)
			}
			return model.Frame{}, ErrEndOfStream
		}
		return model.Frame{Width: s.width, Height: s.height, Data: buf}, nil
	case <-ctx.Done():
		return model.Frame{}, ctx.Err()
	}
}

// Dropped reports frames discarded by the Drop policy.
func (s *FrameSource) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the reader and releases the stream. Only the first call does work.
func (s *FrameSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.closeErr = s.stream.Close()
		<-s.done
	})
	return s.closeErr
}
