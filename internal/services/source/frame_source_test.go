package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
)

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func frames(n, size int) []byte {
	data := make([]byte, 0, n*size)
	for i := 0; i < n; i++ {
		data = append(data, bytes.Repeat([]byte{byte(i + 1)}, size)...)
	}
	return data
}

func readAll(t *testing.T, s *FrameSource) ([]model.Frame, error) {
	t.Helper()
	var out []model.Frame
	for {
		f, err := s.ReadFrame(context.Background())
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

func TestReadFrame_FullFrames(t *testing.T) {
	size := model.FrameSize(4, 2)
	stream := &closeTracker{Reader: bytes.NewReader(frames(3, size))}
	s, err := New(stream, Options{Width: 4, Height: 2, QueueSize: 1}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	got, err := readAll(t, s)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("Expected ErrEndOfStream, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(got))
	}
	for i, f := range got {
		if err := f.Validate(); err != nil {
			t.Errorf("Frame %d invalid: %v", i, err)
		}
		if f.Data[0] != byte(i+1) {
			t.Errorf("Frame %d out of order: first byte %d", i, f.Data[0])
		}
	}

	// End of stream is sticky.
	if _, err := s.ReadFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream again, got %v", err)
	}
}

func TestReadFrame_TruncatedStream(t *testing.T) {
	// 1,500,000 of 6,220,800 bytes for a 1920x1080 frame.
	stream := &closeTracker{Reader: bytes.NewReader(make([]byte, 1500000))}
	s, err := New(stream, Options{Width: 1920, Height: 1080}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ReadFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream for truncated frame, got %v", err)
	}
}

func TestReadFrame_PartialTrailingFrameNeverYielded(t *testing.T) {
	size := model.FrameSize(8, 8)
	data := append(frames(2, size), make([]byte, size-1)...)
	s, err := New(&closeTracker{Reader: bytes.NewReader(data)}, Options{Width: 8, Height: 8, QueueSize: 4}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	got, err := readAll(t, s)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("Expected ErrEndOfStream, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 full frames, got %d", len(got))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestReadFrame_ReadError(t *testing.T) {
	s, err := New(&closeTracker{Reader: failingReader{}}, Options{Width: 2, Height: 2}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ReadFrame(context.Background()); !errors.Is(err, ErrReadFailed) {
		t.Errorf("Expected ErrReadFailed, got %v", err)
	}
}

func TestReadFrame_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s, err := New(pr, Options{Width: 2, Height: 2}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.ReadFrame(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestDropPolicy_CountsDroppedFrames(t *testing.T) {
	size := model.FrameSize(2, 2)
	s, err := New(&closeTracker{Reader: bytes.NewReader(frames(10, size))}, Options{Width: 2, Height: 2, QueueSize: 2, Policy: Drop}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	// Let the reader run ahead of the consumer.
	<-s.done

	got, err := readAll(t, s)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("Expected ErrEndOfStream, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected queue capacity of 2 frames kept, got %d", len(got))
	}
	if s.Dropped() != 8 {
		t.Errorf("Expected 8 dropped frames, got %d", s.Dropped())
	}
	if got[0].Data[0] != 1 || got[1].Data[0] != 2 {
		t.Errorf("Expected the oldest frames kept, got %d and %d", got[0].Data[0], got[1].Data[0])
	}
}

func TestClose_ReleasesBlockedReaderOnce(t *testing.T) {
	size := model.FrameSize(2, 2)
	stream := &closeTracker{Reader: bytes.NewReader(frames(50, size))}
	s, err := New(stream, Options{Width: 2, Height: 2, QueueSize: 1, Policy: Block}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := s.ReadFrame(context.Background()); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a full queue")
	}
	if stream.closed != 1 {
		t.Errorf("Expected stream closed once, got %d", stream.closed)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	if _, err := New(&closeTracker{Reader: bytes.NewReader(nil)}, Options{Width: 0, Height: 10}, logger.Discard()); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := New(&closeTracker{Reader: bytes.NewReader(nil)}, Options{Width: 1, Height: 1, Policy: "spill"}, logger.Discard()); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestStartAcquisition_MissingBinary(t *testing.T) {
	cfg := AcquisitionConfig{
		SourceURL:  "rtsp://127.0.0.1/none",
		FFmpegPath: "/nonexistent/ffmpeg",
		Width:      640,
		Height:     480,
	}
	if _, err := StartAcquisition(cfg, logger.Discard()); err == nil {
		t.Error("Expected error for missing ffmpeg")
	}

	cfg.FetchCommand = "/nonexistent/streamlink"
	if _, err := Open(cfg, Options{Width: 640, Height: 480}, logger.Discard()); err == nil {
		t.Error("Expected error for missing fetch command")
	}
}

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("pipe:0", 1920, 1080)
	joined := bytes.Join(toBytes(args), []byte(" "))
	for _, want := range []string{"-i pipe:0", "-f rawvideo", "-pix_fmt bgr24", "-s 1920x1080", "pipe:1"} {
		if !bytes.Contains(joined, []byte(want)) {
			t.Errorf("Expected %q in ffmpeg args: %s", want, joined)
		}
	}
}

func toBytes(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}
