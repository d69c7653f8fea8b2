package model

import (
	"fmt"
	"time"
)

// Channels is the number of 8-bit color samples per pixel (BGR).
const Channels = 3

// Frame is one raw BGR raster read from the input stream. Data is row-major and
// must not be modified once the frame has been handed to the pipeline.
type Frame struct {
	Seq    int
	Width  int
	Height int
	Data   []byte
}

// FrameSize returns the byte length of a raw frame with the given dimensions.
func FrameSize(width, height int) int {
	return width * height * Channels
}

// Validate checks that Data matches the declared dimensions.
func (f Frame) Validate() error {
	if want := FrameSize(f.Width, f.Height); len(f.Data) != want {
		return fmt.Errorf("frame %d: got %d bytes, want %d", f.Seq, len(f.Data), want)
	}
	return nil
}

// Summary is reported once a run has stopped.
type Summary struct {
	RunID          string        `json:"run_id"`
	Reason         string        `json:"reason"`
	Err            error         `json:"-"`
	FramesRead     int           `json:"frames_read"`
	FramesSampled  int           `json:"frames_sampled"`
	RecordsLogged  int           `json:"records_logged"`
	RecordsDropped int           `json:"records_dropped"`
	Suppressed     int           `json:"suppressed"`
	FramesDropped  int64         `json:"frames_dropped"`
	Elapsed        time.Duration `json:"elapsed"`
}
