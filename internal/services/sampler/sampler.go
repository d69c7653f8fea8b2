package sampler

import (
	"errors"
	"fmt"
)

var ErrInvalidSkip = errors.New("frame skip must be >= 1")

// Sampler decides which frames are forwarded for detection: every n-th frame,
// counting from 1. Frames that are not forwarded are still read so the byte
// stream stays aligned.
type Sampler struct {
	every int
	seq   int
}

func New(every int) (*Sampler, error) {
	if every < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSkip, every)
	}
	return &Sampler{every: every}, nil
}

// Next advances the sequence number and reports whether that frame is sampled.
func (s *Sampler) Next() (int, bool) {
	s.seq++
	return s.seq, s.seq%s.every == 0
}

// Seq returns the last sequence number handed out.
func (s *Sampler) Seq() int {
	return s.seq
}
