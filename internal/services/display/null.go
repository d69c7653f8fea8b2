package display

import (
	"sync/atomic"

	"streamdetect/internal/model"
)

// Null discards frames. Used when no display is configured; stop requests
// can still arrive through RequestStop.
type Null struct {
	stop atomic.Bool
}

func (n *Null) Present(model.Frame) error { return nil }

func (n *Null) StopRequested() bool { return n.stop.Load() }

func (n *Null) RequestStop() { n.stop.Store(true) }

func (n *Null) Close() error { return nil }
