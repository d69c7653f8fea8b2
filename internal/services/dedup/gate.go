package dedup

import (
	"fmt"
	"time"

	"streamdetect/internal/model"
)

// Policy selects how remembered keys expire.
type Policy string

const (
	// PolicyWindow clears the whole recent-key set once the window has elapsed.
	// A key first seen just before a reset can be logged again just after it.
	PolicyWindow Policy = "window"
	// PolicyPerKey expires each key individually, Window after it was last logged.
	PolicyPerKey Policy = "per-key"
)

type Options struct {
	Window        time.Duration
	MinConfidence float64
	BucketPx      int
	Policy        Policy
}

// Gate suppresses detections that were logged recently at roughly the same
// place with the same class. It is owned by a single loop and is not safe for
// concurrent use.
type Gate struct {
	opts        Options
	recent      map[model.DetectionKey]time.Time
	windowStart time.Time

	suppressed     int
	belowThreshold int
	resets         int
}

func New(opts Options, start time.Time) (*Gate, error) {
	if opts.Window <= 0 {
		return nil, fmt.Errorf("dedup window must be positive, got %v", opts.Window)
	}
	if opts.BucketPx < 1 {
		opts.BucketPx = 1
	}
	switch opts.Policy {
	case "":
		opts.Policy = PolicyWindow
	case PolicyWindow, PolicyPerKey:
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", opts.Policy)
	}

	return &Gate{
		opts:        opts,
		recent:      make(map[model.DetectionKey]time.Time),
		windowStart: start,
	}, nil
}

// Filter returns, in input order, the detections of one frame that should be
// logged. It must be called once per processed frame.
func (g *Gate) Filter(now time.Time, detections []model.Detection) []model.Detection {
	g.expire(now)

	var out []model.Detection
	for _, d := range detections {
		if d.Confidence < g.opts.MinConfidence {
			g.belowThreshold++
			continue
		}

		key := d.Key(g.opts.BucketPx)
		if _, seen := g.recent[key]; seen {
			g.suppressed++
			continue
		}
		g.recent[key] = now
		out = append(out, d)
	}
	return out
}

func (g *Gate) expire(now time.Time) {
	switch g.opts.Policy {
	case PolicyPerKey:
		for key, seen := range g.recent {
			if now.Sub(seen) > g.opts.Window {
				delete(g.recent, key)
			}
		}
	default:
		if now.Sub(g.windowStart) > g.opts.Window {
			clear(g.recent)
			g.windowStart = now
			g.resets++
		}
	}
}

// Len is the number of keys currently remembered.
func (g *Gate) Len() int { return len(g.recent) }

// Suppressed counts detections dropped as duplicates.
func (g *Gate) Suppressed() int { return g.suppressed }

// BelowThreshold counts detections under the logging confidence.
func (g *Gate) BelowThreshold() int { return g.belowThreshold }

// Resets counts whole-window resets.
func (g *Gate) Resets() int { return g.resets }
