package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
	"streamdetect/internal/services/dedup"
	"streamdetect/internal/services/eventlog"
	"streamdetect/internal/services/sampler"
	"streamdetect/internal/services/source"
)

// Stop reasons recorded in the run summary.
const (
	ReasonTimeBudget      = "time budget exceeded"
	ReasonStreamEnded     = "stream ended"
	ReasonUserRequested   = "user requested"
	ReasonDetectorFailure = "detector failure"
	ReasonReadError       = "read error"
	ReasonLogFailure      = "log write failed"
	ReasonStartupFailed   = "startup failed"
)

type FrameSource interface {
	ReadFrame(ctx context.Context) (model.Frame, error)
	Close() error
}

type Detector interface {
	Detect(frame model.Frame) ([]model.Detection, error)
	Render(frame model.Frame, detections []model.Detection) (model.Frame, error)
}

type EventLog interface {
	Log(rec model.LogRecord) (eventlog.Outcome, error)
	Close() error
}

// Display presents annotated frames and carries the interactive stop request.
type Display interface {
	Present(frame model.Frame) error
	StopRequested() bool
	Close() error
}

// Snapshotter keeps annotated frames that produced logged events.
type Snapshotter interface {
	Add(frame model.Frame, label string) error
	Close() error
}

// Openers acquire the resources a run owns. Display and Snapshots are optional.
type Openers struct {
	Source    func(ctx context.Context) (FrameSource, error)
	Events    func() (EventLog, error)
	Display   func() (Display, error)
	Snapshots func() (Snapshotter, error)
}

type Options struct {
	RunID           string
	FrameSkip       int
	RunBudget       time.Duration
	ProcessingDelay time.Duration
	Dedup           dedup.Options

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Controller drives read → sample → detect → dedup → log → render until the
// time budget runs out, the stream ends, or a stop is requested.
type Controller struct {
	opts     Options
	openers  Openers
	detector Detector
	logger   *logger.Logger
	state    State
}

func New(opts Options, openers Openers, detector Detector, logger *logger.Logger) (*Controller, error) {
	if openers.Source == nil || openers.Events == nil {
		return nil, errors.New("source and event log openers are required")
	}
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if opts.FrameSkip < 1 {
		return nil, fmt.Errorf("%w: got %d", sampler.ErrInvalidSkip, opts.FrameSkip)
	}
	if opts.RunBudget <= 0 {
		return nil, fmt.Errorf("run budget must be positive, got %v", opts.RunBudget)
	}
	if opts.Dedup.Window <= 0 {
		return nil, fmt.Errorf("dedup window must be positive, got %v", opts.Dedup.Window)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Controller{
		opts:     opts,
		openers:  openers,
		detector: detector,
		logger:   logger,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) setState(s State) {
	c.state = s
	c.logger.Info("🔁 Run %s: %s", c.opts.RunID, s)
}

type resources struct {
	source    FrameSource
	events    EventLog
	display   Display
	snapshots Snapshotter
}

// Run executes one run and always releases what it opened. The returned error
// is non-nil only when the run could not start; failures during the run are
// reported in Summary.Err.
func (c *Controller) Run(ctx context.Context) (model.Summary, error) {
	summary := model.Summary{RunID: c.opts.RunID}
	c.setState(Starting)
	start := c.opts.Now()

	res, err := c.open(ctx)
	if err != nil {
		summary.Reason = ReasonStartupFailed
		summary.Err = err
		c.setState(Stopped)
		return summary, err
	}

	func() {
		defer func() {
			c.setState(Draining)
			c.drain(res)
		}()
		c.setState(Running)
		summary.Reason, summary.Err = c.loop(ctx, res, start, &summary)
	}()

	summary.Elapsed = c.opts.Now().Sub(start)
	c.setState(Stopped)
	c.report(summary)
	return summary, nil
}

func (c *Controller) open(ctx context.Context) (*resources, error) {
	res := &resources{}

	src, err := c.openers.Source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame source: %w", err)
	}
	res.source = src

	events, err := c.openers.Events()
	if err != nil {
		c.drain(res)
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	res.events = events

	if c.openers.Display != nil {
		display, err := c.openers.Display()
		if err != nil {
			c.drain(res)
			return nil, fmt.Errorf("failed to open display: %w", err)
		}
		res.display = display
	}
	if c.openers.Snapshots != nil {
		snapshots, err := c.openers.Snapshots()
		if err != nil {
			c.drain(res)
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		res.snapshots = snapshots
	}
	return res, nil
}

func (c *Controller) loop(ctx context.Context, res *resources, start time.Time, summary *model.Summary) (string, error) {
	gate, err := dedup.New(c.opts.Dedup, start)
	if err != nil {
		return ReasonStartupFailed, err
	}
	smp, err := sampler.New(c.opts.FrameSkip)
	if err != nil {
		return ReasonStartupFailed, err
	}
	defer func() {
		summary.Suppressed = gate.Suppressed()
		if d, ok := res.source.(interface{ Dropped() int64 }); ok {
			summary.FramesDropped = d.Dropped()
		}
	}()

	for {
		if c.opts.Now().Sub(start) > c.opts.RunBudget {
			return ReasonTimeBudget, nil
		}

		frame, err := res.source.ReadFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, source.ErrEndOfStream):
				return ReasonStreamEnded, nil
			case ctx.Err() != nil:
				return ReasonUserRequested, nil
			default:
				return ReasonReadError, err
			}
		}

		seq, sampled := smp.Next()
		frame.Seq = seq
		summary.FramesRead++
		if !sampled {
			continue
		}
		summary.FramesSampled++

		detections, err := c.detector.Detect(frame)
		if err != nil {
			return ReasonDetectorFailure, fmt.Errorf("detect frame %d: %w", seq, err)
		}

		now := c.opts.Now()
		var loggedLabel string
		for _, d := range gate.Filter(now, detections) {
			outcome, err := res.events.Log(model.NewLogRecord(now, d))
			if err != nil {
				return ReasonLogFailure, err
			}
			if outcome == eventlog.Dropped {
				summary.RecordsDropped++
				if summary.RecordsDropped == 1 {
					c.logger.Warning("⚠️  Log cap reached after %d records - further detections are not logged", summary.RecordsLogged)
				}
				continue
			}
			summary.RecordsLogged++
			if loggedLabel == "" {
				loggedLabel = d.ClassName
			}
			c.logger.Info("📝 Frame %d: logged %s (%.2f) at [%d,%d,%d,%d]",
				seq, d.ClassName, d.Confidence, d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax)
		}

		annotated, err := c.detector.Render(frame, detections)
		if err != nil {
			return ReasonDetectorFailure, fmt.Errorf("render frame %d: %w", seq, err)
		}

		if loggedLabel != "" && res.snapshots != nil {
			if err := res.snapshots.Add(annotated, loggedLabel); err != nil {
				c.logger.Warning("Failed to keep snapshot of frame %d: %v", seq, err)
			}
		}

		if res.display != nil {
			if err := res.display.Present(annotated); err != nil {
				c.logger.Warning("Failed to present frame %d: %v", seq, err)
			}
			if res.display.StopRequested() {
				return ReasonUserRequested, nil
			}
		}
		if ctx.Err() != nil {
			return ReasonUserRequested, nil
		}

		if c.opts.ProcessingDelay > 0 {
			c.opts.Sleep(c.opts.ProcessingDelay)
		}
	}
}

// drain releases every opened resource exactly once.
func (c *Controller) drain(res *resources) {
	if res.source != nil {
		if err := res.source.Close(); err != nil {
			c.logger.Warning("Failed to close frame source: %v", err)
		}
		res.source = nil
	}
	if res.display != nil {
		if err := res.display.Close(); err != nil {
			c.logger.Warning("Failed to close display: %v", err)
		}
		res.display = nil
	}
	if res.snapshots != nil {
		if err := res.snapshots.Close(); err != nil {
			c.logger.Warning("Failed to flush snapshots: %v", err)
		}
		res.snapshots = nil
	}
	if res.events != nil {
		if err := res.events.Close(); err != nil {
			c.logger.Error("Failed to close event log: %v", err)
		}
		res.events = nil
	}
}

func (c *Controller) report(s model.Summary) {
	if s.Err != nil {
		c.logger.Error("Run %s stopped: %s: %v", s.RunID, s.Reason, s.Err)
	}
	c.logger.Info("🏁 Run %s stopped (%s) after %v: %d frames read, %d sampled, %d records logged, %d dropped at cap, %d duplicates suppressed, %d frames dropped from queue",
		s.RunID, s.Reason, s.Elapsed.Round(time.Millisecond), s.FramesRead, s.FramesSampled,
		s.RecordsLogged, s.RecordsDropped, s.Suppressed, s.FramesDropped)
}
