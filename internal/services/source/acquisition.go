package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"streamdetect/internal/logger"
)

type AcquisitionConfig struct {
	SourceURL     string
	StreamQuality string
	FetchCommand  string // e.g. streamlink; empty means ffmpeg opens SourceURL directly
	FFmpegPath    string
	Width         int
	Height        int
}

// Acquisition is the external process chain that turns a network stream into
// raw BGR frames: [streamlink --stdout url quality |] ffmpeg ... rawvideo.
// Read returns ffmpeg's stdout; Close kills every process and waits for them.
type Acquisition struct {
	fetch     *exec.Cmd
	transcode *exec.Cmd
	stdout    io.ReadCloser
	logger    *logger.Logger

	closeOnce sync.Once
}

func StartAcquisition(cfg AcquisitionConfig, logger *logger.Logger) (*Acquisition, error) {
	input := cfg.SourceURL
	if cfg.FetchCommand != "" {
		input = "pipe:0"
	}

	a := &Acquisition{
		transcode: exec.Command(cfg.FFmpegPath, transcodeArgs(input, cfg.Width, cfg.Height)...),
		logger:    logger,
	}

	if cfg.FetchCommand != "" {
		quality := cfg.StreamQuality
		if quality == "" {
			quality = "best"
		}
		a.fetch = exec.Command(cfg.FetchCommand, "--stdout", cfg.SourceURL, quality)
		fetchOut, err := a.fetch.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create fetch pipe: %w", err)
		}
		a.transcode.Stdin = fetchOut
		a.fetch.Stderr = &stderrLog{name: cfg.FetchCommand, logger: logger}
	}

	stdout, err := a.transcode.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create transcode pipe: %w", err)
	}
	a.stdout = stdout
	a.transcode.Stderr = &stderrLog{name: "ffmpeg", logger: logger}

	if a.fetch != nil {
		if err := a.fetch.Start(); err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", cfg.FetchCommand, err)
		}
		a.logger.Info("📡 Started %s (pid %d) for %s", cfg.FetchCommand, a.fetch.Process.Pid, cfg.SourceURL)
	}
	if err := a.transcode.Start(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	a.logger.Info("🎞️  Started ffmpeg (pid %d) decoding to %dx%d bgr24", a.transcode.Process.Pid, cfg.Width, cfg.Height)

	return a, nil
}

func transcodeArgs(input string, width, height int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", strconv.Itoa(width) + "x" + strconv.Itoa(height),
		"pipe:1",
	}
}

// stderrLog forwards a child's stderr to the warning log line by line.
type stderrLog struct {
	name    string
	logger  *logger.Logger
	pending []byte
}

func (w *stderrLog) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.pending[:i]); len(line) > 0 {
			w.logger.Warning("%s: %s", w.name, line)
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (a *Acquisition) Read(p []byte) (int, error) {
	return a.stdout.Read(p)
}

// Close terminates the process chain and waits for it to exit.
func (a *Acquisition) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.kill()
		err = a.wait()
		a.logger.Info("🛑 Acquisition processes stopped")
	})
	return err
}

func (a *Acquisition) kill() {
	for _, cmd := range []*exec.Cmd{a.transcode, a.fetch} {
		if cmd != nil && cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
}

func (a *Acquisition) wait() error {
	var errs []error
	for _, cmd := range []*exec.Cmd{a.transcode, a.fetch} {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		// Killed processes report a signal exit; that is the expected outcome.
		var exitErr *exec.ExitError
		if err := cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Path, err))
		}
	}
	return errors.Join(errs...)
}

// Open starts the acquisition chain and attaches a FrameSource to it.
func Open(cfg AcquisitionConfig, opts Options, logger *logger.Logger) (*FrameSource, error) {
	acq, err := StartAcquisition(cfg, logger)
	if err != nil {
		return nil, err
	}
	src, err := New(acq, opts, logger)
	if err != nil {
		acq.Close()
		return nil, err
	}
	return src, nil
}
