package app

import (
	"context"
	"fmt"

	"streamdetect/internal/config"
	"streamdetect/internal/logger"
	"streamdetect/internal/model"
	"streamdetect/internal/pipeline"
	"streamdetect/internal/repository/sqlite"
	"streamdetect/internal/routes"
	"streamdetect/internal/services/ai"
	"streamdetect/internal/services/dedup"
	"streamdetect/internal/services/display"
	"streamdetect/internal/services/display/window"
	"streamdetect/internal/services/eventlog"
	"streamdetect/internal/services/source"
	"streamdetect/internal/services/storage"

	"github.com/google/uuid"
)

const windowTitle = "streamdetect"

type App struct {
	config     *config.Config
	logger     *logger.Logger
	detector   *ai.DetectorService
	controller *pipeline.Controller
	runID      string
}

// NewApp loads configuration, the detection model and the run controller.
// Stream, log sinks and display are opened later by Run.
func NewApp(envFile string) (*App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	detector, err := ai.NewDetectorService(cfg.ModelPath, cfg.ConfigPath, cfg.DetectorConfidence, appLogger)
	if err != nil {
		appLogger.Close()
		return nil, err
	}

	a := &App{
		config:   cfg,
		logger:   appLogger,
		detector: detector,
		runID:    uuid.NewString(),
	}

	controller, err := pipeline.New(a.options(), a.openers(), detector, appLogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.controller = controller
	return a, nil
}

func (a *App) options() pipeline.Options {
	return pipeline.Options{
		RunID:           a.runID,
		FrameSkip:       a.config.FrameSkip,
		RunBudget:       a.config.RunBudget,
		ProcessingDelay: a.config.ProcessingDelay,
		Dedup: dedup.Options{
			Window:        a.config.DuplicateResetAfter,
			MinConfidence: a.config.MinLogConfidence,
			BucketPx:      a.config.DedupBucketPx,
			Policy:        dedup.Policy(a.config.DedupPolicy),
		},
	}
}

func (a *App) openers() pipeline.Openers {
	cfg := a.config
	openers := pipeline.Openers{
		Source: func(ctx context.Context) (pipeline.FrameSource, error) {
			return source.Open(source.AcquisitionConfig{
				SourceURL:     cfg.SourceURL,
				StreamQuality: cfg.StreamQuality,
				FetchCommand:  cfg.FetchCommand,
				FFmpegPath:    cfg.FFmpegPath,
				Width:         cfg.FrameWidth,
				Height:        cfg.FrameHeight,
			}, source.Options{
				Width:     cfg.FrameWidth,
				Height:    cfg.FrameHeight,
				QueueSize: cfg.QueueSize,
				Policy:    source.QueuePolicy(cfg.QueuePolicy),
			}, a.logger)
		},
		Events:  a.openEvents,
		Display: a.openDisplay,
	}

	if cfg.SnapshotDir != "" {
		openers.Snapshots = func() (pipeline.Snapshotter, error) {
			return storage.NewBufferService(cfg.SnapshotDir, cfg.SnapshotLimit, ai.EncodeJPEG, a.logger)
		}
	}
	return openers
}

func (a *App) openEvents() (pipeline.EventLog, error) {
	csvSink, err := eventlog.OpenCSV(a.config.OutputPath)
	if err != nil {
		return nil, err
	}
	sinks := []eventlog.Sink{csvSink}

	if a.config.EventDB != "" {
		dbSink, err := sqlite.OpenEventSink(a.config.EventDB, a.runID)
		if err != nil {
			csvSink.Close()
			return nil, err
		}
		sinks = append(sinks, dbSink)
	}
	return eventlog.New(a.config.MaxLoggedLines, sinks...), nil
}

func (a *App) openDisplay() (pipeline.Display, error) {
	switch a.config.DisplayMode {
	case config.DisplayWindow:
		return window.New(windowTitle), nil
	case config.DisplayWeb:
		return display.NewWeb(fmt.Sprintf(":%d", a.config.Port), routes.Settings{
			StaticDir:    a.config.StaticDir,
			LogDir:       a.config.LogDirectory,
			OutputPath:   a.config.OutputPath,
			ControlToken: a.config.ControlToken,
		}, ai.EncodeJPEG, a.logger)
	default:
		return &display.Null{}, nil
	}
}

// Run performs one detection run. ctx cancellation is treated as a user stop.
func (a *App) Run(ctx context.Context) (model.Summary, error) {
	cfg := a.config

	fmt.Printf("🚀 Stream Detector\n")
	fmt.Printf("🆔 Run: %s\n", a.runID)
	fmt.Printf("📺 Source: %s (%s)\n", cfg.SourceURL, cfg.StreamQuality)
	fmt.Printf("🤖 AI Model: %s\n", cfg.ModelPath)
	fmt.Printf("📝 Log: %s (max %d lines)\n", cfg.OutputPath, cfg.MaxLoggedLines)
	if cfg.DisplayMode == config.DisplayWeb {
		fmt.Printf("📍 URL: http://localhost:%d\n", cfg.Port)
	}

	return a.controller.Run(ctx)
}

func (a *App) Close() error {
	if a.detector != nil {
		a.detector.Close()
	}
	return a.logger.Close()
}
