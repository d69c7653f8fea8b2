package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DisplayWindow = "window"
	DisplayWeb    = "web"
	DisplayNone   = "none"

	QueueBlock = "block"
	QueueDrop  = "drop"

	DedupWindow = "window"
	DedupPerKey = "per-key"
)

type Config struct {
	SourceURL     string
	StreamQuality string
	FetchCommand  string // streamlink; empty lets ffmpeg open SourceURL itself
	FFmpegPath    string
	FrameWidth    int
	FrameHeight   int
	FrameSkip     int // Co którą klatkę przetwarzać (1=każdą, 10=co dziesiątą)
	QueueSize     int
	QueuePolicy   string

	ModelPath           string
	ConfigPath          string
	DetectorConfidence  float64
	MinLogConfidence    float64
	DuplicateResetAfter time.Duration
	DedupBucketPx       int
	DedupPolicy         string

	MaxLoggedLines  int
	RunBudget       time.Duration
	ProcessingDelay time.Duration
	OutputPath      string
	EventDB         string

	DisplayMode   string
	Port          int
	ControlToken  string
	StaticDir     string
	SnapshotDir   string
	SnapshotLimit int
	LogDirectory  string
}

// Load reads configuration from the environment. Values from envFile (or .env
// when envFile is empty) are applied first but never override real variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{
		SourceURL:     getEnv("SOURCE_URL", "https://www.youtube.com/watch?v=rnXIjl_Rzy4"),
		StreamQuality: getEnv("STREAM_QUALITY", "best"),
		FetchCommand:  getEnvAllowEmpty("FETCH_COMMAND", "streamlink"),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FrameWidth:    getEnvAsInt("FRAME_WIDTH", 1920),
		FrameHeight:   getEnvAsInt("FRAME_HEIGHT", 1080),
		FrameSkip:     getEnvAsInt("FRAME_SKIP", 10),
		QueueSize:     getEnvAsInt("FRAME_QUEUE_SIZE", 4),
		QueuePolicy:   getEnv("FRAME_QUEUE_POLICY", QueueBlock),

		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:          getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DetectorConfidence:  getEnvAsFloat("DETECTOR_CONFIDENCE", 0.5),
		MinLogConfidence:    getEnvAsFloat("MIN_LOG_CONFIDENCE", 0.85),
		DuplicateResetAfter: getEnvAsSeconds("DUPLICATE_RESET_SECONDS", 5),
		DedupBucketPx:       getEnvAsInt("DEDUP_BUCKET_PX", 10),
		DedupPolicy:         getEnv("DEDUP_POLICY", DedupWindow),

		MaxLoggedLines:  getEnvAsInt("MAX_LOGGED_LINES", 500),
		RunBudget:       getEnvAsSeconds("RUN_SECONDS", 3600),
		ProcessingDelay: time.Duration(getEnvAsInt("PROCESSING_DELAY_MS", 0)) * time.Millisecond,
		OutputPath:      getEnv("OUTPUT_PATH", "detections.csv"),
		EventDB:         getEnv("EVENT_DB", ""),

		DisplayMode:   getEnv("DISPLAY_MODE", DisplayWindow),
		Port:          getEnvAsInt("PORT", 8080),
		ControlToken:  getEnv("CONTROL_TOKEN", ""),
		StaticDir:     getEnv("STATIC_DIR", "static"),
		SnapshotDir:   getEnv("SNAPSHOT_DIR", ""),
		SnapshotLimit: getEnvAsInt("SNAPSHOT_LIMIT", 20),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceURL == "" {
		errs = append(errs, errors.New("SOURCE_URL must be set"))
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		errs = append(errs, fmt.Errorf("frame size %dx%d must be positive", c.FrameWidth, c.FrameHeight))
	}
	if c.FrameSkip < 1 {
		errs = append(errs, fmt.Errorf("FRAME_SKIP must be >= 1, got %d", c.FrameSkip))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("FRAME_QUEUE_SIZE must be >= 1, got %d", c.QueueSize))
	}
	if c.QueuePolicy != QueueBlock && c.QueuePolicy != QueueDrop {
		errs = append(errs, fmt.Errorf("unknown FRAME_QUEUE_POLICY %q", c.QueuePolicy))
	}
	if c.DetectorConfidence < 0 || c.DetectorConfidence > 1 {
		errs = append(errs, fmt.Errorf("DETECTOR_CONFIDENCE %.2f outside [0,1]", c.DetectorConfidence))
	}
	if c.MinLogConfidence < 0 || c.MinLogConfidence > 1 {
		errs = append(errs, fmt.Errorf("MIN_LOG_CONFIDENCE %.2f outside [0,1]", c.MinLogConfidence))
	}
	if c.DuplicateResetAfter <= 0 {
		errs = append(errs, errors.New("DUPLICATE_RESET_SECONDS must be positive"))
	}
	if c.DedupBucketPx < 1 {
		errs = append(errs, fmt.Errorf("DEDUP_BUCKET_PX must be >= 1, got %d", c.DedupBucketPx))
	}
	if c.DedupPolicy != DedupWindow && c.DedupPolicy != DedupPerKey {
		errs = append(errs, fmt.Errorf("unknown DEDUP_POLICY %q", c.DedupPolicy))
	}
	if c.MaxLoggedLines < 0 {
		errs = append(errs, fmt.Errorf("MAX_LOGGED_LINES must not be negative, got %d", c.MaxLoggedLines))
	}
	if c.RunBudget <= 0 {
		errs = append(errs, errors.New("RUN_SECONDS must be positive"))
	}
	if c.ProcessingDelay < 0 {
		errs = append(errs, errors.New("PROCESSING_DELAY_MS must not be negative"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("OUTPUT_PATH must be set"))
	}
	switch c.DisplayMode {
	case DisplayWindow, DisplayWeb, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("unknown DISPLAY_MODE %q", c.DisplayMode))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue float64) time.Duration {
	return time.Duration(getEnvAsFloat(key, defaultValue) * float64(time.Second))
}
