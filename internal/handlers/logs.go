package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"streamdetect/internal/logger"
)

func ShowInfoLogsHandler(logDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTextFile(w, r, filepath.Join(logDir, logger.InfoFile))
	}
}

func ShowWarningLogsHandler(logDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTextFile(w, r, filepath.Join(logDir, logger.WarningFile))
	}
}

func ShowErrorLogsHandler(logDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveTextFile(w, r, filepath.Join(logDir, logger.ErrorFile))
	}
}

// EventsHandler serves the detection log written by the running pipeline.
func EventsHandler(outputPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			http.Error(w, "No detections logged yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, outputPath)
	}
}

// serveTextFile serves a single log file as plain text.
func serveTextFile(w http.ResponseWriter, r *http.Request, filePath string) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filepath.Base(filePath)))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

func ClearLogsHandler(l *logger.Logger, fileName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := l.CleanLogs(fileName); err != nil {
			http.Error(w, "Failed to clear log", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
