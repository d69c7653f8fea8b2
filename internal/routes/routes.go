package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"streamdetect/internal/handlers"
	"streamdetect/internal/logger"
	"streamdetect/internal/middleware"
	"streamdetect/internal/services/websocket"
)

type Settings struct {
	StaticDir    string
	LogDir       string
	OutputPath   string
	ControlToken string
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the viewer, control and log endpoints and wraps the
// mux with the control-token middleware.
func SetupRoutes(hub *websocket.HubService, settings Settings, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(settings.StaticDir))))

	// API endpoints
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("/api/stop", handlers.StopHandler(hub))
	mux.HandleFunc("/api/events", handlers.EventsHandler(settings.OutputPath))

	// Log endpoints
	if settings.LogDir != "" {
		mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(settings.LogDir))
		mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(settings.LogDir))
		mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(settings.LogDir))
	}
	mux.HandleFunc("/logs/info/clear", handlers.ClearLogsHandler(logger, "info.log"))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearLogsHandler(logger, "warning.log"))
	mux.HandleFunc("/logs/error/clear", handlers.ClearLogsHandler(logger, "error.log"))

	// Automatic HTML handler mapping for example: /viewer -> /static/viewer.html
	mux.HandleFunc("/", dynamicHTMLHandler(settings.StaticDir))

	return middleware.AuthMiddleware(settings.ControlToken, mux)
}
