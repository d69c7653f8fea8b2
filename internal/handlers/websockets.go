package handlers

import (
	"net/http"
	"strings"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/services/websocket"

	gorilla "github.com/gorilla/websocket"
)

var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler streams annotated frames to a viewer. A viewer may send
// "quit" to stop the run.
func ViewWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warning("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			messageType, msg, err := connection.ReadMessage()
			if err != nil {
				logger.Info("Viewer disconnected: %v", err)
				break
			}
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			if messageType == gorilla.TextMessage && strings.TrimSpace(string(msg)) == websocket.QuitMessage {
				hub.RequestStop()
			}
		}
	}
}

// StopHandler requests a graceful stop of the running pipeline.
func StopHandler(hub *websocket.HubService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hub.RequestStop()
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("stopping"))
	}
}
