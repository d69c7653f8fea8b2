package display

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
	"streamdetect/internal/routes"
	"streamdetect/internal/services/websocket"
)

// EncodeFunc compresses a raw frame for transport, e.g. to JPEG.
type EncodeFunc func(model.Frame) ([]byte, error)

type frameMessage struct {
	Seq   int    `json:"seq"`
	Image string `json:"image"`
}

// Web presents annotated frames to browser viewers over a websocket and
// accepts stop requests from them.
type Web struct {
	hub      *websocket.HubService
	server   *http.Server
	listener net.Listener
	encode   EncodeFunc
	logger   *logger.Logger
	served   chan struct{}
}

func NewWeb(addr string, settings routes.Settings, encode EncodeFunc, logger *logger.Logger) (*Web, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hub := websocket.NewHubService(logger)
	w := &Web{
		hub:      hub,
		listener: listener,
		encode:   encode,
		logger:   logger,
		served:   make(chan struct{}),
		server: &http.Server{
			Handler:           routes.SetupRoutes(hub, settings, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	go hub.Run()
	go func() {
		defer close(w.served)
		if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Viewer server failed: %v", err)
		}
	}()

	logger.Info("📍 Viewer: http://%s/", listener.Addr())
	return w, nil
}

// Addr is the address the viewer server listens on.
func (w *Web) Addr() string {
	return w.listener.Addr().String()
}

// Present broadcasts the frame to connected viewers. Frames are not encoded
// while nobody is watching.
func (w *Web) Present(frame model.Frame) error {
	if w.hub.GetClientCount() == 0 {
		return nil
	}
	jpeg, err := w.encode(frame)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(frameMessage{Seq: frame.Seq, Image: base64.StdEncoding.EncodeToString(jpeg)})
	if err != nil {
		return err
	}
	w.hub.Broadcast(msg)
	return nil
}

func (w *Web) StopRequested() bool {
	return w.hub.StopRequested()
}

// RequestStop lets other control paths share the viewer's stop flag.
func (w *Web) RequestStop() {
	w.hub.RequestStop()
}

func (w *Web) Close() error {
	w.hub.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := w.server.Shutdown(ctx)
	<-w.served
	w.logger.Info("Viewer server stopped (%d frame(s) skipped for slow viewers)", w.hub.Skipped())
	return err
}
