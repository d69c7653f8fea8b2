package display

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"
	"streamdetect/internal/routes"

	gorilla "github.com/gorilla/websocket"
)

func fakeEncode(frame model.Frame) ([]byte, error) {
	return []byte("jpeg-" + string(rune('0'+frame.Seq))), nil
}

func newTestWeb(t *testing.T, token string) (*Web, routes.Settings) {
	t.Helper()
	dir := t.TempDir()
	settings := routes.Settings{
		StaticDir:    dir,
		LogDir:       dir,
		OutputPath:   filepath.Join(dir, "detections.csv"),
		ControlToken: token,
	}
	w, err := NewWeb("127.0.0.1:0", settings, fakeEncode, logger.Discard())
	if err != nil {
		t.Fatalf("NewWeb failed: %v", err)
	}
	return w, settings
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWeb_ViewerReceivesFramesAndCanQuit(t *testing.T) {
	w, _ := newTestWeb(t, "")
	defer w.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws://"+w.Addr()+"/api/view", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return w.hub.GetClientCount() == 1 })

	frame := model.Frame{Seq: 7, Width: 1, Height: 1, Data: []byte{1, 2, 3}}
	if err := w.Present(frame); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg frameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid message %q: %v", data, err)
	}
	image, _ := base64.StdEncoding.DecodeString(msg.Image)
	if msg.Seq != 7 || string(image) != "jpeg-7" {
		t.Errorf("Unexpected frame message: %+v", msg)
	}

	if w.StopRequested() {
		t.Fatal("Stop requested too early")
	}
	if err := conn.WriteMessage(gorilla.TextMessage, []byte("quit")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	waitFor(t, w.StopRequested)
}

func TestWeb_PresentWithoutViewersSkipsEncoding(t *testing.T) {
	w, _ := newTestWeb(t, "")
	defer w.Close()

	encoded := 0
	w.encode = func(model.Frame) ([]byte, error) {
		encoded++
		return nil, nil
	}
	if err := w.Present(model.Frame{Seq: 1}); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	if encoded != 0 {
		t.Errorf("Expected no encoding without viewers, got %d", encoded)
	}
}

func TestWeb_StopEndpointRequiresToken(t *testing.T) {
	w, _ := newTestWeb(t, "secret")
	defer w.Close()

	url := "http://" + w.Addr() + "/api/stop"

	resp, err := http.Post(url, "text/plain", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
	if w.StopRequested() {
		t.Fatal("Unauthorized request must not stop the run")
	}

	req, _ := http.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("X-Control-Token", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", resp.StatusCode)
	}
	if !w.StopRequested() {
		t.Error("Expected stop requested")
	}
}

func TestWeb_EventsEndpoint(t *testing.T) {
	w, settings := newTestWeb(t, "")
	defer w.Close()

	url := "http://" + w.Addr() + "/api/events"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before any log exists, got %d", resp.StatusCode)
	}

	if err := os.WriteFile(settings.OutputPath, []byte("timestamp,class\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected text/csv, got %s", ct)
	}
}

func TestNull(t *testing.T) {
	n := &Null{}
	if err := n.Present(model.Frame{}); err != nil {
		t.Errorf("Present failed: %v", err)
	}
	if n.StopRequested() {
		t.Error("Stop should not be requested")
	}
	n.RequestStop()
	if !n.StopRequested() {
		t.Error("Expected stop requested")
	}
}
