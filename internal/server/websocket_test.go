package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/backend/backendtest"
	"genstudio-dashboard/internal/model"
)

func TestWebSocketPingPong(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, deps := newTestRouter(t, fake)
	s, err := deps.Sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tok, err := auth.CreateToken(s.ID, deps.TokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp["type"] != "pong" {
		t.Fatalf("expected pong, got %v", resp)
	}
}

func TestWebSocketReceivesTaskSnapshots(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, deps := newTestRouter(t, fake)
	s, err := deps.Sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tok, err := auth.CreateToken(s.ID, deps.TokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// prove the connection is registered before publishing
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var pong map[string]any
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	tasks := []model.Task{{ID: 7, Status: model.TaskRunning, Prompt: "a cat"}}
	deps.Hub.PublishTasks(s.ID, 42, tasks)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var event struct {
		Type      string       `json:"type"`
		ProjectID int64        `json:"projectId"`
		Tasks     []model.Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Type != "tasks" || event.ProjectID != 42 {
		t.Fatalf("unexpected event: %s", string(data))
	}
	if len(event.Tasks) != 1 || event.Tasks[0].ID != 7 {
		t.Fatalf("unexpected tasks: %s", string(data))
	}
}

func TestWebSocketInterleavedPongsAndSnapshots(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, deps := newTestRouter(t, fake)
	s, err := deps.Sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tok, err := auth.CreateToken(s.ID, deps.TokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// register before racing the two write paths
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	const rounds = 50
	tasks := []model.Task{{ID: 1, Status: model.TaskRunning}}

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < rounds; i++ {
			deps.Hub.PublishTasks(s.ID, 1, tasks)
		}
	}()
	go func() {
		for i := 0; i < rounds; i++ {
			_ = conn.WriteJSON(map[string]any{"type": "ping"})
		}
	}()

	// every frame must still parse as one of the two event shapes
	pongs, snapshots := 0, 0
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for pongs < rounds || snapshots < rounds {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage after %d pongs, %d snapshots: %v", pongs, snapshots, err)
		}
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("corrupt frame %q: %v", string(data), err)
		}
		switch frame.Type {
		case "pong":
			pongs++
		case "tasks":
			snapshots++
		default:
			t.Fatalf("unexpected frame: %s", string(data))
		}
	}
	<-published
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, _ := newTestRouter(t, fake)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake rejection, got %v", resp)
	}
}
