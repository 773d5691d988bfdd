// Package hub fans task-snapshot events out to the WebSocket connections of
// a dashboard session.
package hub

import (
	"encoding/json"
	"sync"

	"genstudio-dashboard/internal/model"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	SessionID string
	Writer    Writer
}

// TaskEvent is the payload pushed to dashboard clients whenever a poller
// publishes a fresh snapshot.
type TaskEvent struct {
	Type      string       `json:"type"`
	ProjectID int64        `json:"projectId"`
	Tasks     []model.Task `json:"tasks"`
}

const eventTypeTasks = "tasks"

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.SessionID] == nil {
		h.connections[conn.SessionID] = make(map[*Connection]struct{})
	}
	h.connections[conn.SessionID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.SessionID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.SessionID)
	}
}

// PublishTasks pushes a full task snapshot for a project to every connection
// of the session. Connections that fail to write are closed and dropped.
func (h *Hub) PublishTasks(sessionID string, projectID int64, tasks []model.Task) {
	event := TaskEvent{Type: eventTypeTasks, ProjectID: projectID, Tasks: tasks}
	message, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast(sessionID, message)
}

func (h *Hub) broadcast(sessionID string, message []byte) {
	h.mu.RLock()
	set := h.connections[sessionID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
