package chat

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 64 << 10
)

// wsMessage is both directions of the websocket protocol. Clients send
// {"type":"chat_message","message":...}; the server answers with the same
// envelope shape the HTTP API uses.
type wsMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type wsHub struct {
	svc      *Service
	upgrader websocket.Upgrader
}

func newWSHub(svc *Service) *wsHub {
	return &wsHub{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// handleUpgrade runs one websocket conversation. Each connection gets its
// own session so parallel clients never share history.
func (h *wsHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	sessionID := uuid.NewString()

	greetMsg := wsMessage{
		Type:      "connected",
		Status:    "success",
		SessionID: sessionID,
	}
	if err := h.write(conn, greetMsg); err != nil {
		return
	}

	for {
		var in wsMessage
		if err := conn.ReadJSON(&in); err != nil {
			h.svc.ClearSession(sessionID)
			return
		}
		if in.Type != "chat_message" {
			_ = h.write(conn, wsMessage{Type: "chat_response", Status: "error", Error: "unsupported message type: " + in.Type})
			continue
		}

		reply, err := h.svc.Handle(r.Context(), sessionID, in.Message)
		out := wsMessage{Type: "chat_response", SessionID: sessionID}
		if err != nil {
			out.Status = "error"
			out.Error = err.Error()
		} else {
			out.Status = "success"
			out.Response = reply
		}
		if err := h.write(conn, out); err != nil {
			h.svc.ClearSession(sessionID)
			return
		}
	}
}

func (h *wsHub) write(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
