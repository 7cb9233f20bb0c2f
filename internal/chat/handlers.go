package chat

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Status    string `json:"status"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

// API is the HTTP surface in front of the Service.
type API struct {
	svc *Service
	ws  *wsHub
}

func NewAPI(svc *Service) *API {
	return &API{svc: svc, ws: newWSHub(svc)}
}

// Register mounts the chat endpoints on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", a.handleChat)
	mux.HandleFunc("/api/clear-chat", a.handleClearChat)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/ws", a.ws.handleUpgrade)
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Status: "error", Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Status: "error", Error: "message must not be empty"})
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := a.svc.Handle(r.Context(), sessionID, req.Message)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Status: "success", Response: reply, SessionID: sessionID})
}

func (a *API) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Status: "error", Error: "session_id is required"})
		return
	}
	a.svc.ClearSession(req.SessionID)
	writeJSON(w, http.StatusOK, chatResponse{Status: "success", Response: "Conversation cleared."})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "careline",
		"llm":     a.svc.llm != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, chatResponse{Status: "error", Error: "method not allowed"})
}
