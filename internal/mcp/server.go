// Package mcp exposes the patient directory as MCP tools over Streamable
// HTTP. One POST endpoint speaks JSON-RPC 2.0: initialize opens a session
// (returned in the Mcp-Session-Id header), tools/list enumerates the
// catalog, tools/call runs a tool.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"careline/internal/audit"
	"careline/internal/config"
	"careline/internal/model"
	"careline/internal/protocol"
)

// Directory is the lookup surface the tools call into. A nil limit means
// "no caller-imposed cap".
type Directory interface {
	Lookup(ctx context.Context, name string, limit *int) (model.PatientSet, error)
}

type Server struct {
	cfg   config.ServerConfig
	dir   Directory
	audit audit.Log
	log   zerolog.Logger

	tools   map[string]toolDefinition
	limiter *ipRateLimiter

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewServer(cfg config.ServerConfig, dir Directory, auditLog audit.Log, logger zerolog.Logger) *Server {
	if auditLog == nil {
		auditLog = audit.NopLog{}
	}
	s := &Server{
		cfg:      cfg,
		dir:      dir,
		audit:    auditLog,
		log:      logger.With().Str("component", "mcp").Logger(),
		limiter:  newIPRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
		sessions: make(map[string]time.Time),
	}
	s.tools = s.buildToolRegistry()
	return s
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeServerError    = -32000
)

// Handler returns the HTTP handler for the MCP path, for mounting on a
// shared mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handlePost)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeResponse(w, http.StatusUnauthorized, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeServerError, Message: "unauthorized", Data: map[string]string{"code": protocol.ErrorCodeUnauthorized}},
		})
		return
	}
	if !s.limiter.allow(realIP(r)) {
		writeResponse(w, http.StatusTooManyRequests, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeServerError, Message: "rate limited", Data: map[string]string{"code": protocol.ErrorCodeRateLimited}},
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "reading request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "jsonrpc must be 2.0")
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, req.ID)
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)
	case "tools/list":
		if !s.sessionValid(w, r, req.ID) {
			return
		}
		s.handleToolsList(w, req.ID)
	case "tools/call":
		if !s.sessionValid(w, r, req.ID) {
			return
		}
		s.handleToolsCall(r.Context(), w, req.Params, req.ID)
	default:
		writeError(w, http.StatusOK, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(w http.ResponseWriter, id interface{}) {
	sessionID := uuid.NewString()
	s.mu.Lock()
	s.sessions[sessionID] = time.Now()
	s.mu.Unlock()

	s.log.Debug().Str("session", sessionID).Msg("session initialized")

	w.Header().Set(protocol.MCPSessionHeader, sessionID)
	writeResult(w, http.StatusOK, id, map[string]interface{}{
		"protocolVersion": protocol.MCPProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "careline",
			"version": "1.0.0",
		},
	})
}

// sessionValid enforces the session header only when one is present: a
// stateless client may skip initialize, but a stale session id is rejected
// so clients re-initialize instead of silently losing state.
func (s *Server) sessionValid(w http.ResponseWriter, r *http.Request, id interface{}) bool {
	sessionID := strings.TrimSpace(r.Header.Get(protocol.MCPSessionHeader))
	if sessionID == "" {
		return true
	}
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	if ok {
		s.sessions[sessionID] = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		writeResponse(w, http.StatusNotFound, rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: codeServerError, Message: "session not found", Data: map[string]string{"code": protocol.ErrorCodeSessionNotFound}},
		})
	}
	return ok
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	return header == "Bearer "+s.cfg.AuthToken
}

func writeResult(w http.ResponseWriter, status int, id interface{}, result interface{}) {
	writeResponse(w, status, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	writeResponse(w, status, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
