package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"

	"careline/internal/audit"
	"careline/internal/model"
	"careline/internal/present"
	"careline/internal/protocol"
)

var toolOrder = []string{
	protocol.ToolNameGetPatientList,
	protocol.ToolNameListTools,
}

type toolHandler func(context.Context, map[string]interface{}) (toolCallResult, *toolExecutionError)

type toolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	handler      toolHandler            `json:"-"`
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type toolCallResult struct {
	Content           []toolContentItem `json:"content"`
	StructuredContent interface{}       `json:"structuredContent,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type toolExecutionError struct {
	Code      string
	Message   string
	Retryable bool
}

func (s *Server) buildToolRegistry() map[string]toolDefinition {
	return map[string]toolDefinition{
		protocol.ToolNameGetPatientList: {
			Name:        protocol.ToolNameGetPatientList,
			Description: "Fetch patient records, optionally filtered by name and capped by limit.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"patient_name": map[string]interface{}{
						"type":        "string",
						"description": "Case-insensitive substring match on patient name.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of records to return.",
					},
				},
			},
			OutputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"count":    map[string]interface{}{"type": "integer"},
					"patients": map[string]interface{}{"type": "array"},
				},
			},
			handler: s.handleGetPatientList,
		},
		protocol.ToolNameListTools: {
			Name:        protocol.ToolNameListTools,
			Description: "Describe the tools this server offers.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			handler: s.handleListToolsTool,
		},
	}
}

func (s *Server) catalog() []present.ToolInfo {
	infos := make([]present.ToolInfo, 0, len(s.tools))
	for _, name := range toolOrder {
		if tool, ok := s.tools[name]; ok {
			infos = append(infos, present.ToolInfo{Name: tool.Name, Description: tool.Description})
		}
	}
	return infos
}

func (s *Server) handleToolsList(w http.ResponseWriter, id interface{}) {
	tools := make([]toolDefinition, 0, len(s.tools))
	for _, name := range toolOrder {
		if tool, ok := s.tools[name]; ok {
			tools = append(tools, tool)
		}
	}
	if len(tools) == 0 {
		for _, name := range sortedToolNames(s.tools) {
			tools = append(tools, s.tools[name])
		}
	}
	writeResult(w, http.StatusOK, id, map[string]interface{}{
		"tools": tools,
	})
}

func (s *Server) handleToolsCall(ctx context.Context, w http.ResponseWriter, rawParams json.RawMessage, id interface{}) {
	var params toolsCallParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid tools/call params")
		return
	}
	tool, ok := s.tools[params.Name]
	if !ok {
		writeError(w, http.StatusOK, id, codeInvalidParams, "unknown tool: "+params.Name)
		return
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	result, execErr := tool.handler(ctx, params.Arguments)
	if execErr != nil {
		// Tool-level failures ride inside a successful JSON-RPC response,
		// flagged with isError, so MCP clients can surface them verbatim.
		writeResult(w, http.StatusOK, id, toolCallResult{
			Content: []toolContentItem{
				{Type: "text", Text: execErr.Message},
			},
			StructuredContent: map[string]interface{}{
				"code":      execErr.Code,
				"message":   execErr.Message,
				"retryable": execErr.Retryable,
			},
			IsError: true,
		})
		return
	}
	writeResult(w, http.StatusOK, id, result)
}

func (s *Server) handleGetPatientList(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	name, err := stringArg(args, "patient_name")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: "INVALID_PARAMS", Message: err.Error()}
	}
	limit, err := intArg(args, "limit")
	if err != nil {
		return toolCallResult{}, &toolExecutionError{Code: "INVALID_PARAMS", Message: err.Error()}
	}

	set, lookupErr := s.dir.Lookup(ctx, name, limit)

	entry := audit.Entry{
		Tool:       protocol.ToolNameGetPatientList,
		NameFilter: name,
		ResultRows: len(set),
	}
	if limit != nil {
		entry.Limit = sql.NullInt64{Int64: int64(*limit), Valid: true}
	}
	if lookupErr != nil {
		entry.ErrorKind = errorKind(lookupErr)
	}
	if auditErr := s.audit.Record(ctx, entry); auditErr != nil {
		s.log.Warn().Err(auditErr).Msg("audit record failed")
	}

	if lookupErr != nil {
		s.log.Error().Err(lookupErr).Str("name", name).Msg("patient lookup failed")
		return toolCallResult{}, lookupToolError(lookupErr)
	}

	echo := present.RequestEcho{NameFilter: name, Limit: limit}
	return toolCallResult{
		Content: []toolContentItem{
			{Type: "text", Text: present.Render(set, echo)},
		},
		StructuredContent: present.Structured(set, echo),
	}, nil
}

func (s *Server) handleListToolsTool(ctx context.Context, _ map[string]interface{}) (toolCallResult, *toolExecutionError) {
	if err := s.audit.Record(ctx, audit.Entry{Tool: protocol.ToolNameListTools}); err != nil {
		s.log.Warn().Err(err).Msg("audit record failed")
	}
	catalog := s.catalog()
	return toolCallResult{
		Content: []toolContentItem{
			{Type: "text", Text: present.RenderToolCatalog(catalog)},
		},
		StructuredContent: map[string]interface{}{"tools": catalog},
	}, nil
}

func lookupToolError(err error) *toolExecutionError {
	var statusErr *model.UpstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		return &toolExecutionError{
			Code:      protocol.ErrorCodeUpstreamFailed,
			Message:   fmt.Sprintf("upstream returned status %d", statusErr.StatusCode),
			Retryable: statusErr.StatusCode >= 500,
		}
	case errors.Is(err, model.ErrMalformedResponse):
		return &toolExecutionError{
			Code:    protocol.ErrorCodeMalformedUpstream,
			Message: "upstream response could not be interpreted as patient records",
		}
	case errors.Is(err, model.ErrUpstreamUnreachable):
		return &toolExecutionError{
			Code:      protocol.ErrorCodeUpstreamFailed,
			Message:   "upstream service is unreachable",
			Retryable: true,
		}
	default:
		return &toolExecutionError{Code: "INTERNAL", Message: err.Error()}
	}
}

func errorKind(err error) string {
	var statusErr *model.UpstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		return "upstream_status"
	case errors.Is(err, model.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, model.ErrUpstreamUnreachable):
		return "upstream_unreachable"
	default:
		return "internal"
	}
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func intArg(args map[string]interface{}, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	n := int(f)
	return &n, nil
}

func sortedToolNames(tools map[string]toolDefinition) []string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
