package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"careline/internal/audit"
	"careline/internal/config"
	"careline/internal/model"
	"careline/internal/protocol"
)

type fakeDirectory struct {
	set     model.PatientSet
	err     error
	gotName string
	gotLim  *int
}

func (d *fakeDirectory) Lookup(_ context.Context, name string, limit *int) (model.PatientSet, error) {
	d.gotName = name
	d.gotLim = limit
	return d.set, d.err
}

func newTestServer(t *testing.T, dir Directory) *Server {
	t.Helper()
	cfg := config.Default().Server
	return NewServer(cfg, dir, audit.NopLog{}, zerolog.Nop())
}

func postRPC(t *testing.T, s *Server, headers map[string]string, method string, params interface{}) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httpReq)

	var resp rpcResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestInitializeReturnsSession(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	rec, resp := postRPC(t, s, nil, "initialize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(protocol.MCPSessionHeader) == "" {
		t.Error("missing session header")
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %v", resp.Result)
	}
	if result["protocolVersion"] != protocol.MCPProtocolVersion {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	rec, resp := postRPC(t, s, map[string]string{protocol.MCPSessionHeader: "stale"}, "tools/list", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Error == nil {
		t.Fatal("expected rpc error")
	}
	data, _ := resp.Error.Data.(map[string]interface{})
	if data["code"] != protocol.ErrorCodeSessionNotFound {
		t.Errorf("error data = %v", resp.Error.Data)
	}
}

func TestToolsListOrderAndSchemas(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	_, resp := postRPC(t, s, nil, "tools/list", nil)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %v", resp.Result)
	}
	tools, ok := result["tools"].([]interface{})
	if !ok || len(tools) != 2 {
		t.Fatalf("tools = %v", result["tools"])
	}
	first, _ := tools[0].(map[string]interface{})
	if first["name"] != protocol.ToolNameGetPatientList {
		t.Errorf("first tool = %v", first["name"])
	}
	if _, ok := first["inputSchema"].(map[string]interface{}); !ok {
		t.Error("missing inputSchema")
	}
}

func TestToolsCallGetPatientList(t *testing.T) {
	dir := &fakeDirectory{set: model.PatientSet{
		{ID: "p1", Name: "John Smith", Age: 45, Diagnosis: "Hypertension",
			Medications: []string{"Lisinopril"}, Allergies: []string{},
			LastUpdated: "2024-01-15", Department: "Cardiology", Status: "Stable", Admitted: "2024-01-10"},
	}}
	s := newTestServer(t, dir)
	_, resp := postRPC(t, s, nil, "tools/call", toolsCallParams{
		Name:      protocol.ToolNameGetPatientList,
		Arguments: map[string]interface{}{"patient_name": "smith", "limit": float64(5)},
	})
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	if dir.gotName != "smith" {
		t.Errorf("name = %q", dir.gotName)
	}
	if dir.gotLim == nil || *dir.gotLim != 5 {
		t.Errorf("limit = %v", dir.gotLim)
	}
	result, _ := resp.Result.(map[string]interface{})
	content, _ := result["content"].([]interface{})
	if len(content) != 1 {
		t.Fatalf("content = %v", result["content"])
	}
	text, _ := content[0].(map[string]interface{})["text"].(string)
	if text == "" || !bytes.Contains([]byte(text), []byte("John Smith")) {
		t.Errorf("text = %q", text)
	}
	structured, _ := result["structuredContent"].(map[string]interface{})
	if structured["count"] != float64(1) {
		t.Errorf("count = %v", structured["count"])
	}
}

func TestToolsCallUpstreamFailureIsError(t *testing.T) {
	dir := &fakeDirectory{err: &model.UpstreamStatusError{StatusCode: 503, Body: "oops"}}
	s := newTestServer(t, dir)
	_, resp := postRPC(t, s, nil, "tools/call", toolsCallParams{
		Name: protocol.ToolNameGetPatientList,
	})
	if resp.Error != nil {
		t.Fatalf("transport-level error for tool failure: %+v", resp.Error)
	}
	result, _ := resp.Result.(map[string]interface{})
	if result["isError"] != true {
		t.Errorf("isError = %v", result["isError"])
	}
	structured, _ := result["structuredContent"].(map[string]interface{})
	if structured["code"] != protocol.ErrorCodeUpstreamFailed {
		t.Errorf("code = %v", structured["code"])
	}
	if structured["retryable"] != true {
		t.Errorf("retryable = %v", structured["retryable"])
	}
}

func TestToolsCallUnknownTool(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	_, resp := postRPC(t, s, nil, "tools/call", toolsCallParams{Name: "careline.nonsense"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestToolsCallBadLimitType(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	_, resp := postRPC(t, s, nil, "tools/call", toolsCallParams{
		Name:      protocol.ToolNameGetPatientList,
		Arguments: map[string]interface{}{"limit": "five"},
	})
	result, _ := resp.Result.(map[string]interface{})
	if result["isError"] != true {
		t.Errorf("isError = %v, want tool-level error for bad limit", result["isError"])
	}
}

func TestAuthRequiredWhenTokenSet(t *testing.T) {
	cfg := config.Default().Server
	cfg.AuthToken = "s3cret"
	s := NewServer(cfg, &fakeDirectory{}, audit.NopLog{}, zerolog.Nop())

	rec, _ := postRPC(t, s, nil, "tools/list", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec, _ = postRPC(t, s, map[string]string{"Authorization": "Bearer s3cret"}, "tools/list", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d with valid token", rec.Code)
	}
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	_, resp := postRPC(t, s, nil, "resources/list", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v", resp.Error)
	}
}
