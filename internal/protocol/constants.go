// Package protocol holds wire-level constants shared by the careline MCP
// server and its clients.
package protocol

const (
	ToolNameGetPatientList = "careline.get_patient_list"
	ToolNameListTools      = "careline.list_tools"
)

const (
	ErrorCodeUnauthorized      = "UNAUTHORIZED"
	ErrorCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrorCodeMalformedUpstream = "MALFORMED_UPSTREAM"
)

const (
	MCPProtocolVersion = "2024-11-05"
	MCPSessionHeader   = "Mcp-Session-Id"
)
