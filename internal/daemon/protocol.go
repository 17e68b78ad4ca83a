package daemon

import "fmt"

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodQuery  = "query"
	MethodOpen   = "open"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeSessionLimit = -32001
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// QueryParams are the parameters for the query method. Each call
// starts a new round for the session; the daemon cancels any round the
// session still has in flight.
type QueryParams struct {
	// SessionID names the launcher window issuing the query (required).
	SessionID string `json:"session_id"`

	// Query is the search text. Empty commits an empty result list.
	Query string `json:"query"`
}

// Validate checks that required fields are present.
func (p *QueryParams) Validate() error {
	if p.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// OpenParams are the parameters for the open method.
type OpenParams struct {
	// SessionID names the launcher window (required).
	SessionID string `json:"session_id"`

	// EntryID selects the result to activate. Empty activates the
	// session's current selection.
	EntryID string `json:"entry_id,omitempty"`

	// ActionID selects a secondary desktop action. Empty means the
	// default action.
	ActionID string `json:"action_id,omitempty"`
}

// Validate checks that required fields are present.
func (p *OpenParams) Validate() error {
	if p.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// OpenResult is the response to an open request.
type OpenResult struct {
	Launched bool   `json:"launched"`
	Error    string `json:"error,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	Uptime     string `json:"uptime"`
	Entries    int    `json:"entries"`
	Generation uint64 `json:"generation"`
	Sessions   int    `json:"sessions"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
