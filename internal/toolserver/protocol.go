package toolserver

import (
	"encoding/json"
	"fmt"
)

// Line-delimited JSON protocol spoken with stdio tool servers. Every line is
// one JSON object. Outbound requests carry an id, a method and params; inbound
// lines are either a correlated response ({id, result} or {id, error}) or an
// uncorrelated catalog push ({tools: [...]}).

// Protocol methods.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"
)

// Tool describes one callable operation published by a tool server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Request is an outbound protocol request.
type Request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// NewRequest creates a request for the given correlation id and method.
func NewRequest(id, method string, params map[string]any) *Request {
	return &Request{ID: id, Method: method, Params: params}
}

// EncodeRequest marshals a request and appends the line delimiter.
func EncodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return append(data, '\n'), nil
}

// Message is one decoded inbound line.
type Message struct {
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Tools  []Tool          `json:"tools,omitempty"`
}

// IsResponse reports whether the message answers a pending request.
func (m *Message) IsResponse() bool {
	return m.ID != "" && (len(m.Result) > 0 || m.Error != "")
}

// IsCatalog reports whether the message is a tool-catalog push.
func (m *Message) IsCatalog() bool {
	return m.Tools != nil
}

// DecodeMessage parses one inbound line.
func DecodeMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

// ResultText renders a raw result payload as text: a JSON string yields its
// value, anything else yields its compact JSON encoding.
func ResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// CatalogResult is the result payload of a tools/list response.
type CatalogResult struct {
	Tools []Tool `json:"tools"`
}

// DecodeCatalogResult parses a tools/list result payload. Returns nil when the
// payload does not carry a catalog.
func DecodeCatalogResult(raw json.RawMessage) []Tool {
	if len(raw) == 0 {
		return nil
	}
	var catalog CatalogResult
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil
	}
	return catalog.Tools
}
