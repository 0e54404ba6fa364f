package ipc

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetClients  CommandType = "GET_CLIENTS"
	CommandGetMonitors CommandType = "GET_MONITORS"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Version       string `json:"version"`
	Display       string `json:"display"`
	Strategy      string `json:"strategy"`
	ConfigPath    string `json:"config_path,omitempty"`
	ClientCount   int    `json:"client_count"`
	MonitorCount  int    `json:"monitor_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ClientInfo describes one managed client.
type ClientInfo struct {
	Inner      uint32 `json:"inner"`
	Frame      uint32 `json:"frame"`
	Name       string `json:"name"`
	NameSource string `json:"name_source"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Fullscreen bool   `json:"fullscreen"`
}

// ClientsData represents the data returned by GET_CLIENTS
type ClientsData struct {
	Clients []ClientInfo `json:"clients"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	Output  uint32 `json:"output"`
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Primary bool   `json:"primary"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// Snapshot is the session state published after every event. It is
// immutable once published.
type Snapshot struct {
	Status   StatusData    `json:"status"`
	Clients  []ClientInfo  `json:"clients"`
	Monitors []MonitorInfo `json:"monitors"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "marshal response data")
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, "parse request")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
