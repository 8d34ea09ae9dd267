package bridge

import (
	"encoding/json"
	"time"
)

// ConnectionStatus represents the state of a remote bridge session
type ConnectionStatus struct {
	Connected    bool      `json:"connected"`
	Reconnecting bool      `json:"reconnecting"`
	LastError    string    `json:"last_error,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// Websocket frame types and calls
const (
	TypePing   = "ping"
	TypePong   = "pong"
	TypeLedger = "ledger"

	CallPrinters = "printers"
	CallPrint    = "print"
)

// Request is a frame sent to a websocket bridge
type Request struct {
	Type   string    `json:"type,omitempty"`
	ID     string    `json:"id,omitempty"`
	Call   string    `json:"call,omitempty"`
	Config *Config   `json:"config,omitempty"`
	Data   []Segment `json:"data,omitempty"`
}

// Response is a frame sent by a websocket bridge. Frames with an ID answer
// a request; frames without one are pings, pongs or pushed updates.
type Response struct {
	Type     string          `json:"type,omitempty"`
	ID       string          `json:"id,omitempty"`
	Printers []string        `json:"printers,omitempty"`
	Error    string          `json:"error,omitempty"`
	Items    json.RawMessage `json:"items,omitempty"`
}

// RemoteError is an error reported by the far side of a bridge session
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote bridge: " + e.Message
}
