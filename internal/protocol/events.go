// Package protocol defines the wire-level types the service shares with
// its clients: the error-code ladder used in HTTP error envelopes and the
// operation events streamed over the websocket feed.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
)

const Version = "1.0"

// Message types on the event feed.
const (
	TypeWelcome   = "WELCOME"
	TypeOperation = "OPERATION"
)

// Operation kinds.
const (
	OpBlocks    = "blocks"
	OpStructure = "structure"
	OpCommand   = "command"
)

// BaseMessage lets clients route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// WelcomeMsg is sent once when a feed subscriber connects.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ServerTime      string `json:"server_time"`
}

// OperationEvent describes one world write the proxy forwarded (or
// rejected). Region is absent for command operations.
type OperationEvent struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	UserID     string        `json:"user_id,omitempty"`
	Region     *geometry.Box `json:"region,omitempty"`
	BlockCount int           `json:"block_count,omitempty"`
	OK         bool          `json:"ok"`
	ErrorCode  string        `json:"error_code,omitempty"`
	At         time.Time     `json:"at"`
}

// OperationMsg wraps an OperationEvent on the feed.
type OperationMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Event           OperationEvent `json:"event"`
}

func NewOperationMsg(ev OperationEvent) OperationMsg {
	return OperationMsg{Type: TypeOperation, ProtocolVersion: Version, Event: ev}
}
