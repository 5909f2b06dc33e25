// Package statustest builds driver status messages for tests.
package statustest

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is the status record the session-driver sends. The driver
// serializes every value as a string, including the line counters.
type Snapshot struct {
	Message      string `json:"message,omitempty" cbor:"message,omitempty"`
	PreviousLine string `json:"previous line" cbor:"previous line"`
	CurrentLine  string `json:"current line" cbor:"current line"`
	NextLine     string `json:"next line" cbor:"next line"`
	Progress     string `json:"current line progress" cbor:"current line progress"`
	InputMode    string `json:"input mode" cbor:"input mode"`
	LineNumber   string `json:"current line number" cbor:"current line number"`
	TotalLines   string `json:"total number lines" cbor:"total number lines"`
}

// JSON encodes the snapshot the way the driver does by default.
func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// CBOR encodes the snapshot in deterministic CBOR.
func (s Snapshot) CBOR() ([]byte, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return enc.Marshal(s)
}
