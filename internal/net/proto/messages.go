package proto

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// MessageID identifies a custom message on an established connection.
type MessageID uint8

const (
	// MsgInput carries one tagged input command, client to server.
	MsgInput MessageID = 32
	// MsgState carries the last applied input id and a full scene snapshot,
	// server to client.
	MsgState MessageID = 33
)

func (id MessageID) String() string {
	switch id {
	case MsgInput:
		return "input"
	case MsgState:
		return "state"
	default:
		return fmt.Sprintf("message(%d)", uint8(id))
	}
}

// Known reports whether the id is part of the protocol.
func (id MessageID) Known() bool {
	return id == MsgInput || id == MsgState
}

var (
	// ErrEmptyFrame is returned for frames without a header byte.
	ErrEmptyFrame = eris.New("empty frame")
	// ErrUnknownMessage is returned for frames carrying an unknown id.
	ErrUnknownMessage = eris.New("unknown message id")
)

// Frame prefixes payload with its message id.
func Frame(id MessageID, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(id))
	return append(out, payload...)
}

// Parse splits a frame into id and payload. The payload aliases data.
func Parse(data []byte) (MessageID, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	id := MessageID(data[0])
	if !id.Known() {
		return id, nil, eris.Wrapf(ErrUnknownMessage, "id=%d", data[0])
	}
	return id, data[1:], nil
}
