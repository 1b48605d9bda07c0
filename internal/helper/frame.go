// Package helper implements the in-sandbox supervisor protocol
// (spec.md §4.4, §6): a UNIX stream socket carrying u32-BE-length-
// prefixed JSON frames between the Runner (C9) and the process the
// Runner launches as the sandbox's PID 1. Grounded on the teacher's
// `json.NewDecoder` use over bwrap's info-fd pipe in hugbox.go
// (length-implicit JSON framing over an fd), generalized here to an
// explicit length prefix since the helper socket is long-lived and
// carries many frames rather than exactly one.
package helper

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MessageType is one of the frame types spec.md §4.4/§6 defines.
type MessageType string

const (
	TypeHello    MessageType = "HELLO"
	TypeRun      MessageType = "RUN"
	TypeReady    MessageType = "READY"
	TypeResult   MessageType = "RESULT"
	TypePing     MessageType = "PING"
	TypePong     MessageType = "PONG"
	TypeShutdown MessageType = "SHUTDOWN"
	TypeError    MessageType = "ERROR"
)

// ProtocolVersion is the helper's current protocol version, sent in
// every HELLO and bumped whenever the frame schema changes.
const ProtocolVersion = 1

// Message is the common envelope for every frame. Fields not relevant
// to Type are omitted on the wire via `omitempty`.
type Message struct {
	Type MessageType `json:"type"`
	// ID correlates a RUN request with its RESULT response.
	ID int `json:"id,omitempty"`

	// HELLO
	Version int `json:"version,omitempty"`

	// RUN
	Argv        []string          `json:"argv,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	AttachStdio bool              `json:"attach_stdio,omitempty"`
	Wait        bool              `json:"wait,omitempty"`

	// RESULT
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   []byte `json:"stdout,omitempty"`
	Stderr   []byte `json:"stderr,omitempty"`

	// ERROR
	Code int    `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

// maxFrameSize guards against a corrupt or hostile length prefix
// forcing an unbounded allocation.
const maxFrameSize = 64 << 20

// WriteFrame writes one length-prefixed JSON frame to w.
func WriteFrame(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("helper: frame too large: %d bytes", len(body))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed JSON frame from r. Returns
// io.EOF unchanged if the connection closes cleanly before any bytes
// of a new frame arrive (spec.md §4.4: "EOF on the socket is not an
// error").
func ReadFrame(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxFrameSize {
		return Message{}, fmt.Errorf("helper: frame too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("helper: malformed frame: %w", err)
	}
	return msg, nil
}
