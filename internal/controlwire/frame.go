// Package controlwire implements the length-prefixed framing and
// message shapes of the Balancer<->Worker control channel (spec §4.4,
// §6 "Worker control frames"). The spec's original pickle-framed tuples
// are replaced, per spec §9's explicit substitution note, with
// length-prefixed JSON carrying the same (signal, session, sid, error)
// shape; framing itself (8-byte big-endian size header) is kept exactly.
package controlwire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bifshteksex/roombot/internal/model"
)

const headerSize = 8

// WriteFrame writes an 8-byte big-endian length prefix followed by
// payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [headerSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	size := binary.BigEndian.Uint64(header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return payload, nil
}

// Command is a Balancer -> Worker control frame: ("create", sid,
// session), ("delete", sid), or ("stop",) (spec §6).
type Command struct {
	Cmd     string         `json:"cmd"`
	SID     string         `json:"sid,omitempty"`
	Session *model.Session `json:"session,omitempty"`
}

const (
	CmdCreate = "create"
	CmdDelete = "delete"
	CmdStop   = "stop"
)

// WriteCommand encodes and writes a Command frame.
func WriteCommand(w io.Writer, c Command) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadCommand reads and decodes one Command frame.
func ReadCommand(r io.Reader) (Command, error) {
	var c Command
	payload, err := ReadFrame(r)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	return c, nil
}

// Signal is a Worker -> Balancer control frame: (signal, session, sid,
// error) (spec §6), or the bare "crashed" signal with no sid/session.
type Signal struct {
	Signal  string         `json:"signal"`
	SID     string         `json:"sid,omitempty"`
	Session *model.Session `json:"session,omitempty"`
	Error   string         `json:"error,omitempty"`
}

const (
	SignalConnected    = "connected"
	SignalFailed       = "failed"
	SignalDeleted      = "deleted"
	SignalDisconnected = "disconnected"
	SignalUpdate       = "update"
	SignalCrashed      = "crashed"
)

// WriteSignal encodes and writes a Signal frame.
func WriteSignal(w io.Writer, s Signal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadSignal reads and decodes one Signal frame.
func ReadSignal(r io.Reader) (Signal, error) {
	var s Signal
	payload, err := ReadFrame(r)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(payload, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal signal: %w", err)
	}
	return s, nil
}
