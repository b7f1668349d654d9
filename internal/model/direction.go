package model

import (
	"fmt"
	"strings"
)

// Direction selects which side of a record is the local host.
type Direction int

const (
	// Download means the local host is the destination.
	Download Direction = iota
	// Upload means the local host is the source.
	Upload
)

// Directions lists every direction in report order.
var Directions = []Direction{Download, Upload}

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// LocalField returns the address on the local host's side of the record.
func (d Direction) LocalField(r PacketRecord) string {
	if d == Upload {
		return r.Source
	}
	return r.Destination
}

// PeerField returns the address on the remote side of the record.
func (d Direction) PeerField(r PacketRecord) string {
	if d == Upload {
		return r.Destination
	}
	return r.Source
}

// Matches reports whether the record flows in this direction relative to local.
func (d Direction) Matches(r PacketRecord, local string) bool {
	return d.LocalField(r) == local
}

// ParseDirection converts "upload" or "download" (any case) into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload":
		return Upload, nil
	case "download":
		return Download, nil
	default:
		return 0, fmt.Errorf("unknown direction: %q", s)
	}
}

// State is the kind of activity a run was recorded under.
type State int

const (
	StateUnspecified State = iota
	StateActive
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	default:
		return ""
	}
}

// ParseState converts "", "active" or "idle" into a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StateUnspecified, nil
	case "active":
		return StateActive, nil
	case "idle":
		return StateIdle, nil
	default:
		return StateUnspecified, fmt.Errorf("unknown state: %q", s)
	}
}
