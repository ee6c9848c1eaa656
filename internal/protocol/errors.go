package protocol

import (
	"errors"
	"fmt"
)

// Reason classifies why a frame could not be decoded.
type Reason int

const (
	// Empty means the frame had no content.
	Empty Reason = iota + 1
	// MalformedSyntax means the frame was not a JSON object with a string
	// "type" field, or its fields did not match the kind's shape.
	MalformedSyntax
	// UnknownKind means the frame was well formed but its type is not part
	// of the protocol.
	UnknownKind
)

func (r Reason) String() string {
	switch r {
	case Empty:
		return "empty"
	case MalformedSyntax:
		return "malformed"
	case UnknownKind:
		return "unknown_kind"
	default:
		return "unknown"
	}
}

var (
	ErrEmpty       = errors.New("empty frame")
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownKind = errors.New("unknown message kind")

	errMissingType = errors.New(`missing "type" field`)
)

// DecodeError is returned by Decode and DecodeOutbound for every failure.
// Kind carries the offending type string when one could be read.
type DecodeError struct {
	Reason Reason
	Kind   string
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Reason == UnknownKind:
		return fmt.Sprintf("decode: %s %q", ErrUnknownKind, e.Kind)
	case e.Err != nil && e.Kind != "":
		return fmt.Sprintf("decode %s: %s: %v", e.Kind, e.sentinel(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("decode: %s: %v", e.sentinel(), e.Err)
	default:
		return "decode: " + e.sentinel().Error()
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the ErrEmpty, ErrMalformed and ErrUnknownKind sentinels.
func (e *DecodeError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *DecodeError) sentinel() error {
	switch e.Reason {
	case Empty:
		return ErrEmpty
	case UnknownKind:
		return ErrUnknownKind
	default:
		return ErrMalformed
	}
}
