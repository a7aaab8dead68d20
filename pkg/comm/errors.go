package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLong indicates a length field above MaxFrameData.
	ErrFrameTooLong = errors.New("frame too long")
	// ErrShortCommand indicates a command frame without a command word.
	ErrShortCommand = errors.New("command frame too short")
	// ErrConfigEntryTimeout indicates no ACK for entering configuration mode.
	ErrConfigEntryTimeout = errors.New("config entry timeout")
	// ErrConfigExitTimeout indicates no ACK for leaving configuration mode.
	// The session is considered back to normal mode regardless.
	ErrConfigExitTimeout = errors.New("config exit timeout")
	// ErrCommandTimeout indicates no reply received for a command.
	ErrCommandTimeout = errors.New("command timeout")
	// ErrNotInConfig indicates a parameter command issued outside configuration mode.
	ErrNotInConfig = errors.New("not in configuration mode")
	// ErrInConfig indicates a normal mode exchange issued in configuration mode.
	ErrInConfig = errors.New("in configuration mode")
	// ErrUnavailable indicates the transport failed and the link is no longer usable.
	ErrUnavailable = errors.New("transport unavailable")
)

// FrameSyncError reports a malformed or truncated frame.
// The parser has already resynchronized when it is reported.
type FrameSyncError struct {
	Kind   Kind
	Reason string
}

// Error implements error.
func (e *FrameSyncError) Error() string {
	return fmt.Sprintf("%s frame sync error: %s", e.Kind, e.Reason)
}

// CommandError wraps a non-zero ACK status from a reply.
type CommandError struct {
	Code   uint16
	Status uint16
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command 0x%04x failed with status %d", e.Code, e.Status)
}

// CommandMismatch describes a reply which doesn't match the outstanding command.
type CommandMismatch struct {
	Want uint16
	Got  uint16
}

// Error implements error.
func (e *CommandMismatch) Error() string {
	return fmt.Sprintf("unexpected reply 0x%04x, waiting for 0x%04x", e.Got, e.Want)
}
