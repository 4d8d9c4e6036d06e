package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes topology errors.
type ErrorCode string

const (
	// ErrCodeUnknownNode indicates a node id that is not in the graph.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeUnknownPort indicates a port index outside the node's ports.
	ErrCodeUnknownPort ErrorCode = "UNKNOWN_PORT"

	// ErrCodeMissingReference indicates an upstream output that cannot be
	// resolved.
	ErrCodeMissingReference ErrorCode = "MISSING_REFERENCE"

	// ErrCodePortConnected indicates a literal write to an input that is
	// fed by an upstream output.
	ErrCodePortConnected ErrorCode = "PORT_CONNECTED"

	// ErrCodeInvalidNode indicates a malformed node declaration.
	ErrCodeInvalidNode ErrorCode = "INVALID_NODE"
)

// Error is returned by topology operations.
type Error struct {
	Code    ErrorCode
	Message string
	Node    NodeID
	Port    int
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorCode(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsUnknownNode returns true if err reports a node missing from the graph.
func IsUnknownNode(err error) bool { return errorCode(err) == ErrCodeUnknownNode }

// IsUnknownPort returns true if err reports an out of range port.
func IsUnknownPort(err error) bool { return errorCode(err) == ErrCodeUnknownPort }

// IsMissingReference returns true if err reports an unresolvable upstream.
func IsMissingReference(err error) bool { return errorCode(err) == ErrCodeMissingReference }

// IsPortConnected returns true if err reports a literal write to a
// connected input.
func IsPortConnected(err error) bool { return errorCode(err) == ErrCodePortConnected }

func unknownNode(id NodeID) *Error {
	return &Error{Code: ErrCodeUnknownNode, Message: "node not found", Node: id}
}

func unknownPort(id NodeID, direction string, port, count int) *Error {
	return &Error{
		Code:    ErrCodeUnknownPort,
		Message: fmt.Sprintf("%s port %d out of range (node has %d)", direction, port, count),
		Node:    id,
		Port:    port,
	}
}
