package engine

import (
	"errors"
	"fmt"

	"github.com/StitchDesign/Stitch-sub007/internal/graph"
)

// RuntimeError describes a condition the engine detected while scheduling
// or evaluating. Most are absorbed: logged, recorded as a skip in the
// trace, and never returned from Step. API calls return them directly.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the affected node, if any.
	Node graph.NodeID

	// Kind is the node kind, if known.
	Kind string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected marks nodes skipped because they feed themselves.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeBudgetExceeded marks an impure node forced to stop after
	// asking to run again too many frames in a row.
	ErrCodeBudgetExceeded RuntimeErrorCode = "RUN_AGAIN_BUDGET_EXCEEDED"

	// ErrCodeInvariantViolation marks a broken internal contract the engine
	// repaired.
	ErrCodeInvariantViolation RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeUnknownKind indicates a node kind missing from the registry.
	ErrCodeUnknownKind RuntimeErrorCode = "UNKNOWN_KIND"

	// ErrCodeVariantMismatch indicates a strict-mode variant mismatch.
	ErrCodeVariantMismatch RuntimeErrorCode = "VARIANT_MISMATCH"

	// ErrCodeMissingReference indicates a node or upstream output that no
	// longer exists.
	ErrCodeMissingReference RuntimeErrorCode = "MISSING_REFERENCE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Node != "" && e.Kind != "" {
		return fmt.Sprintf("%s: %s (node=%s, kind=%s)", e.Code, e.Message, e.Node, e.Kind)
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCycleError returns true if err is a cycle detection error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// IsBudgetError returns true if err is a run-again budget error.
func IsBudgetError(err error) bool { return hasCode(err, ErrCodeBudgetExceeded) }

// IsUnknownKind returns true if err reports an unregistered node kind.
func IsUnknownKind(err error) bool { return hasCode(err, ErrCodeUnknownKind) }

// IsVariantMismatch returns true if err is a strict-mode variant mismatch.
func IsVariantMismatch(err error) bool { return hasCode(err, ErrCodeVariantMismatch) }

// IsMissingReference returns true if err reports a missing node or
// upstream. Topology errors from the graph package with the same meaning
// also match.
func IsMissingReference(err error) bool {
	return hasCode(err, ErrCodeMissingReference) || graph.IsMissingReference(err)
}

// NewCycleError creates a RuntimeError for a node skipped in a cycle.
func NewCycleError(id graph.NodeID, cycle graph.Cycle) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: cycle.Message,
		Node:    id,
	}
}

// NewBudgetError creates a RuntimeError for an exhausted run-again budget.
func NewBudgetError(id graph.NodeID, kind string, frames, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBudgetExceeded,
		Message: fmt.Sprintf("node asked to run again for %d frames (limit %d)", frames, limit),
		Node:    id,
		Kind:    kind,
		Details: map[string]string{
			"frames": fmt.Sprintf("%d", frames),
			"limit":  fmt.Sprintf("%d", limit),
		},
	}
}

// NewUnknownKindError creates a RuntimeError for an unregistered kind.
func NewUnknownKindError(id graph.NodeID, kind string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownKind,
		Message: fmt.Sprintf("node kind %q is not registered", kind),
		Node:    id,
		Kind:    kind,
	}
}

// NewMissingReferenceError creates a RuntimeError for a vanished node.
func NewMissingReferenceError(id graph.NodeID, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingReference,
		Message: msg,
		Node:    id,
	}
}
