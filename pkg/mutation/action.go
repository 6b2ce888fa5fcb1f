// Package mutation applies per-record actions against the record store and
// reconciles their result with the collection state.
//
// Each action declares a consistency class. OptimisticPatch actions know
// their full effect and patch the local record after the store accepted
// them. FullResync actions may move records across filters or page
// boundaries, so the collection is discarded and re-read from page 1.
//
// At most one action per record id is in flight; a second request for a
// busy id fails fast with ErrAlreadyInProgress and sends nothing.
package mutation

import (
	"context"
	"errors"
	"fmt"
)

// Consistency is the reconciliation policy of an action.
type Consistency int

const (
	// OptimisticPatch applies the action's field changes locally, no refetch.
	OptimisticPatch Consistency = iota

	// FullResync discards the collection and restarts pagination.
	FullResync
)

// String returns the metric/log label of the class.
func (c Consistency) String() string {
	switch c {
	case OptimisticPatch:
		return "optimistic_patch"
	case FullResync:
		return "full_resync"
	default:
		return fmt.Sprintf("consistency(%d)", int(c))
	}
}

// MarshalText encodes the class by its label.
func (c Consistency) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a label written by MarshalText.
func (c *Consistency) UnmarshalText(text []byte) error {
	switch string(text) {
	case "optimistic_patch":
		*c = OptimisticPatch
	case "full_resync":
		*c = FullResync
	default:
		return fmt.Errorf("unknown consistency %q", text)
	}
	return nil
}

// Action is a typed mutation of a record of type T.
type Action[T any] interface {
	// Kind names the operation, e.g. "order_status".
	Kind() string

	// Consistency declares how a successful result is reconciled.
	Consistency() Consistency

	// Apply patches the local record. Only called for OptimisticPatch actions.
	Apply(record *T)
}

// Request targets one record with one action.
type Request[T any] struct {
	TargetID string
	Action   Action[T]
}

// Dispatcher sends actions to the record store.
type Dispatcher[T any] interface {
	Dispatch(ctx context.Context, targetID string, action Action[T]) error
}

// Resyncer restarts pagination after a FullResync action succeeded.
// Resync must reset the collection before returning.
type Resyncer interface {
	Resync(ctx context.Context)
}

// Outcome reports how a successful action was reconciled.
type Outcome struct {
	TargetID    string      `json:"target_id"`
	Kind        string      `json:"kind"`
	Consistency Consistency `json:"consistency"`

	// Patched is true when the local record was updated in place.
	Patched bool `json:"patched"`

	// Resynced is true when the collection was reset.
	Resynced bool `json:"resynced"`
}

var (
	// ErrAlreadyInProgress is returned when an action for the same record is
	// still in flight. No request is sent.
	ErrAlreadyInProgress = errors.New("mutation already in progress")

	// ErrInvalidRequest is returned for a request without target or action.
	ErrInvalidRequest = errors.New("invalid mutation request")
)

// MutationError is an action rejected by the store. The collection is
// unchanged.
type MutationError struct {
	TargetID string
	Kind     string
	Err      error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s on %s rejected: %v", e.Kind, e.TargetID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MutationError) Unwrap() error {
	return e.Err
}
