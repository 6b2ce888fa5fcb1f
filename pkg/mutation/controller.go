package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
)

// Controller runs actions for one collection.
type Controller[T collection.Record] struct {
	name       string
	state      *collection.State[T]
	dispatcher Dispatcher[T]
	resyncer   Resyncer
	inflight   mapset.Set[string]
	logger     zerolog.Logger
}

// NewController creates a controller for the named collection.
func NewController[T collection.Record](name string, state *collection.State[T], dispatcher Dispatcher[T], resyncer Resyncer, logger zerolog.Logger) *Controller[T] {
	if state == nil || dispatcher == nil || resyncer == nil {
		panic("mutation: state, dispatcher and resyncer are required")
	}
	return &Controller[T]{
		name:       name,
		state:      state,
		dispatcher: dispatcher,
		resyncer:   resyncer,
		inflight:   mapset.NewSet[string](),
		logger:     logging.ForCollection(logger, name),
	}
}

// IsLocked reports whether an action for id is in flight.
func (c *Controller[T]) IsLocked(id string) bool {
	return c.inflight.Contains(id)
}

// InFlight returns the number of records with an action in flight.
func (c *Controller[T]) InFlight() int {
	return c.inflight.Cardinality()
}

// Apply dispatches req and reconciles the collection according to the
// action's consistency class.
func (c *Controller[T]) Apply(ctx context.Context, req Request[T]) (Outcome, error) {
	if req.TargetID == "" || req.Action == nil {
		return Outcome{}, ErrInvalidRequest
	}

	kind := req.Action.Kind()
	class := req.Action.Consistency()
	outcome := Outcome{TargetID: req.TargetID, Kind: kind, Consistency: class}

	if !c.inflight.Add(req.TargetID) {
		mutationsTotal.WithLabelValues(c.name, kind, "already_in_progress").Inc()
		c.logger.Debug().
			Str("id", req.TargetID).
			Str("kind", kind).
			Msg("Mutation rejected, record busy")
		return outcome, fmt.Errorf("%w: %s", ErrAlreadyInProgress, req.TargetID)
	}
	mutationsInFlight.WithLabelValues(c.name).Inc()
	defer func() {
		c.inflight.Remove(req.TargetID)
		mutationsInFlight.WithLabelValues(c.name).Dec()
	}()

	if err := c.dispatcher.Dispatch(ctx, req.TargetID, req.Action); err != nil {
		mutationsTotal.WithLabelValues(c.name, kind, "rejected").Inc()
		c.logger.Warn().
			Err(err).
			Str("id", req.TargetID).
			Str("kind", kind).
			Msg("Mutation rejected by store")
		return outcome, &MutationError{TargetID: req.TargetID, Kind: kind, Err: err}
	}

	switch class {
	case OptimisticPatch:
		err := c.state.PatchByID(req.TargetID, req.Action.Apply)
		switch {
		case errors.Is(err, collection.ErrNotFound):
			// The collection was reset while the action was in flight;
			// the next page load carries the new value.
			c.logger.Warn().
				Str("id", req.TargetID).
				Str("kind", kind).
				Msg("Patch target gone after reset")
			mutationsTotal.WithLabelValues(c.name, kind, "patch_target_missing").Inc()
			return outcome, nil
		case err != nil:
			mutationsTotal.WithLabelValues(c.name, kind, "patch_failed").Inc()
			return outcome, fmt.Errorf("patch %s: %w", req.TargetID, err)
		}
		outcome.Patched = true

	case FullResync:
		c.resyncer.Resync(ctx)
		outcome.Resynced = true

	default:
		return outcome, fmt.Errorf("unknown consistency class %s", class)
	}

	mutationsTotal.WithLabelValues(c.name, kind, "applied").Inc()
	c.logger.Debug().
		Str("id", req.TargetID).
		Str("kind", kind).
		Str("consistency", class.String()).
		Msg("Mutation applied")

	return outcome, nil
}
