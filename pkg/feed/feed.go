// Package feed assembles one incrementally loaded admin screen: the
// collection state, its paged loader, the proximity trigger and the
// mutation controller.
//
// The rendering layer only talks to a Feed. It reads snapshots, reports
// proximity through observers and dispatches typed mutations; the feed
// decides when pages are fetched and when the list is resynchronized.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/Sternrassler/shop-admin-client/pkg/mutation"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	"github.com/Sternrassler/shop-admin-client/pkg/trigger"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed feed.
var ErrClosed = errors.New("feed closed")

// Config holds feed configuration.
type Config struct {
	// Name labels logs and metrics, e.g. "orders".
	Name string

	// Pagination configures the page loader.
	Pagination pagination.Config
}

// Feed is the synchronization engine of one record list.
type Feed[T collection.Record] struct {
	name       string
	state      *collection.State[T]
	loader     *pagination.Loader[T]
	policy     *trigger.Policy
	controller *mutation.Controller[T]
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	lastErr error
}

// New creates a feed over fetcher and dispatcher. Background loads run until
// Close is called.
func New[T collection.Record](fetcher pagination.PageFetcher[T], dispatcher mutation.Dispatcher[T], cfg Config, logger zerolog.Logger) *Feed[T] {
	if cfg.Name == "" {
		cfg.Name = "records"
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{
		name:   cfg.Name,
		state:  collection.New[T](),
		logger: logging.ForCollection(logger, cfg.Name),
		ctx:    ctx,
		cancel: cancel,
	}
	f.loader = pagination.NewLoader(cfg.Name, f.state, fetcher, cfg.Pagination, logger)
	f.policy = trigger.NewPolicy(f.state, f.spawnLoad, f.logger)
	f.controller = mutation.NewController(cfg.Name, f.state, dispatcher, f, logger)

	return f
}

// Name returns the collection name.
func (f *Feed[T]) Name() string {
	return f.name
}

// Start loads the first page. Views registered afterwards continue from
// there.
func (f *Feed[T]) Start(ctx context.Context) (pagination.LoadResult, error) {
	f.logger.Info().Int("page_size", f.loader.PageSize()).Msg("Feed started")
	return f.LoadMore(ctx)
}

// LoadMore fetches the next page synchronously. It is a no-op while a fetch
// is outstanding or after the end of the collection.
func (f *Feed[T]) LoadMore(ctx context.Context) (pagination.LoadResult, error) {
	if f.isClosed() {
		return pagination.LoadResult{Outcome: pagination.OutcomeSkipped}, ErrClosed
	}
	result, err := f.loader.LoadNext(ctx)
	f.afterLoad(result, err)
	return result, err
}

// Resync discards the loaded records and starts fetching page 1 of a new
// generation in the background. The reset is visible when Resync returns.
func (f *Feed[T]) Resync(ctx context.Context) {
	gen := f.state.Reset()
	feedResyncsTotal.WithLabelValues(f.name).Inc()
	feedRecords.WithLabelValues(f.name).Set(0)
	f.logger.Info().Uint64("generation", gen).Msg("Resynchronizing collection")

	f.spawnLoad()
}

// RegisterProximitySignal attaches a view's proximity observer. The caller
// closes it when the view goes away.
func (f *Feed[T]) RegisterProximitySignal() *trigger.Observer {
	return f.policy.Register()
}

// DispatchMutation applies action to the record with the given id.
func (f *Feed[T]) DispatchMutation(ctx context.Context, id string, action mutation.Action[T]) (mutation.Outcome, error) {
	if f.isClosed() {
		return mutation.Outcome{}, ErrClosed
	}
	return f.controller.Apply(ctx, mutation.Request[T]{TargetID: id, Action: action})
}

// IsLocked reports whether a mutation for id is in flight.
func (f *Feed[T]) IsLocked(id string) bool {
	return f.controller.IsLocked(id)
}

// Snapshot returns a copy of the current state.
func (f *Feed[T]) Snapshot() collection.Snapshot[T] {
	return f.state.Snapshot()
}

// Items returns the loaded records in order.
func (f *Feed[T]) Items() []T {
	return f.state.Snapshot().Items
}

// Get returns the loaded record with the given id.
func (f *Feed[T]) Get(id string) (T, bool) {
	return f.state.Get(id)
}

// HasMore reports whether further pages may exist.
func (f *Feed[T]) HasMore() bool {
	return f.state.HasMore()
}

// IsLoading reports whether a page fetch is outstanding.
func (f *Feed[T]) IsLoading() bool {
	return f.state.IsLoading()
}

// LastFetchError returns the error of the most recent failed page fetch,
// or nil once a later fetch succeeded.
func (f *Feed[T]) LastFetchError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Wait blocks until no background load is running.
func (f *Feed[T]) Wait() {
	f.wg.Wait()
}

// Close detaches all observers and cancels background loads.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.policy.Close()
	f.cancel()
	f.logger.Info().Msg("Feed closed")
}

func (f *Feed[T]) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// spawnLoad runs one page fetch on the feed's context.
func (f *Feed[T]) spawnLoad() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	backgroundLoadsTotal.WithLabelValues(f.name).Inc()
	go func() {
		defer f.wg.Done()
		result, err := f.loader.LoadNext(f.ctx)
		f.afterLoad(result, err)
	}()
}

// afterLoad records the fetch result and re-arms the trigger. Failed loads
// are not re-evaluated; the next proximity signal retries them. Results of a
// superseded generation leave the feed untouched; the load of the current
// generation re-arms the trigger.
func (f *Feed[T]) afterLoad(result pagination.LoadResult, err error) {
	switch result.Outcome {
	case pagination.OutcomeFailed:
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
		return
	case pagination.OutcomeSkipped, pagination.OutcomeStale:
		return
	}

	if err != nil {
		f.logger.Error().Err(err).Int("page", result.Page).Msg("Page could not be applied")
		return
	}

	f.mu.Lock()
	f.lastErr = nil
	f.mu.Unlock()
	feedRecords.WithLabelValues(f.name).Set(float64(f.state.Len()))

	f.policy.Reevaluate()
}
