package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrEndOfCollection is returned by a PageFetcher when the source signals
// that the requested page does not exist (HTTP 404). The loader treats it
// exactly like an empty page.
var ErrEndOfCollection = errors.New("end of collection")

// PageFetcher fetches a single page from the record store.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page, pageSize int) (collection.Page[T], error)
}

// Config holds loader configuration.
type Config struct {
	// PageSize is sent to the store with every page request.
	PageSize int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used by the admin screens.
func DefaultConfig() Config {
	return Config{
		PageSize: 7,
		Timeout:  15 * time.Second,
	}
}

// Outcome describes what a LoadNext call did to the state.
type Outcome string

const (
	// OutcomeAppended means a non-empty page was appended.
	OutcomeAppended Outcome = "appended"

	// OutcomeEndOfCollection means the source had no more records.
	OutcomeEndOfCollection Outcome = "end_of_collection"

	// OutcomeSkipped means the preconditions did not hold and nothing was fetched.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeStale means the state was reset while the fetch was in flight
	// and the result was dropped.
	OutcomeStale Outcome = "stale"

	// OutcomeFailed means the fetch failed; the same page is retried next time.
	OutcomeFailed Outcome = "failed"
)

// LoadResult reports the effect of one LoadNext call.
type LoadResult struct {
	Outcome    Outcome
	Page       int
	Added      int
	Generation uint64
}

// FetchError is a retryable page fetch failure. The state is unchanged and
// the page cursor is not advanced.
type FetchError struct {
	Collection string
	Page       int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Collection, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports that the fetch may be retried on the next trigger.
func (e *FetchError) Retryable() bool {
	return true
}

// Loader fetches pages sequentially into a collection state.
type Loader[T collection.Record] struct {
	name    string
	state   *collection.State[T]
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewLoader creates a loader for the named collection.
func NewLoader[T collection.Record](name string, state *collection.State[T], fetcher PageFetcher[T], config Config, logger zerolog.Logger) *Loader[T] {
	if state == nil || fetcher == nil {
		panic("pagination: state and fetcher are required")
	}
	if config.PageSize <= 0 {
		config.PageSize = 7
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Loader[T]{
		name:    name,
		state:   state,
		fetcher: fetcher,
		config:  config,
		logger:  logging.ForCollection(logger, name),
	}
}

// PageSize returns the configured page size.
func (l *Loader[T]) PageSize() int {
	return l.config.PageSize
}

// LoadNext fetches the state's current page and appends it.
// Calling it while a fetch is outstanding or after the end of the collection
// is a no-op reported as OutcomeSkipped.
func (l *Loader[T]) LoadNext(ctx context.Context) (LoadResult, error) {
	ticket, ok := l.state.BeginLoad()
	if !ok {
		return LoadResult{Outcome: OutcomeSkipped}, nil
	}
	defer l.state.EndLoad(ticket)

	result := LoadResult{Page: ticket.Page, Generation: ticket.Generation}

	l.logger.Debug().
		Int("page", ticket.Page).
		Uint64("generation", ticket.Generation).
		Msg("Fetching page")

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	page, err := l.fetcher.FetchPage(fetchCtx, ticket.Page, l.config.PageSize)
	cancel()
	pageFetchDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())

	end := errors.Is(err, ErrEndOfCollection)
	if err != nil && !end && ticket.Generation != l.state.Generation() {
		return l.dropStale(result), nil
	}
	if err != nil && !end {
		pageFetchesTotal.WithLabelValues(l.name, string(OutcomeFailed)).Inc()
		l.logger.Warn().
			Err(err).
			Int("page", ticket.Page).
			Msg("Page fetch failed")
		result.Outcome = OutcomeFailed
		return result, &FetchError{Collection: l.name, Page: ticket.Page, Err: err}
	}

	if end || len(page.Items) == 0 {
		page = collection.Page[T]{HasMore: false}
		end = true
	}
	page.Number = ticket.Page

	added, err := l.state.AppendPage(ticket.Generation, page)
	if errors.Is(err, collection.ErrStaleGeneration) {
		return l.dropStale(result), nil
	}
	if err != nil {
		return result, fmt.Errorf("append page %d: %w", ticket.Page, err)
	}

	result.Added = added
	if end {
		result.Outcome = OutcomeEndOfCollection
		l.logger.Debug().Int("page", ticket.Page).Msg("End of collection")
	} else {
		result.Outcome = OutcomeAppended
		l.logger.Debug().
			Int("page", ticket.Page).
			Int("added", added).
			Bool("has_more", page.HasMore).
			Msg("Page appended")
	}
	pageFetchesTotal.WithLabelValues(l.name, string(result.Outcome)).Inc()

	return result, nil
}

// dropStale discards the result of a fetch that completed after a reset,
// successful or not.
func (l *Loader[T]) dropStale(result LoadResult) LoadResult {
	pageFetchesTotal.WithLabelValues(l.name, string(OutcomeStale)).Inc()
	stalePagesDropped.WithLabelValues(l.name).Inc()
	l.logger.Debug().
		Int("page", result.Page).
		Uint64("generation", result.Generation).
		Msg("Dropped page from superseded generation")
	result.Outcome = OutcomeStale
	return result
}

// Restart discards the state and loads page 1 of a new generation.
func (l *Loader[T]) Restart(ctx context.Context) (LoadResult, error) {
	gen := l.state.Reset()
	l.logger.Info().Uint64("generation", gen).Msg("Pagination restarted")
	return l.LoadNext(ctx)
}
