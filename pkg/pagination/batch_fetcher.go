package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// PageSize sent with every request
	PageSize int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages bounds the sequential fallback when the source announces no page count
	MaxPages int
}

// DefaultBatchConfig returns the configuration used for exports
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		PageSize:       50,
		Timeout:        15 * time.Second,
		MaxPages:       1000,
	}
}

// PageResult represents the result of fetching a single page
type PageResult[T any] struct {
	PageNumber int
	Items      []T
	Error      error
}

// BatchFetcher fetches every page of a collection in parallel.
// Unlike Loader it owns no state; it is used for one-shot exports.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  BatchConfig
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher PageFetcher[T], config BatchConfig) *BatchFetcher[T] {
	defaults := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll returns every record of the collection in page order.
// The first page determines the page count; when the source does not
// announce one, pages are fetched sequentially until the end signal.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	first, err := bf.fetchOne(ctx, 1)
	if err != nil {
		if isEnd(err) {
			return []T{}, nil
		}
		batchPagesFetched.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	batchPagesFetched.WithLabelValues("ok").Inc()

	if first.TotalPages == 0 {
		return bf.fetchSequential(ctx, first, start)
	}

	totalPages := first.TotalPages
	log.Info().
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if totalPages <= 1 || !first.HasMore {
		return first.Items, nil
	}

	results := make(map[int][]T, totalPages)
	results[1] = first.Items

	pageQueue := make(chan int, totalPages)
	pageResults := make(chan PageResult[T], totalPages)
	errs := make(chan error, bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, pageResults, errs, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
		close(errs)
	}()

	fetchedPages := 1
	for result := range pageResults {
		results[result.PageNumber] = result.Items
		fetchedPages++
	}

	if err := <-errs; err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", fetchedPages).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return flatten(results, totalPages), fmt.Errorf("worker error (partial data: %d/%d pages): %w", fetchedPages, totalPages, err)
	}

	log.Info().
		Int("pages", fetchedPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return flatten(results, totalPages), nil
}

func (bf *BatchFetcher[T]) fetchSequential(ctx context.Context, first collection.Page[T], start time.Time) ([]T, error) {
	all := append([]T(nil), first.Items...)
	hasMore := first.HasMore && len(first.Items) > 0

	page := 2
	for ; hasMore && page <= bf.config.MaxPages; page++ {
		next, err := bf.fetchOne(ctx, page)
		if isEnd(err) {
			break
		}
		if err != nil {
			batchPagesFetched.WithLabelValues("error").Inc()
			return all, fmt.Errorf("fetch page %d (partial data: %d pages): %w", page, page-1, err)
		}
		batchPagesFetched.WithLabelValues("ok").Inc()
		all = append(all, next.Items...)
		hasMore = next.HasMore && len(next.Items) > 0
	}

	log.Info().
		Int("pages", page-1).
		Dur("duration", time.Since(start)).
		Msg("Sequential fetch complete")

	return all, nil
}

func (bf *BatchFetcher[T]) fetchOne(ctx context.Context, page int) (collection.Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, page, bf.config.PageSize)
}

// worker processes pages from the queue
func (bf *BatchFetcher[T]) worker(ctx context.Context, pageQueue <-chan int, results chan<- PageResult[T], errs chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			select {
			case errs <- ctx.Err():
			default:
			}
			return
		default:
		}

		page, err := bf.fetchOne(ctx, pageNum)
		if isEnd(err) {
			continue
		}
		if err != nil {
			batchPagesFetched.WithLabelValues("error").Inc()
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")

			select {
			case errs <- err:
			default:
			}
			return
		}
		batchPagesFetched.WithLabelValues("ok").Inc()

		results <- PageResult[T]{PageNumber: pageNum, Items: page.Items}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

func flatten[T any](pages map[int][]T, totalPages int) []T {
	var out []T
	for page := 1; page <= totalPages; page++ {
		out = append(out, pages[page]...)
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func isEnd(err error) bool {
	return err != nil && errors.Is(err, ErrEndOfCollection)
}
