// Package collection holds the in-memory state of an incrementally loaded
// record list: ordered items, an id index, the page cursor and the loading flag.
//
// State is mutated only through AppendPage, PatchByID and Reset, plus the
// BeginLoad/EndLoad pair that guards the single outstanding page fetch.
// Every mutation is tagged with a generation; Reset starts a new one so that
// results belonging to an older generation can be recognised and dropped.
package collection

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by PatchByID when the id is not in the state,
	// typically because a concurrent Reset already discarded it.
	ErrNotFound = errors.New("record not found")

	// ErrStaleGeneration is returned by AppendPage when the page was fetched
	// for a generation that has since been reset.
	ErrStaleGeneration = errors.New("stale generation")

	// ErrIdentityChanged is returned by PatchByID when the patch function
	// rewrote the record id.
	ErrIdentityChanged = errors.New("patch changed record id")
)

// Record is an item with a stable unique identifier.
type Record interface {
	RecordID() string
}

// Page is the result of fetching one page from the record store.
type Page[T any] struct {
	// Items in server order.
	Items []T

	// Number is the 1-based page number that was requested.
	Number int

	// HasMore reports whether the source has pages after this one.
	HasMore bool

	// TotalPages is the page count announced by the source (0 if unknown).
	TotalPages int
}

// Ticket identifies a claimed page fetch.
type Ticket struct {
	Generation uint64
	Page       int
}

// Snapshot is a read-only copy of the state.
type Snapshot[T any] struct {
	Items       []T    `json:"items"`
	CurrentPage int    `json:"current_page"`
	HasMore     bool   `json:"has_more"`
	IsLoading   bool   `json:"is_loading"`
	Generation  uint64 `json:"generation"`
}

// State is the ordered record list of one screen.
type State[T Record] struct {
	mu          sync.RWMutex
	items       []T
	index       map[string]int
	currentPage int
	hasMore     bool
	loading     bool
	generation  uint64
}

// New creates an empty state positioned at page 1.
func New[T Record]() *State[T] {
	s := &State[T]{}
	s.resetLocked()
	return s
}

func (s *State[T]) resetLocked() {
	s.items = nil
	s.index = make(map[string]int)
	s.currentPage = 1
	s.hasMore = true
	s.loading = false
	s.generation++
}

// BeginLoad claims the fetch slot for the current page.
// It returns false when there is nothing more to load or a fetch is already
// outstanding; callers treat that as a no-op.
func (s *State[T]) BeginLoad() (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasMore || s.loading {
		return Ticket{}, false
	}
	s.loading = true
	return Ticket{Generation: s.generation, Page: s.currentPage}, true
}

// EndLoad releases the fetch slot claimed by t. A ticket from an older
// generation does not touch the flag of the current one.
func (s *State[T]) EndLoad(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation == s.generation {
		s.loading = false
	}
}

// AppendPage appends the page items in order and advances the cursor.
// Items whose id is already present replace the existing entry in place.
// It returns the number of newly added records.
func (s *State[T]) AppendPage(generation uint64, page Page[T]) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return 0, fmt.Errorf("%w: page %d of generation %d (current %d)",
			ErrStaleGeneration, page.Number, generation, s.generation)
	}

	added := 0
	for _, item := range page.Items {
		id := item.RecordID()
		if i, ok := s.index[id]; ok {
			s.items[i] = item
			continue
		}
		s.index[id] = len(s.items)
		s.items = append(s.items, item)
		added++
	}

	s.hasMore = page.HasMore
	if len(page.Items) > 0 {
		s.currentPage = page.Number + 1
	}
	return added, nil
}

// PatchByID applies fn to a copy of the record with the given id and stores
// the result.
func (s *State[T]) PatchByID(id string, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item := s.items[i]
	fn(&item)
	if item.RecordID() != id {
		return fmt.Errorf("%w: %s -> %s", ErrIdentityChanged, id, item.RecordID())
	}
	s.items[i] = item
	return nil
}

// Reset discards all records and starts a new generation at page 1.
// Any fetch still outstanding belongs to the previous generation.
func (s *State[T]) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	return s.generation
}

// Snapshot returns a copy of the current state.
func (s *State[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]T, len(s.items))
	copy(items, s.items)
	return Snapshot[T]{
		Items:       items,
		CurrentPage: s.currentPage,
		HasMore:     s.hasMore,
		IsLoading:   s.loading,
		Generation:  s.generation,
	}
}

// Get returns the record with the given id.
func (s *State[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Len returns the number of records.
func (s *State[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// HasMore reports whether further pages may exist.
func (s *State[T]) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// IsLoading reports whether a page fetch is outstanding.
func (s *State[T]) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CurrentPage returns the next page number to fetch.
func (s *State[T]) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// Generation returns the current generation.
func (s *State[T]) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
