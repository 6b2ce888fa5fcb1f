package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/mutation"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	"github.com/rs/zerolog"
)

type rec struct {
	ID     string
	Status string
}

func (r rec) RecordID() string { return r.ID }

type markPaid struct{}

func (markPaid) Kind() string                      { return "order_status" }
func (markPaid) Consistency() mutation.Consistency { return mutation.OptimisticPatch }
func (markPaid) Apply(r *rec)                      { r.Status = "paid" }

type deleteRec struct{}

func (deleteRec) Kind() string                      { return "delete" }
func (deleteRec) Consistency() mutation.Consistency { return mutation.FullResync }
func (deleteRec) Apply(*rec)                        {}

// memStore serves pages from memory and applies mutations to them.
type memStore struct {
	mu       sync.Mutex
	records  []rec
	fetches  int
	failNext bool
}

func newMemStore(n int) *memStore {
	s := &memStore{}
	for i := 1; i <= n; i++ {
		s.records = append(s.records, rec{ID: fmt.Sprint(i), Status: "pending"})
	}
	return s
}

func (s *memStore) FetchPage(_ context.Context, page, pageSize int) (collection.Page[rec], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.failNext {
		s.failNext = false
		return collection.Page[rec]{}, errors.New("connection reset")
	}

	start := (page - 1) * pageSize
	if start >= len(s.records) {
		return collection.Page[rec]{Number: page}, nil
	}
	end := min(start+pageSize, len(s.records))
	items := append([]rec(nil), s.records[start:end]...)
	return collection.Page[rec]{Items: items, Number: page, HasMore: true}, nil
}

func (s *memStore) Dispatch(_ context.Context, id string, action mutation.Action[rec]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if action.Kind() == "delete" {
			s.records = append(s.records[:i], s.records[i+1:]...)
		} else {
			action.Apply(&s.records[i])
		}
		return nil
	}
	return errors.New("not found")
}

func (s *memStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func newFeed(store *memStore) *Feed[rec] {
	return New[rec](store, store, Config{
		Name:       "orders",
		Pagination: pagination.Config{PageSize: 7},
	}, zerolog.Nop())
}

func TestFeed_ProximityLoadsToEnd(t *testing.T) {
	store := newMemStore(10)
	f := newFeed(store)
	defer f.Close()

	result, err := f.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if result.Added != 7 {
		t.Errorf("first page added %d, want 7", result.Added)
	}

	// The sentinel stays visible: level triggering keeps loading until the
	// empty page ends the collection.
	o := f.RegisterProximitySignal()
	defer o.Close()
	if !o.Observe(true) {
		t.Fatal("Observe(true) did not request a page")
	}
	f.Wait()

	snap := f.Snapshot()
	if len(snap.Items) != 10 {
		t.Errorf("items = %d, want 10", len(snap.Items))
	}
	if snap.HasMore {
		t.Error("HasMore = true after end of collection")
	}
	if snap.IsLoading {
		t.Error("IsLoading = true after Wait")
	}
	for i, item := range snap.Items {
		if want := fmt.Sprint(i + 1); item.ID != want {
			t.Errorf("items[%d] = %s, want %s", i, item.ID, want)
		}
	}

	fetches := store.fetchCount()
	if o.Observe(true) {
		t.Error("Observe fired after end of collection")
	}
	if store.fetchCount() != fetches {
		t.Error("fetch issued after end of collection")
	}
}

func TestFeed_OptimisticMutationDoesNotRefetch(t *testing.T) {
	store := newMemStore(10)
	f := newFeed(store)
	defer f.Close()

	if _, err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fetches := store.fetchCount()

	outcome, err := f.DispatchMutation(context.Background(), "4", markPaid{})
	if err != nil {
		t.Fatalf("DispatchMutation failed: %v", err)
	}
	if !outcome.Patched {
		t.Error("Patched = false")
	}

	got, ok := f.Get("4")
	if !ok || got.Status != "paid" {
		t.Errorf("record 4 = %+v, want status paid", got)
	}
	if store.fetchCount() != fetches {
		t.Errorf("fetches = %d, want %d", store.fetchCount(), fetches)
	}
}

func TestFeed_ResyncMutationReloadsFromFirstPage(t *testing.T) {
	store := newMemStore(10)
	f := newFeed(store)
	defer f.Close()

	ctx := context.Background()
	f.Start(ctx)
	f.LoadMore(ctx)
	genBefore := f.Snapshot().Generation

	if _, err := f.DispatchMutation(ctx, "7", deleteRec{}); err != nil {
		t.Fatalf("DispatchMutation failed: %v", err)
	}
	f.Wait()

	snap := f.Snapshot()
	if snap.Generation == genBefore {
		t.Error("generation not advanced")
	}
	if len(snap.Items) != 7 {
		t.Fatalf("items = %d after resync, want 7 (page 1 only)", len(snap.Items))
	}
	if snap.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2", snap.CurrentPage)
	}
	for _, item := range snap.Items {
		if item.ID == "7" {
			t.Error("deleted record still present")
		}
	}
	if f.IsLocked("7") {
		t.Error("record 7 still locked")
	}
}

func TestFeed_FailedFetchIsRetriedOnNextSignal(t *testing.T) {
	store := newMemStore(10)
	store.failNext = true
	f := newFeed(store)
	defer f.Close()

	_, err := f.Start(context.Background())
	var fetchErr *pagination.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Start error = %v, want *FetchError", err)
	}
	if f.LastFetchError() == nil {
		t.Error("LastFetchError = nil after failure")
	}
	if f.IsLoading() || !f.HasMore() {
		t.Error("flags not restored after failure")
	}

	o := f.RegisterProximitySignal()
	o.Observe(true)
	f.Wait()

	if len(f.Items()) != 10 {
		t.Errorf("items = %d, want 10", len(f.Items()))
	}
	if f.LastFetchError() != nil {
		t.Errorf("LastFetchError = %v after recovery", f.LastFetchError())
	}
}

// gatedStore holds the first fetch of one page until the test releases it
// with the error the fetch should return.
type gatedStore struct {
	*memStore
	page    int
	entered chan struct{}
	release chan error

	once sync.Once
}

func newGatedStore(store *memStore, page int) *gatedStore {
	return &gatedStore{
		memStore: store,
		page:     page,
		entered:  make(chan struct{}),
		release:  make(chan error, 1),
	}
}

func (g *gatedStore) FetchPage(ctx context.Context, page, pageSize int) (collection.Page[rec], error) {
	gated := false
	if page == g.page {
		g.once.Do(func() { gated = true })
	}
	if gated {
		close(g.entered)
		if err := <-g.release; err != nil {
			return collection.Page[rec]{}, err
		}
	}
	return g.memStore.FetchPage(ctx, page, pageSize)
}

func TestFeed_FetchAfterResyncIsDropped(t *testing.T) {
	tests := []struct {
		name       string
		failResync bool
		staleErr   error
		wantErr    bool
	}{
		{name: "stale failure does not surface", staleErr: errors.New("connection reset")},
		{name: "stale success keeps current failure", failResync: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(10)
			gated := newGatedStore(store, 2)
			f := New[rec](gated, store, Config{
				Name:       "orders",
				Pagination: pagination.Config{PageSize: 7},
			}, zerolog.Nop())
			defer f.Close()

			ctx := context.Background()
			if _, err := f.Start(ctx); err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			type loadReturn struct {
				res pagination.LoadResult
				err error
			}
			done := make(chan loadReturn)
			go func() {
				res, err := f.LoadMore(ctx)
				done <- loadReturn{res, err}
			}()
			<-gated.entered

			store.mu.Lock()
			store.failNext = tt.failResync
			store.mu.Unlock()
			f.Resync(ctx)
			f.Wait()

			gated.release <- tt.staleErr
			got := <-done

			if got.err != nil {
				t.Errorf("LoadMore error = %v, want nil", got.err)
			}
			if got.res.Outcome != pagination.OutcomeStale {
				t.Errorf("Outcome = %s, want stale", got.res.Outcome)
			}
			if (f.LastFetchError() != nil) != tt.wantErr {
				t.Errorf("LastFetchError = %v, want error: %v", f.LastFetchError(), tt.wantErr)
			}

			snap := f.Snapshot()
			wantItems := 7
			if tt.failResync {
				wantItems = 0
			}
			if len(snap.Items) != wantItems {
				t.Errorf("items = %d, want %d", len(snap.Items), wantItems)
			}
		})
	}
}

func TestFeed_Close(t *testing.T) {
	store := newMemStore(10)
	f := newFeed(store)
	o := f.RegisterProximitySignal()
	f.Close()
	f.Close()

	if o.Observe(true) {
		t.Error("observer fired after Close")
	}
	if _, err := f.LoadMore(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadMore error = %v, want ErrClosed", err)
	}
	if _, err := f.DispatchMutation(context.Background(), "1", markPaid{}); !errors.Is(err, ErrClosed) {
		t.Errorf("DispatchMutation error = %v, want ErrClosed", err)
	}
	f.Wait()
	if store.fetchCount() != 0 {
		t.Errorf("fetches = %d, want 0", store.fetchCount())
	}
}

func TestFeed_Name(t *testing.T) {
	f := New[rec](newMemStore(0), newMemStore(0), Config{}, zerolog.Nop())
	defer f.Close()
	if f.Name() != "records" {
		t.Errorf("Name = %q, want records", f.Name())
	}
}

func TestFeed_LogsCarryCollection(t *testing.T) {
	buf := &bytes.Buffer{}
	store := newMemStore(3)
	f := New[rec](store, store, Config{
		Name:       "users",
		Pagination: pagination.Config{PageSize: 7},
	}, zerolog.New(buf).Level(zerolog.DebugLevel))
	defer f.Close()

	f.Start(context.Background())

	for _, msg := range []string{"Feed started", "Page appended"} {
		found := false
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if strings.Contains(line, msg) {
				found = true
				if !strings.Contains(line, `"collection":"users"`) {
					t.Errorf("%q logged without collection: %s", msg, line)
				}
			}
		}
		if !found {
			t.Errorf("no %q entry in %s", msg, buf.String())
		}
	}
}
