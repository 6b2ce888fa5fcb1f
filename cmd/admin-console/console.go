package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/admin"
	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/config"
	"github.com/Sternrassler/shop-admin-client/pkg/feed"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	"github.com/Sternrassler/shop-admin-client/pkg/trigger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var errUnknownObserver = errors.New("unknown observer")

// view is the type-independent side of a feed used by the collection routes.
type view interface {
	Name() string
	Start(ctx context.Context) (pagination.LoadResult, error)
	LoadMore(ctx context.Context) (pagination.LoadResult, error)
	RegisterProximitySignal() *trigger.Observer
	LastFetchError() error
	Close()

	page(displayPage, perPage int) pageView
}

// pageView is the JSON body of a collection snapshot.
type pageView struct {
	Collection  string `json:"collection"`
	Items       any    `json:"items"`
	Total       int    `json:"total"`
	CurrentPage int    `json:"current_page"`
	HasMore     bool   `json:"has_more"`
	IsLoading   bool   `json:"is_loading"`
	Generation  uint64 `json:"generation"`
	LastError   string `json:"last_error,omitempty"`

	// Set when the snapshot is windowed for display.
	DisplayPage  int `json:"display_page,omitempty"`
	DisplayPages int `json:"display_pages,omitempty"`
}

// feedView adapts a typed feed to view.
type feedView[T collection.Record] struct {
	*feed.Feed[T]
}

func (v feedView[T]) page(displayPage, perPage int) pageView {
	snap := v.Snapshot()
	pv := pageView{
		Collection:  v.Name(),
		Items:       snap.Items,
		Total:       len(snap.Items),
		CurrentPage: snap.CurrentPage,
		HasMore:     snap.HasMore,
		IsLoading:   snap.IsLoading,
		Generation:  snap.Generation,
	}
	if err := v.LastFetchError(); err != nil {
		pv.LastError = err.Error()
	}
	if perPage > 0 {
		items, pages := collection.Window(snap.Items, displayPage, perPage)
		pv.Items = items
		pv.DisplayPage = displayPage
		pv.DisplayPages = pages
	}
	return pv
}

// console owns one feed per admin screen and the proximity observers
// registered by connected views.
type console struct {
	orders   *feed.Feed[admin.Order]
	products *feed.Feed[admin.Product]
	users    *feed.Feed[admin.User]
	requests *feed.Feed[admin.CancelRequest]

	orderStore   *admin.OrderStore
	productStore *admin.ProductStore
	accountStore *admin.AccountStore
	adminID      string

	views  map[string]view
	export pagination.BatchConfig
	redis  *redis.Client
	logger zerolog.Logger

	observerTTL time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once

	mu        sync.Mutex
	observers map[string]*lease
}

// lease is a console observer and the time its view last reported.
type lease struct {
	observer *trigger.Observer
	seen     time.Time
}

// newConsole wires the four screens and the account of adminID to api.
// redisClient may be nil.
func newConsole(api admin.API, adminID string, redisClient *redis.Client, cfg config.FeedConfig) *console {
	pag := pagination.Config{PageSize: cfg.PageSize, Timeout: cfg.FetchTimeout}
	if pag.Timeout <= 0 {
		pag.Timeout = pagination.DefaultConfig().Timeout
	}
	feedLogger := logging.NewLogger("feed")

	c := &console{
		orderStore:   admin.NewOrderStore(api),
		productStore: admin.NewProductStore(api),
		accountStore: admin.NewAccountStore(api),
		adminID:      adminID,
		export: pagination.BatchConfig{
			MaxConcurrency: cfg.ExportConcurrency,
			PageSize:       cfg.ExportPageSize,
			Timeout:        pag.Timeout,
		},
		redis:       redisClient,
		logger:      logging.NewLogger("console"),
		observerTTL: cfg.ObserverTTL,
		now:         time.Now,
		stop:        make(chan struct{}),
		observers:   make(map[string]*lease),
	}
	if c.observerTTL <= 0 {
		c.observerTTL = 2 * time.Minute
	}

	userStore := admin.NewUserStore(api)
	requestStore := admin.NewRequestStore(api)

	c.orders = feed.New[admin.Order](c.orderStore, c.orderStore, feed.Config{Name: "orders", Pagination: pag}, feedLogger)
	c.products = feed.New[admin.Product](c.productStore, c.productStore, feed.Config{Name: "products", Pagination: pag}, feedLogger)
	c.users = feed.New[admin.User](userStore, userStore, feed.Config{Name: "users", Pagination: pag}, feedLogger)
	c.requests = feed.New[admin.CancelRequest](requestStore, requestStore, feed.Config{Name: "requests", Pagination: pag}, feedLogger)

	c.views = map[string]view{
		"orders":   feedView[admin.Order]{c.orders},
		"products": feedView[admin.Product]{c.products},
		"users":    feedView[admin.User]{c.users},
		"requests": feedView[admin.CancelRequest]{c.requests},
	}
	return c
}

// Start loads page 1 of every screen and starts expiring observers of views
// that stopped reporting.
func (c *console) Start(ctx context.Context) {
	for name, v := range c.views {
		if _, err := v.Start(ctx); err != nil {
			c.logger.Warn().Err(err).Str("collection", name).Msg("Initial load failed")
		}
	}
	go c.sweepObservers(ctx)
}

// Close tears down all feeds and their observers.
func (c *console) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	clear(c.observers)
	c.mu.Unlock()

	for _, v := range c.views {
		v.Close()
	}
}

// observe reports a proximity level for the observer with the given id,
// registering a new observer when id is empty. Every report renews the
// observer's lease.
func (c *console) observe(v view, id string, active bool) (string, bool, error) {
	c.mu.Lock()
	l, ok := c.observers[v.Name()+"/"+id]
	if id == "" {
		l = &lease{observer: v.RegisterProximitySignal()}
		id = uuid.NewString()
		c.observers[v.Name()+"/"+id] = l
		ok = true
	}
	if ok {
		l.seen = c.now()
	}
	c.mu.Unlock()

	if !ok {
		return id, false, errUnknownObserver
	}
	return id, l.observer.Observe(active), nil
}

// detach closes an observer, e.g. when its view was unmounted.
func (c *console) detach(v view, id string) bool {
	key := v.Name() + "/" + id

	c.mu.Lock()
	l, ok := c.observers[key]
	delete(c.observers, key)
	c.mu.Unlock()

	if ok {
		l.observer.Close()
	}
	return ok
}

// expireObservers closes observers whose lease ran out, so a client that
// left without detaching no longer drives page loads.
func (c *console) expireObservers() int {
	var expired []*trigger.Observer
	c.mu.Lock()
	deadline := c.now().Add(-c.observerTTL)
	for key, l := range c.observers {
		if l.seen.Before(deadline) {
			expired = append(expired, l.observer)
			delete(c.observers, key)
		}
	}
	c.mu.Unlock()

	for _, o := range expired {
		o.Close()
	}
	if len(expired) > 0 {
		c.logger.Debug().Int("expired", len(expired)).Msg("Closed idle proximity observers")
	}
	return len(expired)
}

func (c *console) sweepObservers(ctx context.Context) {
	ticker := time.NewTicker(c.observerTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.expireObservers()
		}
	}
}
