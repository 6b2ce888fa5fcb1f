package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/admin"
	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/feed"
	"github.com/Sternrassler/shop-admin-client/pkg/metrics"
	"github.com/Sternrassler/shop-admin-client/pkg/mutation"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	"github.com/google/uuid"
)

// Routes returns the console's HTTP handler.
func (c *console) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", c.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/stats", c.stats)
	mux.HandleFunc("GET /api/profile", c.profile)
	mux.HandleFunc("PUT /api/profile", c.updateProfile)

	mux.HandleFunc("GET /api/orders/export", c.exportOrders)
	mux.HandleFunc("GET /api/products/categories", c.categories)
	mux.HandleFunc("GET /api/orders/{id}", c.orderDetail)
	mux.HandleFunc("GET /api/products/{id}", c.productDetail)

	mux.HandleFunc("GET /api/{collection}", c.withView(c.snapshot))
	mux.HandleFunc("POST /api/{collection}/load-more", c.withView(c.loadMore))
	mux.HandleFunc("POST /api/{collection}/proximity", c.withView(c.proximity))
	mux.HandleFunc("DELETE /api/{collection}/proximity/{observer}", c.withView(c.closeObserver))

	mux.HandleFunc("PATCH /api/orders/{id}/status", c.setOrderStatus)
	mux.HandleFunc("PATCH /api/orders/{id}/delivery-status", c.setDeliveryStatus)
	mux.HandleFunc("POST /api/products", c.createProduct)
	mux.HandleFunc("PUT /api/products/{id}", c.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", c.deleteProduct)
	mux.HandleFunc("DELETE /api/users/{id}", c.deleteUser)
	mux.HandleFunc("PATCH /api/requests/{id}", c.decideRequest)

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether Redis, when configured, is reachable.
func (c *console) readyHandler(w http.ResponseWriter, r *http.Request) {
	if c.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.redis.Ping(ctx).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("Redis not reachable")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (c *console) withView(h func(http.ResponseWriter, *http.Request, view)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := c.views[r.PathValue("collection")]
		if !ok {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown collection " + r.PathValue("collection")})
			return
		}
		h(w, r, v)
	}
}

// snapshot serves the loaded records. With ?page=N&per_page=M the records
// are windowed for display.
func (c *console) snapshot(w http.ResponseWriter, r *http.Request, v view) {
	page, perPage := 1, 0
	if s := r.URL.Query().Get("per_page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "per_page must be a positive integer"})
			return
		}
		perPage = n
	}
	if s := r.URL.Query().Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "page must be a positive integer"})
			return
		}
		page = n
	}
	writeJSON(w, http.StatusOK, v.page(page, perPage))
}

type loadResponse struct {
	Outcome pagination.Outcome `json:"outcome"`
	Page    int                `json:"page"`
	Added   int                `json:"added"`
}

func (c *console) loadMore(w http.ResponseWriter, r *http.Request, v view) {
	result, err := v.LoadMore(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Outcome: result.Outcome, Page: result.Page, Added: result.Added})
}

type proximityRequest struct {
	ObserverID string `json:"observer_id"`
	Active     bool   `json:"active"`
}

type proximityResponse struct {
	ObserverID string `json:"observer_id"`
	Fired      bool   `json:"fired"`
}

func (c *console) proximity(w http.ResponseWriter, r *http.Request, v view) {
	var req proximityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, fired, err := c.observe(v, req.ObserverID, req.Active)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, proximityResponse{ObserverID: id, Fired: fired})
}

func (c *console) closeObserver(w http.ResponseWriter, r *http.Request, v view) {
	if !c.detach(v, r.PathValue("observer")) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errUnknownObserver.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *console) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.accountStore.Stats(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *console) profile(w http.ResponseWriter, r *http.Request) {
	p, err := c.accountStore.Profile(r.Context(), c.adminID)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *console) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body admin.ProfileUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := c.accountStore.UpdateProfile(r.Context(), c.adminID, body)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *console) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := c.productStore.Categories(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (c *console) orderDetail(w http.ResponseWriter, r *http.Request) {
	order, err := c.orderStore.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (c *console) productDetail(w http.ResponseWriter, r *http.Request) {
	product, err := c.productStore.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// exportOrders fetches every order page in parallel, independent of the
// orders feed.
func (c *console) exportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := pagination.NewBatchFetcher[admin.Order](c.orderStore, c.export).FetchAll(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}

func (c *console) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	status, err := admin.ParseOrderStatus(body.Status)
	if err != nil {
		c.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if o, ok := c.orders.Get(id); ok && !o.StatusEditable() {
		c.writeError(w, fmt.Errorf("%w: status of %s order %s is set by the payment provider", admin.ErrInvalidValue, o.PaymentMethod, id))
		return
	}
	c.writeOutcome(w)(c.orders.DispatchMutation(r.Context(), id, admin.SetOrderStatus{Status: status}))
}

func (c *console) setDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeliveryStatus string `json:"delivery_status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	status, err := admin.ParseDeliveryStatus(body.DeliveryStatus)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeOutcome(w)(c.orders.DispatchMutation(r.Context(), r.PathValue("id"), admin.SetDeliveryStatus{Status: status}))
}

type productUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
}

func (c *console) updateProduct(w http.ResponseWriter, r *http.Request) {
	var body productUpdateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	update := admin.ProductUpdate(body)
	if err := update.Validate(); err != nil {
		c.writeError(w, err)
		return
	}
	c.writeOutcome(w)(c.products.DispatchMutation(r.Context(), r.PathValue("id"), update))
}

// createProductRequest carries an optional draft id. A form that resubmits
// under the same draft id is rejected while the first submit is in flight.
type createProductRequest struct {
	DraftID string `json:"draft_id"`
	admin.CreateProduct
}

func (c *console) createProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		c.writeError(w, err)
		return
	}
	if body.DraftID == "" {
		body.DraftID = uuid.NewString()
	}

	outcome, err := c.products.DispatchMutation(r.Context(), body.DraftID, body.CreateProduct)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (c *console) deleteProduct(w http.ResponseWriter, r *http.Request) {
	c.writeOutcome(w)(c.products.DispatchMutation(r.Context(), r.PathValue("id"), admin.DeleteProduct{}))
}

func (c *console) deleteUser(w http.ResponseWriter, r *http.Request) {
	c.writeOutcome(w)(c.users.DispatchMutation(r.Context(), r.PathValue("id"), admin.DeleteUser{}))
}

func (c *console) decideRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	decision, err := admin.ParseDecision(body.Action)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeOutcome(w)(c.requests.DispatchMutation(r.Context(), r.PathValue("id"), admin.DecideCancelRequest{Decision: decision}))
}

func (c *console) writeOutcome(w http.ResponseWriter) func(mutation.Outcome, error) {
	return func(outcome mutation.Outcome, err error) {
		if err != nil {
			c.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error to the console's HTTP status.
func statusFor(err error) int {
	var mErr *mutation.MutationError
	switch {
	case errors.Is(err, mutation.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, admin.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mutation.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &mErr):
		return http.StatusBadGateway
	case client.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (c *console) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.logger.Warn().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeBody decodes a JSON request body, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
