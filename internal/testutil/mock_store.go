// Package testutil provides an in-memory record store server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Collection names used by MockStore.
const (
	Orders   = "orders"
	Products = "products"
	Users    = "users"
	Requests = "requests"
	Admins   = "admins"
)

// Record is a stored record as JSON fields.
type Record map[string]any

// idField is the identity field of each collection.
var idField = map[string]string{
	Orders:   "orderId",
	Products: "id",
	Users:    "id",
	Requests: "order_id",
	Admins:   "id",
}

// failure is an injected error response.
type failure struct {
	status    int
	remaining int
}

// MockStore is a configurable record store server.
type MockStore struct {
	server *httptest.Server
	token  string

	mu       sync.Mutex
	data     map[string][]Record
	failures map[string]*failure
	counts   map[string]int
	headers  []http.Header
}

// NewMockStore starts a store that accepts token as session token.
func NewMockStore(token string) *MockStore {
	m := &MockStore{
		token:    token,
		data:     make(map[string][]Record),
		failures: make(map[string]*failure),
		counts:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /getallorders", m.listOrders)
	mux.HandleFunc("GET /getorderbyid/{id}", m.getOne(Orders, "order"))
	mux.HandleFunc("PATCH /updateorderstatus/{id}", m.patchField(Orders, "status", "status"))
	mux.HandleFunc("PATCH /updatedeliverystatus/{id}", m.patchField(Orders, "delivery_status", "deliveryStatus"))
	mux.HandleFunc("GET /getproducts", m.listAll(Products, "products", false))
	mux.HandleFunc("GET /getproduct/{id}", m.getOne(Products, "product"))
	mux.HandleFunc("POST /addproduct", m.addProduct)
	mux.HandleFunc("PUT /updateproduct/{id}", m.updateProduct)
	mux.HandleFunc("DELETE /deleteproduct/{id}", m.deleteOne(Products))
	mux.HandleFunc("GET /allusers", m.listAll(Users, "users", false))
	mux.HandleFunc("DELETE /deleteuser/{id}", m.deleteOne(Users))
	mux.HandleFunc("GET /getpendingrequests", m.listAll(Requests, "requests", true))
	mux.HandleFunc("PATCH /handlerequest/{id}", m.handleRequest)
	mux.HandleFunc("GET /gettotalorders", m.total(Orders, "totalOrders"))
	mux.HandleFunc("GET /gettotalrequests", m.total(Requests, "totalRequests"))
	mux.HandleFunc("GET /userdetails/{id}", m.userDetails)
	mux.HandleFunc("PUT /updateuser/{id}", m.updateUser)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := Route(r.Method, r.URL.Path)

		m.mu.Lock()
		m.counts[route]++
		m.headers = append(m.headers, r.Header.Clone())
		f := m.failures[route]
		var status int
		if f != nil && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		m.mu.Unlock()

		if !m.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return m
}

// Route returns the counting key of a request, e.g. "PATCH /updateorderstatus".
func Route(method, path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return method + " /" + path
}

// URL returns the server URL.
func (m *MockStore) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockStore) Close() {
	m.server.Close()
}

// Seed replaces the records of a collection.
func (m *MockStore) Seed(collection string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[collection] = append([]Record(nil), records...)
}

// SeedOrders stores n orders with ids 1..n, all pending COD orders.
func (m *MockStore) SeedOrders(n int) {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, Record{
			"orderId":        i,
			"userName":       fmt.Sprintf("Customer %d", i),
			"userEmail":      fmt.Sprintf("customer%d@shop.test", i),
			"payableAmount":  float64(100 * i),
			"paymentMethod":  "COD",
			"status":         "pending",
			"deliveryStatus": "Order Placed",
		})
	}
	m.Seed(Orders, records...)
}

// SeedProducts stores n products with ids 1..n.
func (m *MockStore) SeedProducts(n int) {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, Record{
			"id":         i,
			"name":       fmt.Sprintf("Product %d", i),
			"category":   "general",
			"price":      fmt.Sprintf("%d.99", i),
			"stock":      10 * i,
			"main_image": fmt.Sprintf("https://img.shop.test/%d.jpg", i),
			"image":      []string{},
		})
	}
	m.Seed(Products, records...)
}

// SeedUsers stores n users with ids 1..n.
func (m *MockStore) SeedUsers(n int) {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, Record{
			"id":     i,
			"name":   fmt.Sprintf("User %d", i),
			"email":  fmt.Sprintf("user%d@shop.test", i),
			"status": "active",
		})
	}
	m.Seed(Users, records...)
}

// SeedRequests stores n pending cancel requests for orders 1..n.
func (m *MockStore) SeedRequests(n int) {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, Record{
			"order_id":              i,
			"user_name":             fmt.Sprintf("Customer %d", i),
			"total_amount":          "250.00",
			"payable_amount":        "240.00",
			"payment_method":        "UPI",
			"cancel_request_status": "pending",
		})
	}
	m.Seed(Requests, records...)
}

// SeedAdmin stores the admin account with the given id.
func (m *MockStore) SeedAdmin(id string) {
	m.Seed(Admins, Record{
		"id":      id,
		"name":    "Store Admin",
		"email":   "admin@shop.test",
		"phone":   "9876543210",
		"gender":  "Female",
		"profile": "https://img.shop.test/admin.jpg",
	})
}

// Records returns a copy of a collection.
func (m *MockStore) Records(collection string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.data[collection])
}

// Find returns the record with the given id.
func (m *MockStore) Find(collection, id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(collection, id); i >= 0 {
		return maps.Clone(m.data[collection][i]), true
	}
	return nil, false
}

// FailNext makes the next count requests on route fail with status.
func (m *MockStore) FailNext(route string, status, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[route] = &failure{status: status, remaining: count}
}

// Count returns how many requests hit route.
func (m *MockStore) Count(route string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[route]
}

// LastHeader returns the headers of the most recent request.
func (m *MockStore) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.headers) == 0 {
		return nil
	}
	return m.headers[len(m.headers)-1]
}

func (m *MockStore) authorized(r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+m.token {
		return true
	}
	c, err := r.Cookie("token")
	return err == nil && c.Value == m.token
}

func (m *MockStore) listOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	m.mu.Lock()
	all := m.data[Orders]
	totalPages := int(math.Ceil(float64(len(all)) / float64(limit)))
	start := (page - 1) * limit
	if start >= len(all) {
		m.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No orders found"})
		return
	}
	end := min(start+limit, len(all))
	items := cloneAll(all[start:end])
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"orders": items, "totalPages": totalPages})
}

func (m *MockStore) listAll(collection, key string, notFoundWhenEmpty bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := m.Records(collection)
		if len(records) == 0 && notFoundWhenEmpty {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No pending requests"})
			return
		}
		if records == nil {
			records = []Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{key: records})
	}
}

func (m *MockStore) getOne(collection, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := m.Find(collection, r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{key: rec})
	}
}

func (m *MockStore) patchField(collection, bodyField, recordField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body[bodyField] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing " + bodyField})
			return
		}

		m.mu.Lock()
		i := m.indexLocked(collection, r.PathValue("id"))
		if i >= 0 {
			m.data[collection][i][recordField] = body[bodyField]
		}
		m.mu.Unlock()

		if i < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	}
}

func (m *MockStore) updateProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	m.mu.Lock()
	i := m.indexLocked(Products, r.PathValue("id"))
	if i >= 0 {
		for _, field := range []string{"name", "description", "category", "price", "stock"} {
			if v := r.FormValue(field); v != "" {
				m.data[Products][i][field] = v
			}
		}
	}
	m.mu.Unlock()

	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated"})
}

func (m *MockStore) addProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	stock, err := strconv.Atoi(r.FormValue("stock"))
	if err != nil || r.FormValue("name") == "" || r.FormValue("price") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "All fields are required"})
		return
	}

	m.mu.Lock()
	next := 1
	for _, rec := range m.data[Products] {
		if id, err := strconv.Atoi(fmt.Sprint(rec["id"])); err == nil && id >= next {
			next = id + 1
		}
	}
	m.data[Products] = append(m.data[Products], Record{
		"id":          next,
		"name":        r.FormValue("name"),
		"description": r.FormValue("description"),
		"category":    r.FormValue("category"),
		"price":       r.FormValue("price"),
		"stock":       stock,
		"image":       []string{},
	})
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product added", "productId": next})
}

func (m *MockStore) total(collection, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{key: len(m.Records(collection))})
	}
}

func (m *MockStore) userDetails(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.Find(Admins, r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (m *MockStore) updateUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["name"] == "" || body["email"] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name and email are required"})
		return
	}

	m.mu.Lock()
	i := m.indexLocked(Admins, r.PathValue("id"))
	if i >= 0 {
		for _, field := range []string{"name", "email", "phone", "gender"} {
			m.data[Admins][i][field] = body[field]
		}
	}
	m.mu.Unlock()

	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

func (m *MockStore) deleteOne(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.remove(collection, r.PathValue("id")) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}

func (m *MockStore) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (body.Action != "approve" && body.Action != "reject") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid action"})
		return
	}
	if !m.remove(Requests, r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Request not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request " + body.Action + "d"})
}

func (m *MockStore) remove(collection, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(collection, id)
	if i < 0 {
		return false
	}
	records := m.data[collection]
	m.data[collection] = append(records[:i:i], records[i+1:]...)
	return true
}

func (m *MockStore) indexLocked(collection, id string) int {
	field := idField[collection]
	for i, rec := range m.data[collection] {
		if fmt.Sprint(rec[field]) == id {
			return i
		}
	}
	return -1
}

func cloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = maps.Clone(rec)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
