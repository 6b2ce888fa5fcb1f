package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/mutation"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	mapset "github.com/deckarep/golang-set/v2"
)

// OrderStore reads the paged order list and dispatches order actions.
type OrderStore struct {
	api API
}

// NewOrderStore creates an order store.
func NewOrderStore(api API) *OrderStore {
	return &OrderStore{api: api}
}

type orderListResponse struct {
	Orders     []Order `json:"orders"`
	TotalPages int     `json:"totalPages"`
}

// FetchPage fetches one page of orders. A 404 from the store marks the end
// of the list.
func (s *OrderStore) FetchPage(ctx context.Context, page, pageSize int) (collection.Page[Order], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(pageSize))

	var resp orderListResponse
	if err := s.api.GetJSON(ctx, "/getallorders", query, &resp); err != nil {
		if client.IsNotFound(err) {
			return collection.Page[Order]{Number: page}, pagination.ErrEndOfCollection
		}
		return collection.Page[Order]{}, err
	}

	hasMore := len(resp.Orders) > 0
	if resp.TotalPages > 0 {
		hasMore = page < resp.TotalPages
	}
	return collection.Page[Order]{
		Items:      resp.Orders,
		Number:     page,
		HasMore:    hasMore,
		TotalPages: resp.TotalPages,
	}, nil
}

// Dispatch sends an order action.
func (s *OrderStore) Dispatch(ctx context.Context, id string, action mutation.Action[Order]) error {
	return dispatch(ctx, s.api, id, action)
}

// GetOrder fetches the full view of one order.
func (s *OrderStore) GetOrder(ctx context.Context, id string) (*OrderDetail, error) {
	var resp struct {
		Order OrderDetail `json:"order"`
	}
	if err := s.api.GetJSON(ctx, "/getorderbyid/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &resp.Order, nil
}

// listStore reads a list the store returns in one response. Page 1 holds
// every record, later pages are empty.
type listStore[T any] struct {
	api  API
	path string
	key  string
}

func (s listStore[T]) fetchPage(ctx context.Context, page int) (collection.Page[T], error) {
	if page > 1 {
		return collection.Page[T]{Number: page}, nil
	}

	var resp map[string]json.RawMessage
	if err := s.api.GetJSON(ctx, s.path, nil, &resp); err != nil {
		if client.IsNotFound(err) {
			return collection.Page[T]{Number: page}, pagination.ErrEndOfCollection
		}
		return collection.Page[T]{}, err
	}

	var items []T
	if raw, ok := resp[s.key]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return collection.Page[T]{}, fmt.Errorf("decode %s: %w", s.key, err)
		}
	}
	return collection.Page[T]{Items: items, Number: 1, HasMore: false, TotalPages: 1}, nil
}

// ProductStore reads the product catalogue and dispatches product actions.
type ProductStore struct {
	list listStore[Product]
}

// NewProductStore creates a product store.
func NewProductStore(api API) *ProductStore {
	return &ProductStore{list: listStore[Product]{api: api, path: "/getproducts", key: "products"}}
}

// FetchPage returns the whole catalogue as page 1.
func (s *ProductStore) FetchPage(ctx context.Context, page, _ int) (collection.Page[Product], error) {
	return s.list.fetchPage(ctx, page)
}

// Dispatch sends a product action.
func (s *ProductStore) Dispatch(ctx context.Context, id string, action mutation.Action[Product]) error {
	return dispatch(ctx, s.list.api, id, action)
}

// GetProduct fetches one product, e.g. to fill the edit form.
func (s *ProductStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	if err := s.list.api.GetJSON(ctx, "/getproduct/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &resp.Product, nil
}

// Categories returns the distinct categories of the catalogue in the order
// they first appear, e.g. for the category picker of the product form.
func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	page, err := s.list.fetchPage(ctx, 1)
	if err != nil && !errors.Is(err, pagination.ErrEndOfCollection) {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	categories := []string{}
	for _, p := range page.Items {
		c := strings.TrimSpace(p.Category)
		if c == "" || !seen.Add(c) {
			continue
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// UserStore reads the customer list and dispatches user actions.
type UserStore struct {
	list listStore[User]
}

// NewUserStore creates a user store.
func NewUserStore(api API) *UserStore {
	return &UserStore{list: listStore[User]{api: api, path: "/allusers", key: "users"}}
}

// FetchPage returns every user as page 1.
func (s *UserStore) FetchPage(ctx context.Context, page, _ int) (collection.Page[User], error) {
	return s.list.fetchPage(ctx, page)
}

// Dispatch sends a user action.
func (s *UserStore) Dispatch(ctx context.Context, id string, action mutation.Action[User]) error {
	return dispatch(ctx, s.list.api, id, action)
}

// RequestStore reads pending cancel requests and dispatches decisions.
// The store answers 404 when nothing is pending.
type RequestStore struct {
	list listStore[CancelRequest]
}

// NewRequestStore creates a cancel request store.
func NewRequestStore(api API) *RequestStore {
	return &RequestStore{list: listStore[CancelRequest]{api: api, path: "/getpendingrequests", key: "requests"}}
}

// FetchPage returns every pending request as page 1.
func (s *RequestStore) FetchPage(ctx context.Context, page, _ int) (collection.Page[CancelRequest], error) {
	return s.list.fetchPage(ctx, page)
}

// Dispatch sends a cancel request decision.
func (s *RequestStore) Dispatch(ctx context.Context, id string, action mutation.Action[CancelRequest]) error {
	return dispatch(ctx, s.list.api, id, action)
}
