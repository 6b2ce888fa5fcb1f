package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/shop-admin-client/pkg/mutation"
)

// API is the subset of the store client used by the admin stores.
// *client.Client implements it.
type API interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	SendJSON(ctx context.Context, method, path string, body, out any) error
	SendForm(ctx context.Context, method, path string, fields map[string]string, out any) error
	Delete(ctx context.Context, path string) error
}

// storeAction is an action that knows its own store request.
type storeAction interface {
	send(ctx context.Context, api API, id string) error
}

// dispatch sends action when it is one of this package's actions.
func dispatch(ctx context.Context, api API, id string, action any) error {
	sa, ok := action.(storeAction)
	if !ok {
		return fmt.Errorf("%w: unsupported action %T", mutation.ErrInvalidRequest, action)
	}
	return sa.send(ctx, api, id)
}

// SetOrderStatus changes the payment status of an order. The full effect is
// known locally, so the row is patched in place.
type SetOrderStatus struct {
	Status OrderStatus
}

func (SetOrderStatus) Kind() string                      { return "order_status" }
func (SetOrderStatus) Consistency() mutation.Consistency { return mutation.OptimisticPatch }
func (a SetOrderStatus) Apply(o *Order)                  { o.Status = a.Status }

func (a SetOrderStatus) send(ctx context.Context, api API, id string) error {
	body := map[string]string{"status": string(a.Status)}
	return api.SendJSON(ctx, http.MethodPatch, "/updateorderstatus/"+url.PathEscape(id), body, nil)
}

// SetDeliveryStatus moves an order to another fulfilment stage. The store
// may reorder or refilter the list, so the collection is re-read.
type SetDeliveryStatus struct {
	Status DeliveryStatus
}

func (SetDeliveryStatus) Kind() string                      { return "delivery_status" }
func (SetDeliveryStatus) Consistency() mutation.Consistency { return mutation.FullResync }
func (SetDeliveryStatus) Apply(*Order)                      {}

func (a SetDeliveryStatus) send(ctx context.Context, api API, id string) error {
	body := map[string]string{"delivery_status": string(a.Status)}
	return api.SendJSON(ctx, http.MethodPatch, "/updatedeliverystatus/"+url.PathEscape(id), body, nil)
}

// ProductUpdate edits the catalogue fields of a product. Nil fields are not
// sent.
type ProductUpdate struct {
	Name        *string `validate:"omitnil,notblank"`
	Description *string
	Category    *string
	Price       *float64 `validate:"omitnil,gte=0"`
	Stock       *int     `validate:"omitnil,gte=0"`
}

func (ProductUpdate) Kind() string                      { return "product_update" }
func (ProductUpdate) Consistency() mutation.Consistency { return mutation.FullResync }
func (ProductUpdate) Apply(*Product)                    {}

// Fields returns the multipart form fields of the update.
func (u ProductUpdate) Fields() map[string]string {
	fields := make(map[string]string)
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Category != nil {
		fields["category"] = *u.Category
	}
	if u.Price != nil {
		fields["price"] = strconv.FormatFloat(*u.Price, 'f', -1, 64)
	}
	if u.Stock != nil {
		fields["stock"] = strconv.Itoa(*u.Stock)
	}
	return fields
}

// Validate rejects empty updates, blank names and negative numbers.
func (u ProductUpdate) Validate() error {
	if len(u.Fields()) == 0 {
		return fmt.Errorf("%w: empty product update", ErrInvalidValue)
	}
	return checkStruct(u)
}

func (u ProductUpdate) send(ctx context.Context, api API, id string) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return api.SendForm(ctx, http.MethodPut, "/updateproduct/"+url.PathEscape(id), u.Fields(), nil)
}

// CreateProduct adds a product to the catalogue. The store assigns the id,
// so the action is dispatched under a draft id chosen by the caller; a
// second submit of the same draft is rejected while the first is in flight.
// The new product may land anywhere in the store's order, so the list is
// re-read.
type CreateProduct struct {
	Name        string  `json:"name" validate:"notblank"`
	Description string  `json:"description" validate:"notblank"`
	Category    string  `json:"category" validate:"notblank"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

func (CreateProduct) Kind() string                      { return "product_create" }
func (CreateProduct) Consistency() mutation.Consistency { return mutation.FullResync }
func (CreateProduct) Apply(*Product)                    {}

// Fields returns the multipart form fields of the new product.
func (c CreateProduct) Fields() map[string]string {
	return map[string]string{
		"name":        c.Name,
		"description": c.Description,
		"category":    strings.TrimSpace(c.Category),
		"price":       strconv.FormatFloat(c.Price, 'f', -1, 64),
		"stock":       strconv.Itoa(c.Stock),
	}
}

// Validate requires every text field and non-negative numbers.
func (c CreateProduct) Validate() error {
	return checkStruct(c)
}

func (c CreateProduct) send(ctx context.Context, api API, _ string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return api.SendForm(ctx, http.MethodPost, "/addproduct", c.Fields(), nil)
}

// DeleteProduct removes a product from the catalogue.
type DeleteProduct struct{}

func (DeleteProduct) Kind() string                      { return "product_delete" }
func (DeleteProduct) Consistency() mutation.Consistency { return mutation.FullResync }
func (DeleteProduct) Apply(*Product)                    {}

func (DeleteProduct) send(ctx context.Context, api API, id string) error {
	return api.Delete(ctx, "/deleteproduct/"+url.PathEscape(id))
}

// DeleteUser removes a customer account.
type DeleteUser struct{}

func (DeleteUser) Kind() string                      { return "user_delete" }
func (DeleteUser) Consistency() mutation.Consistency { return mutation.FullResync }
func (DeleteUser) Apply(*User)                       {}

func (DeleteUser) send(ctx context.Context, api API, id string) error {
	return api.Delete(ctx, "/deleteuser/"+url.PathEscape(id))
}

// DecideCancelRequest approves or rejects a cancel request. Either way the
// request leaves the pending list.
type DecideCancelRequest struct {
	Decision Decision
}

func (DecideCancelRequest) Kind() string                      { return "cancel_request" }
func (DecideCancelRequest) Consistency() mutation.Consistency { return mutation.FullResync }
func (DecideCancelRequest) Apply(*CancelRequest)              {}

func (a DecideCancelRequest) send(ctx context.Context, api API, id string) error {
	body := map[string]string{"action": string(a.Decision)}
	return api.SendJSON(ctx, http.MethodPatch, "/handlerequest/"+url.PathEscape(id), body, nil)
}
