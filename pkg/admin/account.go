package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// Stats are the dashboard counters.
type Stats struct {
	Products int `json:"total_products"`
	Users    int `json:"total_users"`
	Orders   int `json:"total_orders"`
	Requests int `json:"total_requests"`
}

// Profile is the signed-in admin's account.
type Profile struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Gender string `json:"gender"`
	Image  string `json:"profile"`
}

// ProfileUpdate replaces the admin's contact details.
type ProfileUpdate struct {
	Name   string `json:"name" validate:"notblank"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"omitempty,min=7,max=20"`
	Gender string `json:"gender" validate:"omitempty,oneof=Male Female"`
}

// Validate checks the update before it is sent.
func (u ProfileUpdate) Validate() error {
	return checkStruct(u)
}

// AccountStore reads the dashboard counters and the admin profile.
type AccountStore struct {
	api API
}

// NewAccountStore creates an account store.
func NewAccountStore(api API) *AccountStore {
	return &AccountStore{api: api}
}

// Stats fetches the four dashboard counters concurrently. Products and
// users are counted from their lists; the store reports the order and
// request totals directly.
func (s *AccountStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.countList(ctx, "/getproducts", "products")
		stats.Products = n
		return err
	})
	g.Go(func() error {
		n, err := s.countList(ctx, "/allusers", "users")
		stats.Users = n
		return err
	})
	g.Go(func() error {
		var resp struct {
			TotalOrders int `json:"totalOrders"`
		}
		if err := s.api.GetJSON(ctx, "/gettotalorders", nil, &resp); err != nil {
			return fmt.Errorf("total orders: %w", err)
		}
		stats.Orders = resp.TotalOrders
		return nil
	})
	g.Go(func() error {
		var resp struct {
			TotalRequests int `json:"totalRequests"`
		}
		if err := s.api.GetJSON(ctx, "/gettotalrequests", nil, &resp); err != nil {
			return fmt.Errorf("total requests: %w", err)
		}
		stats.Requests = resp.TotalRequests
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *AccountStore) countList(ctx context.Context, path, key string) (int, error) {
	var resp map[string][]json.RawMessage
	if err := s.api.GetJSON(ctx, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("count %s: %w", key, err)
	}
	return len(resp[key]), nil
}

// Profile fetches the account of the admin with the given id.
func (s *AccountStore) Profile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.api.GetJSON(ctx, "/userdetails/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProfile validates and sends u, then returns the stored profile.
func (s *AccountStore) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*Profile, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.api.SendJSON(ctx, http.MethodPut, "/updateuser/"+url.PathEscape(id), u, nil); err != nil {
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}
	return s.Profile(ctx, id)
}
