// Package pagination loads paged record-store collections.
//
// Loader drives one collection.State: each LoadNext call claims the state's
// single fetch slot, requests the current page and appends it in server
// order. An empty page or ErrEndOfCollection (the store's 404) ends the
// collection; any other failure leaves the state untouched so the same page
// is retried on the next trigger.
//
// Example usage:
//
//	state := collection.New[admin.Order]()
//	loader := pagination.NewLoader("orders", state, store, pagination.DefaultConfig(), logger)
//	result, err := loader.LoadNext(ctx)
//
// BatchFetcher is the stateless counterpart used for exports: it reads the
// page count from page 1 and fetches the remaining pages with a small
// worker pool, returning the records in page order.
package pagination
