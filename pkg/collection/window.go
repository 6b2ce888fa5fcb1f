package collection

// Window returns the slice of items shown on display page `page` when the
// list is split into pages of perPage items, and the number of display pages.
// Out-of-range pages yield an empty view.
func Window[T any](items []T, page, perPage int) ([]T, int) {
	if perPage <= 0 {
		return items, 1
	}

	total := (len(items) + perPage - 1) / perPage
	if page < 1 || page > total {
		return []T{}, total
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}
