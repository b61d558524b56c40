package util

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Calculate turns a 1-based page and a page size into an offset and limit.
// Out-of-range sizes fall back to DefaultPageSize.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

// Page returns the slice of items for page/size along with the total.
func Page[T any](items []T, page, size int) ([]T, int) {
	from, limit := Calculate(page, size)
	total := len(items)
	if from >= total {
		return []T{}, total
	}
	to := from + limit
	if to > total {
		to = total
	}
	return items[from:to], total
}
