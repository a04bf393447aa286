package catalog

type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns page (1-based) of items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, pageSize int) *OffsetPage[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	total := len(items)
	offset := (page - 1) * pageSize
	end := min(offset+pageSize, total)

	pageItems := []T{}
	if offset < total {
		pageItems = items[offset:end]
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage[T]{
		Items:      pageItems,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
