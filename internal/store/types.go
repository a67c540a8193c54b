package store

// ListFilter narrows and paginates an entry listing.
type ListFilter struct {
	Status   string
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (f ListFilter) normalize() (page, pageSize int) {
	page = f.Page
	if page < 1 {
		page = 1
	}
	pageSize = f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// Pagination describes one page of a listing response.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}
