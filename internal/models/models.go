package models

// SortOrder is the direction of a sorted listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort selects the listing order. Field must be in the entity's whitelist.
type Sort struct {
	Field string    `json:"field" form:"sort"`
	Order SortOrder `json:"order" form:"order" validate:"omitempty,oneof=asc desc"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination selects one page of a listing. Zero values mean "use the default".
type Pagination struct {
	Page  int `json:"page" form:"page" validate:"gte=1"`
	Limit int `json:"limit" form:"limit" validate:"gte=1,lte=100"`
}

// WithDefaults fills unset page and limit.
func (p Pagination) WithDefaults() Pagination {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// NewPage builds a page and derives the page count from total and limit.
func NewPage[T any](items []T, total int, p Pagination) Page[T] {
	p = p.WithDefaults()
	if items == nil {
		items = []T{}
	}
	out := Page[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
	if p.Limit > 0 {
		out.Pages = (total + p.Limit - 1) / p.Limit
	}
	return out
}

// SortFields lists the sortable fields per entity listing.
var SortFields = struct {
	Projects []string
	Boards   []string
	Tasks    []string
	Users    []string
}{
	Projects: []string{"name", "created_at", "updated_at"},
	Boards:   []string{"name", "position", "created_at", "updated_at"},
	Tasks:    []string{"title", "position", "status", "priority", "due_date", "created_at", "updated_at"},
	Users:    []string{"name", "email", "created_at"},
}
