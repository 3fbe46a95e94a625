package types

import "time"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage bounds Page so that Offset cannot overflow.
	MaxPage = 1_000_000
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListOptions are the paging, search and sorting parameters shared by every
// list operation.
type ListOptions struct {
	Page           int
	Limit          int
	Search         string
	SortBy         string
	SortOrder      SortOrder
	IncludeDeleted bool
}

// Normalize fills defaults and clamps the page to MaxPage and the limit to
// maxLimit.
func (o *ListOptions) Normalize(defaultLimit, maxLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Page > MaxPage {
		o.Page = MaxPage
	}
	if o.Limit < 1 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.SortOrder != SortDesc {
		o.SortOrder = SortAsc
	}
}

func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

type ServerFilter struct {
	ListOptions
	RDBMSType RDBMSType
	Status    Status
}

type DatabaseFilter struct {
	ListOptions
	ServerID string
	Status   Status
}

type TableFilter struct {
	ListOptions
	DatabaseID string
	TableType  TableType
	Status     Status
}

type ElementFilter struct {
	ListOptions
	TableID      string
	IsPrimaryKey *bool
	IsForeignKey *bool
}

type AbbreviationFilter struct {
	ListOptions
	Source       string
	Category     string
	IsPrimeClass *bool
}

type UserFilter struct {
	ListOptions
	Role     Role
	IsActive *bool
}

type AuditFilter struct {
	ListOptions
	EntityType EntityType
	EntityID   string
	UserID     string
	Action     AuditAction
	From       *time.Time
	To         *time.Time
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Stats are the basic per-entity counters served to the dashboard.
type Stats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Deleted  int            `json:"deleted"`
	ByStatus map[string]int `json:"byStatus,omitempty"`
	ByType   map[string]int `json:"byType,omitempty"`
}

// SearchResults groups a global search across every catalogued entity.
type SearchResults struct {
	Query         string         `json:"query"`
	Servers       []Server       `json:"servers"`
	Databases     []Database     `json:"databases"`
	Tables        []Table        `json:"tables"`
	Elements      []Element      `json:"elements"`
	Abbreviations []Abbreviation `json:"abbreviations"`
}
