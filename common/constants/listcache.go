package constants

import "time"

const (
	QueryParam       = "q"
	OffsetParam      = "offset"
	LimitParam       = "limit"
	SortParam        = "sort"
	FilterParam      = "filter"
	SortASC          = "asc"
	SortDesc         = "desc"
	DefaultIDField   = "id"
	DefaultPageSize  = 10
	DefaultDebounce  = 300 * time.Millisecond
	APIPrefix        = "/api/v1/collections"
	AuthHeader       = "Authorization"
	BearerPrefix     = "Bearer "
)
