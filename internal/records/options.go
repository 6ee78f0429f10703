package records

import (
	"fmt"
	"strings"
)

const (
	sortAscending  = "asc"
	sortDescending = "desc"
)

// ListOptions narrows a scoped listing. Zero values mean "no constraint".
type ListOptions struct {
	Select          []string
	Filters         map[string]any
	IncludeArchived bool
	Sort            string
	Page            int
	Limit           int
}

// SortOrder is a parsed "field:asc|desc" expression.
type SortOrder struct {
	Field      string
	Descending bool
}

// ParseSort parses "field", "field:asc" or "field:desc".
func ParseSort(expression string) (SortOrder, error) {
	field, direction, _ := strings.Cut(strings.TrimSpace(expression), ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return SortOrder{}, fmt.Errorf("%w: sort field required", ErrInvalidOptions)
	}
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", sortAscending:
		return SortOrder{Field: field}, nil
	case sortDescending:
		return SortOrder{Field: field, Descending: true}, nil
	default:
		return SortOrder{}, fmt.Errorf("%w: sort direction %q", ErrInvalidOptions, direction)
	}
}

// PageRange returns the inclusive row range addressed by a 1-indexed page.
func PageRange(page, limit int) (int, int) {
	from := (page - 1) * limit
	return from, from + limit - 1
}
