package tracker

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidPagination is returned for a negative or non-integer offset or limit.
var ErrInvalidPagination = errors.New("limit and offset must be non-negative integers")

// Page selects the half-open range [Offset, Offset+Limit) of a list.
// A negative Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// All is the page covering a whole list.
var All = Page{Offset: 0, Limit: -1}

// ParsePage reads offset and limit query values. Empty values take their
// defaults: offset 0 and no limit.
func ParsePage(offsetRaw, limitRaw string) (Page, error) {
	p := All
	var err error
	if p.Offset, err = parseCount(offsetRaw, 0); err != nil {
		return Page{}, err
	}
	if p.Limit, err = parseCount(limitRaw, -1); err != nil {
		return Page{}, err
	}
	return p, nil
}

func parseCount(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidPagination
	}
	return n, nil
}

// Bounds clips the page to a list of length n.
func (p Page) Bounds(n int) (lo, hi int) {
	lo = min(max(p.Offset, 0), n)
	hi = n
	if p.Limit >= 0 && p.Limit < n-lo {
		hi = lo + p.Limit
	}
	return lo, hi
}
