package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// Params holds pagination parameters extracted from a request. Set is false
// when the request named neither limit nor offset, in which case list
// endpoints return the full collection.
type Params struct {
	Limit  int
	Offset int
	Set    bool
}

// FromContext extracts limit and offset query parameters from the echo context.
func FromContext(c echo.Context) Params {
	rawLimit, rawOffset := c.QueryParam("limit"), c.QueryParam("offset")
	if rawLimit == "" && rawOffset == "" {
		return Params{}
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, _ := strconv.Atoi(rawOffset)
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset, Set: true}
}

// Apply returns the page of items selected by p, or items unchanged when
// pagination was not requested.
func Apply[T any](p Params, items []T) []T {
	if !p.Set {
		return items
	}
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: limit > 0 && offset+limit < total,
	}
}
