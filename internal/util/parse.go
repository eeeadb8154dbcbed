package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is the limit/offset window of a list request
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Meta is the pagination block returned with list responses
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParsePagination reads ?limit and ?offset, clamping to sane bounds
func ParsePagination(c *gin.Context) Pagination {
	limit := ParseInt(c.Query("limit"), DefaultPageLimit)
	offset := ParseInt(c.Query("offset"), 0)

	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// Meta builds the response meta block for total results
func (p Pagination) Meta(total int64) Meta {
	return Meta{Total: total, Limit: p.Limit, Offset: p.Offset}
}
