package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const MaxPageSize = 50

// ParsePagination reads page and limit query parameters, falling back to
// page 1 and defaultLimit and capping the limit at MaxPageSize.
func ParsePagination(c *gin.Context, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}
