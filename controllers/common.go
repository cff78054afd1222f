package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tidyapp/tidy/middleware"
)

// getUserID extracts the authenticated user id placed in context by the auth middleware.
func getUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// parsePagination normalizes page / page_size query values.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page, pageSize := 1, 20
	if v := strings.TrimSpace(pageStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(sizeStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

// parseUintParam parses a numeric path parameter.
func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
