// internal/utils/pagination_test.go
package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsForQuery(t *testing.T, query string) PaginationParams {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/sessions"+query, nil)
	return GetPaginationParams(c)
}

func TestGetPaginationParamsDefaults(t *testing.T) {
	params := paramsForQuery(t, "")
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, "created_at", params.Sort)
	assert.Equal(t, "desc", params.Order)
	assert.Empty(t, params.Search)
}

func TestGetPaginationParamsClamping(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		limit int
		order string
	}{
		{"negative page", "?page=-3", 1, 20, "desc"},
		{"zero page", "?page=0", 1, 20, "desc"},
		{"limit above cap", "?limit=500", 1, 20, "desc"},
		{"zero limit", "?limit=0", 1, 20, "desc"},
		{"unknown order", "?order=sideways", 1, 20, "desc"},
		{"valid values pass through", "?page=3&limit=50&order=asc", 3, 50, "asc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := paramsForQuery(t, tt.query)
			assert.Equal(t, tt.page, params.Page)
			assert.Equal(t, tt.limit, params.Limit)
			assert.Equal(t, tt.order, params.Order)
		})
	}
}

func TestGetPaginationParamsFilters(t *testing.T) {
	params := paramsForQuery(t, "?search=distributed&state=active&status=pending")
	assert.Equal(t, "distributed", params.Search)
	assert.Equal(t, "active", params.State)
	assert.Equal(t, "pending", params.Status)
}

func TestCreatePaginationResult(t *testing.T) {
	params := PaginationParams{Page: 2, Limit: 20}
	result := CreatePaginationResult([]string{"a", "b"}, 41, params)

	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 20, result.Limit)
	assert.Equal(t, int64(41), result.Total)
	assert.Equal(t, 3, result.TotalPages)
}

func TestSetPaginationHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetPaginationHeaders(c, PaginationResult{Page: 2, Limit: 20, Total: 41, TotalPages: 3})

	assert.Equal(t, "41", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "2", w.Header().Get("X-Page"))
	assert.Equal(t, "20", w.Header().Get("X-Per-Page"))
	assert.Equal(t, "3", w.Header().Get("X-Total-Pages"))
}
