package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCalculateOffsetLimit(t *testing.T) {
	tests := []struct {
		page, size            int
		wantOffset, wantLimit int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 0, 0, DefaultPageSize},
		{2, MaxPageSize + 1, DefaultPageSize, DefaultPageSize},
	}
	for _, tt := range tests {
		offset, limit := CalculateOffsetLimit(tt.page, tt.size)
		assert.Equal(t, tt.wantOffset, offset)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestCalculateSliceIndices(t *testing.T) {
	start, end := CalculateSliceIndices(1, 2, 5)
	assert.Equal(t, []int{0, 2}, []int{start, end})
	start, end = CalculateSliceIndices(3, 2, 5)
	assert.Equal(t, []int{4, 5}, []int{start, end})
	start, end = CalculateSliceIndices(4, 2, 5)
	assert.Equal(t, []int{5, 5}, []int{start, end})
}

func TestParsePaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
	}{
		{"explicit", "?page=2&size=5", 2, 5},
		{"absent", "", DefaultPage, DefaultPageSize},
		{"invalid", "?page=-1&size=abc", DefaultPage, DefaultPageSize},
		{"oversized", "?page=abc&size=500", DefaultPage, DefaultPageSize},
		{"zero size", "?page=4&size=0", 4, DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

			page, size := ParsePaginationParams(c)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}
