package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	tests := []struct {
		name       string
		p          Pagination
		totalPages int
		hasNext    bool
		hasPrev    bool
	}{
		{"first of three", Pagination{Page: 0, Limit: 10, Total: 25}, 3, true, false},
		{"last of three", Pagination{Page: 2, Limit: 10, Total: 25}, 3, false, true},
		{"exact fit", Pagination{Page: 1, Limit: 10, Total: 20}, 2, false, true},
		{"empty", Pagination{Page: 0, Limit: 10, Total: 0}, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.totalPages, tt.p.TotalPages())
			assert.Equal(t, tt.hasNext, tt.p.HasNext())
			assert.Equal(t, tt.hasPrev, tt.p.HasPrev())
		})
	}
}

func TestFiltersActiveValue(t *testing.T) {
	v, ok := LeadFilters{IsActive: "true"}.ActiveValue()
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = LeadFilters{IsActive: "false"}.ActiveValue()
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = LeadFilters{IsActive: "yes"}.ActiveValue()
	assert.False(t, ok)
	_, ok = LeadFilters{}.ActiveValue()
	assert.False(t, ok)
}
