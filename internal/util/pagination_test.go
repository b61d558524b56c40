package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, size  int
		from, limit int
	}{
		{1, 20, 0, 20},
		{3, 20, 40, 20},
		{0, 5, 0, 5},
		{-2, 0, 0, DefaultPageSize},
		{2, 500, DefaultPageSize, DefaultPageSize},
	}
	for _, tt := range tests {
		from, limit := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.from, from)
		assert.Equal(t, tt.limit, limit)
	}
}

func TestPage(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}

	got, total := Page(items, 2, 2)
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, 5, total)

	got, _ = Page(items, 3, 2)
	assert.Equal(t, []int{5}, got)

	got, _ = Page(items, 9, 2)
	assert.Empty(t, got)
}
