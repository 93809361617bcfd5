package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestValidate(t *testing.T) {
	assert.NoError(t, DefaultPageRequest().Validate())
	assert.NoError(t, PageRequest{Number: 4, Size: MaxPageSize, SortBy: SortByBalance}.Validate())

	for _, p := range []PageRequest{
		{Number: -1, Size: 3, SortBy: SortByID},
		{Size: 0, SortBy: SortByID},
		{Size: MaxPageSize + 1, SortBy: SortByID},
		{Size: 3, SortBy: "owner_id; drop table accounts"},
	} {
		assert.ErrorIs(t, p.Validate(), ErrInvalidPage, "%+v", p)
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{4, 5, 6}, PageRequest{Number: 1, Size: 3}, 7)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.Last)
	assert.Equal(t, 3, PageRequest{Number: 1, Size: 3}.Offset())

	last := NewPage([]int{7}, PageRequest{Number: 2, Size: 3}, 7)
	assert.True(t, last.Last)

	empty := NewPage[int](nil, PageRequest{Size: 3}, 0)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.TotalPages)
	assert.True(t, empty.Last)
}
