package gset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedInsertion(t *testing.T) {
	s := FromSlice([]int{3, 1, 2, 1, 3})

	assert.Equal(t, []int{1, 2, 3}, s.Values())
	assert.Equal(t, 3, s.Len())
}

func TestDel(t *testing.T) {
	s := FromSlice([]int{0, 1, 2})
	s.Del(1, 5)

	assert.Equal(t, []int{0, 2}, s.Values())
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(2))
}

func TestEmpty(t *testing.T) {
	var nil_set *Set[int]
	assert.True(t, nil_set.Empty())
	assert.Nil(t, nil_set.Values())

	s := &Set[int]{}
	assert.True(t, s.Empty())
	s.Add(4)
	assert.False(t, s.Empty())
	s.Del(4)
	assert.True(t, s.Empty())
}
