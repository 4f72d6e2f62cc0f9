package classes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	r := NewRegistry(nil)

	assert.Equal(t, "Human", r.Name(0))
	assert.Equal(t, "Car", r.Name(1))

	c, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "🚗", c.Glyph)
}

func TestUnknownIdSynthesized(t *testing.T) {
	r := NewRegistry(nil)

	assert.Equal(t, "Class 7", r.Name(7))
	for _, c := range r.All() {
		assert.NotEqual(t, "Class 7", c.Name)
	}
	_, ok := r.Get(7)
	assert.False(t, ok)
}

func TestDeclarationOrder(t *testing.T) {
	r := NewRegistry([]DetectionClass{
		{ID: 3, Name: "Bus"},
		{ID: 1, Name: "Car"},
		{ID: 3, Name: "Duplicate"},
	})

	assert.Equal(t, []int{3, 1}, r.IDs())
	assert.Equal(t, "Bus", r.Name(3))
	assert.Equal(t, 2, r.Len())
}
