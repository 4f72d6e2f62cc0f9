package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, 0.0, Clamp(-0.2, 0.0, 1.0))
	assert.Equal(t, 1.0, Clamp(1.7, 0.0, 1.0))
}

func TestSMap(t *testing.T) {
	doubled := SMap([]int{1, 2, 3}, func(v, _ int) int { return v * 2 })
	assert.Equal(t, []int{2, 4, 6}, doubled)
}
