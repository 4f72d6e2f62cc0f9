package detect

import (
	"testing"

	"github.com/grigone/detweb/pkg/classes"
	"github.com/grigone/detweb/pkg/yolo"

	"github.com/stretchr/testify/assert"
)

// image with 2 Human boxes and 1 Car box -> {"Human": 2, "Car": 1}
func TestStatisticsExtraction(t *testing.T) {
	registry := classes.NewRegistry(nil)
	boxes := []yolo.Box{
		{ClassID: 0, Confidence: 0.9},
		{ClassID: 1, Confidence: 0.8},
		{ClassID: 0, Confidence: 0.6},
	}

	table := extractStatistics(boxes, registry)

	assert.Equal(t, 2, table.Count("Human"))
	assert.Equal(t, 1, table.Count("Car"))
	assert.Equal(t, []string{"Human", "Car"}, table.Names())
	assert.InDelta(t, 0.75, table.MeanConfidence("Human"), 1e-9)
}

func TestStatisticsUnknownClass(t *testing.T) {
	registry := classes.NewRegistry(nil)
	boxes := []yolo.Box{{ClassID: 9, Confidence: 0.5}}

	table := extractStatistics(boxes, registry)

	assert.Equal(t, 1, table.Count("Class 9"))
	assert.Zero(t, table.Count("Human"))
}

func TestStatisticsNoBoxes(t *testing.T) {
	table := extractStatistics(nil, classes.NewRegistry(nil))
	assert.True(t, table.Empty())
}

func TestFraction(t *testing.T) {
	// 10-frame video: 0.1, 0.2, ..., 1.0, never above 1.0
	previous := 0.0
	for done := 1; done <= 10; done++ {
		f := Fraction(done, 10)
		assert.InDelta(t, float64(done)/10.0, f, 1e-9)
		assert.GreaterOrEqual(t, f, previous)
		previous = f
	}
	assert.Equal(t, 1.0, Fraction(10, 10))
	assert.Equal(t, 1.0, Fraction(12, 10)) // advisory total was short

	// unknown totals degrade to indeterminate, never divide by zero
	assert.Equal(t, -1.0, Fraction(3, 0))
	assert.Equal(t, -1.0, Fraction(3, -7))
}
