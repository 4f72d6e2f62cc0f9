package detect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/grigone/detweb/pkg/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

// sliceSource serves K distinguishable frames: frame i carries the value i
// in every pixel's first channel
type sliceSource struct {
	count int
	next  int
}

func (s *sliceSource) Read(m *gocv.Mat) bool {
	if s.next >= s.count {
		return false
	}
	frame := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(s.next), 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	s.next++
	return true
}

type captureSink struct {
	got []int // first-channel value of each written frame
}

func (s *captureSink) Write(img gocv.Mat) error {
	s.got = append(s.got, int(img.GetUCharAt(0, 0)))
	return nil
}

// emptyTailSource yields valid frames until index after, then a
// successfully read but empty one
type emptyTailSource struct {
	inner sliceSource
	after int
}

func (s *emptyTailSource) Read(m *gocv.Mat) bool {
	if s.inner.next >= s.after {
		m.Close()
		*m = gocv.NewMat()
		return true
	}
	return s.inner.Read(m)
}

func frameTag(img *gocv.Mat) int { return int(img.GetUCharAt(0, 0)) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// 10-frame video, frames 0-4 contain one Car each, 5-9 none:
// cumulative = {"Car": 5}, progress = 0.1 ... 1.0, output order preserved
func TestDrainLoop(t *testing.T) {
	src := &sliceSource{count: 10}
	sink := &captureSink{}
	var fractions []float64

	infer := func(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
		table := stats.New()
		if frameTag(img) < 5 {
			table.Add("Car", 0.9)
		}
		return img.Clone(), table, nil
	}

	table, frames, err := drain(
		context.Background(), testLogger(), infer, src, sink, 10,
		func(done, total int, fraction float64) { fractions = append(fractions, fraction) },
		nil)

	require.NoError(t, err)
	assert.Equal(t, 10, frames)
	assert.Equal(t, 5, table.Count("Car"))
	assert.Equal(t, []string{"Car"}, table.Names())

	// frame i of the output is the annotated frame i of the input
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sink.got)

	require.Len(t, fractions, 10)
	for i, f := range fractions {
		assert.InDelta(t, float64(i+1)/10.0, f, 1e-9)
	}
}

func TestDrainInferenceFailureAbortsRun(t *testing.T) {
	src := &sliceSource{count: 10}
	sink := &captureSink{}
	boom := errors.New("forward pass exploded")

	infer := func(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
		if frameTag(img) == 3 {
			return gocv.Mat{}, nil, boom
		}
		return img.Clone(), stats.New(), nil
	}

	table, frames, err := drain(
		context.Background(), testLogger(), infer, src, sink, 10, nil, nil)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, table) // no partial statistics survive
	assert.Equal(t, 3, frames)
}

// a read that succeeds but hands back an empty frame ends the stream;
// the output never silently skips a position
func TestDrainEmptyFrameEndsStream(t *testing.T) {
	src := &emptyTailSource{inner: sliceSource{count: 10}, after: 3}
	sink := &captureSink{}

	infer := func(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
		table := stats.New()
		table.Add("Human", 0.8)
		return img.Clone(), table, nil
	}

	table, frames, err := drain(
		context.Background(), testLogger(), infer, src, sink, 10, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, []int{0, 1, 2}, sink.got)
	assert.Equal(t, 3, table.Count("Human"))
}

func TestDrainCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	infer := func(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
		return img.Clone(), stats.New(), nil
	}

	_, _, err := drain(ctx, testLogger(), infer, &sliceSource{count: 10}, &captureSink{}, 10, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrainUnknownTotalIndeterminate(t *testing.T) {
	var fractions []float64

	infer := func(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
		return img.Clone(), stats.New(), nil
	}

	_, _, err := drain(
		context.Background(), testLogger(), infer, &sliceSource{count: 3}, &captureSink{}, 0,
		func(done, total int, fraction float64) { fractions = append(fractions, fraction) },
		nil)

	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1}, fractions)
}
