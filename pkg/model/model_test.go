package model

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grigone/detweb/pkg/config"
	"github.com/grigone/detweb/pkg/device"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

// fakeModelFile exists so Load's stat check passes without a real network
func fakeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake.onnx")
	require.NoError(t, os.WriteFile(path, []byte("not a real network"), 0o644))
	return path
}

func stubbedLoader(reads *int) *Loader {
	l := NewLoader(device.Descriptor{})
	l.read = func(path, config_path string, format config.ModelFormat) (gocv.Net, error) {
		*reads++
		return gocv.Net{}, nil
	}
	return l
}

func TestCacheIdempotence(t *testing.T) {
	reads := 0
	l := stubbedLoader(&reads)
	path := fakeModelFile(t)

	first, err := l.Load(path, "", config.ModelFormatONNX)
	require.NoError(t, err)
	second, err := l.Load(path, "", config.ModelFormatONNX)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, reads)
}

func TestEvictForcesReload(t *testing.T) {
	reads := 0
	l := stubbedLoader(&reads)
	path := fakeModelFile(t)

	_, err := l.Load(path, "", config.ModelFormatONNX)
	require.NoError(t, err)
	l.Evict(path)
	_, err = l.Load(path, "", config.ModelFormatONNX)
	require.NoError(t, err)

	assert.Equal(t, 2, reads)
}

func TestMissingFile(t *testing.T) {
	l := stubbedLoader(new(int))

	_, err := l.Load("/nonexistent/best.onnx", "", config.ModelFormatONNX)
	assert.ErrorIs(t, err, ErrBadModel)
}

func TestReadFailureWrapped(t *testing.T) {
	l := NewLoader(device.Descriptor{})
	boom := errors.New("corrupt weights")
	l.read = func(path, config_path string, format config.ModelFormat) (gocv.Net, error) {
		return gocv.Net{}, boom
	}

	_, err := l.Load(fakeModelFile(t), "", config.ModelFormatONNX)
	assert.ErrorIs(t, err, ErrBadModel)
	assert.ErrorIs(t, err, boom)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/tmp/best.ONNX")
	require.NoError(t, err)
	assert.Equal(t, config.ModelFormat(config.ModelFormatONNX), f)

	_, err = FormatFromPath("/tmp/best.pt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSaveUploaded(t *testing.T) {
	path, err := SaveUploaded(strings.NewReader("weights"), ".onnx")
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.Equal(t, ".onnx", filepath.Ext(path))
}
