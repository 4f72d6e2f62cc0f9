package transcode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// with ffmpeg absent the output must be a verbatim copy, not an error
func TestDegradeToVerbatimCopy(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.avi")
	output := filepath.Join(dir, "final.mp4")
	payload := []byte("fake container bytes")
	require.NoError(t, os.WriteFile(input, payload, 0o644))

	tc := New(filepath.Join(dir, "no-such-ffmpeg"), nil)
	transcoded, err := tc.ToMP4(context.Background(), input, output)

	require.NoError(t, err)
	assert.False(t, transcoded)
	copied, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, payload, copied)
}

func TestFallbackCopyFailureReported(t *testing.T) {
	dir := t.TempDir()

	tc := New(filepath.Join(dir, "no-such-ffmpeg"), nil)
	_, err := tc.ToMP4(
		context.Background(),
		filepath.Join(dir, "missing-input.avi"),
		filepath.Join(dir, "final.mp4"))

	assert.Error(t, err)
}

func TestEmptyPathDefaultsToFFmpeg(t *testing.T) {
	tc := New("", nil)
	assert.Equal(t, "ffmpeg", tc.FFmpeg)
}
