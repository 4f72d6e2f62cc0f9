package main

import (
	// stdlib
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	// internal
	"github.com/grigone/detweb/pkg/config"

	// external
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *server {
	t.Helper()
	model_path := filepath.Join(t.TempDir(), "best.onnx")
	require.NoError(t, os.WriteFile(model_path, []byte("stub"), 0o644))
	cfg := config.Default()
	cfg.Model.Path = model_path
	return &server{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    cfg,
	}
}

func settingsRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/detect/image", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// checking every box restricts inference to exactly those ids: a model
// emitting ids outside the list stays invisible instead of surfacing under
// a synthesized name
func TestSettingsKeepExplicitClassSelection(t *testing.T) {
	s := testServer(t)

	settings, err := s.settingsFromForm(settingsRequest(url.Values{
		"confidence": {"0.5"},
		"classes":    {"0", "1"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, settings.Classes.Values())
}

func TestSettingsEmptySelectionLiftsFilter(t *testing.T) {
	s := testServer(t)

	settings, err := s.settingsFromForm(settingsRequest(url.Values{
		"confidence": {"0.5"},
	}))
	require.NoError(t, err)
	assert.True(t, settings.Classes.Empty())
}

func TestSettingsRejectBadValues(t *testing.T) {
	s := testServer(t)

	_, err := s.settingsFromForm(settingsRequest(url.Values{"confidence": {"lots"}}))
	assert.ErrorIs(t, err, ERR_INVALID_CONFIG)

	_, err = s.settingsFromForm(settingsRequest(url.Values{"classes": {"car"}}))
	assert.ErrorIs(t, err, ERR_INVALID_CONFIG)
}

// image detection shares the single-run flag with video jobs: the cached
// net must never see two concurrent forward passes
func TestImageDetectionConflictsWithRunningJob(t *testing.T) {
	s := testServer(t)
	s.busy.Store(true)

	rec := httptest.NewRecorder()
	s.handleDetectImage(rec, settingsRequest(url.Values{}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, s.busy.Load())
}

func TestImageDetectionReleasesFlagOnEarlyExit(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	// no multipart body, so the handler bails long before inference
	s.handleDetectImage(rec, settingsRequest(url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, s.busy.Load())
}
