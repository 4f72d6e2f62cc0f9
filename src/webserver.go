package main

import (
	// stdlib
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	// internal
	"github.com/grigone/detweb/pkg/classes"
	"github.com/grigone/detweb/pkg/config"
	"github.com/grigone/detweb/pkg/detect"
	"github.com/grigone/detweb/pkg/device"
	"github.com/grigone/detweb/pkg/gset"
	"github.com/grigone/detweb/pkg/model"
	"github.com/grigone/detweb/pkg/rpath"
	"github.com/grigone/detweb/pkg/seq"
	"github.com/grigone/detweb/pkg/transcode"

	// external
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/hybridgroup/mjpeg"
)

var (
	image_exts = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}
	video_exts = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}
	model_exts = []string{".onnx", ".caffemodel", ".xml", ".bin"}
)

// Settings is the per-request value object collected from the form; nothing
// here survives the request
type Settings struct {
	ModelPath  string
	Confidence float32
	Classes    *gset.Set[int]
}

type server struct {
	run_ctx    context.Context
	logger     *slog.Logger
	cfg        *config.ConfigFile
	exe_dir    string
	dev        device.Descriptor
	registry   *classes.Registry
	loader     *model.Loader
	transcoder *transcode.Transcoder
	jobs       *jobRegistry
	preview    *mjpeg.Stream
	summaries  chan<- Summary
	busy       atomic.Bool
	upgrader   websocket.Upgrader
}

func webserver(
	ctx context.Context,
	parent_logger *slog.Logger,
	cfg *config.ConfigFile,
	exe_dir string,
	dev device.Descriptor,
	registry *classes.Registry,
	loader *model.Loader,
	transcoder *transcode.Transcoder,
	summaries chan<- Summary,
) error {

	logger := parent_logger.With("coroutine", "webserver")

	s := &server{
		run_ctx:    ctx,
		logger:     logger,
		cfg:        cfg,
		exe_dir:    exe_dir,
		dev:        dev,
		registry:   registry,
		loader:     loader,
		transcoder: transcoder,
		jobs:       newJobRegistry(time.Duration(cfg.Webserver.JobTTLSec)*time.Second, logger),
		preview:    mjpeg.NewStream(),
		summaries:  summaries,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	go s.jobs.sweep(ctx)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/", s.handleIndex)
	router.Get("/api/device", s.handleDevice)
	router.Post("/api/model", s.handleModelUpload)
	router.Post("/api/detect/image", s.handleDetectImage)
	router.Post("/api/detect/video", s.handleDetectVideo)
	router.Get("/api/jobs/{id}", s.handleJobStatus)
	router.Get("/api/jobs/{id}/video", s.handleJobVideo)
	router.Get("/ws/jobs/{id}", s.handleJobSocket)
	router.Handle("/preview", s.preview)

	http_server := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.Webserver.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Webserver.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Webserver.WriteTimeoutSec) * time.Second,
	}

	err_chan := make(chan error)

	go func() {
		err_chan <- http_server.ListenAndServe()
	}()
	defer func() {
		shutdown_context, cancel := context.WithTimeout(
			context.Background(),
			time.Second*time.Duration(cfg.Webserver.ShutdownTimeoutSec))
		defer cancel()
		shutdown_initiated_timestamp := time.Now()
		err := http_server.Shutdown(shutdown_context)
		logger.Info(
			"Shut down",
			"shutdown time (sec)", time.Since(shutdown_initiated_timestamp).Seconds(),
			"error", err)
	}()

	logger.Info("Started", "port", cfg.Webserver.Port)

	select {
	case <-ctx.Done():
		logger.Info("Cancelled by context", "timeout (sec)", cfg.Webserver.ShutdownTimeoutSec)
		return context.Canceled
	case err := <-err_chan:
		logger.Error("Error", "port", cfg.Webserver.Port, "error", err)
		return err
	}
}

// Handlers

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w)
}

func (s *server) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        s.dev.Name,
		"accelerated": s.dev.Accelerated,
		"devices":     s.dev.Devices,
	})
}

func (s *server) handleModelUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "can't parse upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("model")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no model file in request")
		return
	}
	defer file.Close()

	ext, ok := allowedExt(header.Filename, model_exts)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported model format: "+header.Filename)
		return
	}

	path, err := model.SaveUploaded(file, ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// load eagerly so a broken upload is reported right here
	if _, err := s.loader.Load(path, "", ""); err != nil {
		os.Remove(path)
		writeError(w, http.StatusUnprocessableEntity, "Error loading model: "+err.Error())
		return
	}

	s.logger.Info("Model uploaded", "name", header.Filename, "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *server) handleDetectImage(w http.ResponseWriter, r *http.Request) {
	// a cached gocv.Net can't run two forward passes at once, so image
	// requests take the same flag a video job holds
	if !s.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, ERR_BUSY.Error())
		return
	}
	defer s.busy.Store(false)

	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "can't parse upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file in request")
		return
	}
	defer file.Close()

	if _, ok := allowedExt(header.Filename, image_exts); !ok {
		writeError(w, http.StatusBadRequest, "unsupported image format: "+header.Filename)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "can't read upload: "+err.Error())
		return
	}

	settings, err := s.settingsFromForm(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	detector, err := s.detectorFor(settings)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Error loading model: "+err.Error())
		return
	}

	result, err := detect.ProcessImage(detector, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Detection failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"image":   base64.StdEncoding.EncodeToString(result.AnnotatedJPEG),
		"stats":   result.Stats.Entries(),
		"rows":    result.Stats.Rows(5),
		"total":   result.Stats.Total(),
		"classes": result.Stats.Names(),
	})
}

func (s *server) handleDetectVideo(w http.ResponseWriter, r *http.Request) {
	// one detection in flight at a time; image requests contend for the
	// same flag since both paths forward through the shared cached net
	if !s.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, ERR_BUSY.Error())
		return
	}
	release := true
	defer func() {
		if release {
			s.busy.Store(false)
		}
	}()

	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "can't parse upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no video file in request")
		return
	}
	defer file.Close()

	ext, ok := allowedExt(header.Filename, video_exts)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported video format: "+header.Filename)
		return
	}

	settings, err := s.settingsFromForm(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	detector, err := s.detectorFor(settings)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Error loading model: "+err.Error())
		return
	}

	input_path, err := saveUpload(file, ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	j := s.jobs.create()
	s.logger.Info("Video job accepted", "job", j.id, "name", header.Filename)

	release = false
	go s.runVideoJob(j, detector, input_path)

	writeJSON(w, http.StatusAccepted, map[string]string{"job": j.id})
}

func (s *server) runVideoJob(j *job, detector *detect.Detector, input_path string) {
	logger := s.logger.With("job", j.id)
	defer s.busy.Store(false)
	defer func() {
		if err := os.Remove(input_path); err != nil && !os.IsNotExist(err) {
			logger.Debug("Input temp file not deleted", "path", input_path, "error", err)
		}
	}()

	result, err := detect.ProcessVideo(
		s.run_ctx, logger, detector, input_path, s.transcoder,
		j.progress,
		s.preview.UpdateJPEG)
	if err != nil {
		logger.Error("Video job failed", "error", err)
		j.fail(err)
		return
	}
	j.complete(result)

	// best effort; a full notifier queue never stalls the job
	select {
	case s.summaries <- Summary{
		Job:    j.id,
		Kind:   "video",
		Frames: result.Frames,
		Counts: result.Stats.Counts(),
	}:
	default:
	}
}

func (s *server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	writeJSON(w, http.StatusOK, j.snapshot())
}

func (s *server) handleJobVideo(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	j.mu.Lock()
	result := j.result
	j.mu.Unlock()
	if result == nil {
		writeError(w, http.StatusConflict, "job has no output yet")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="detected_video.mp4"`)
	http.ServeFile(w, r, result.OutputPath)
}

func (s *server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := j.subscribe()
	defer cancel()

	if err := conn.WriteJSON(j.snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			if err := conn.WriteJSON(u); err != nil {
				return
			}
			if u.State == jobDone || u.State == jobFailed {
				return
			}
		}
	}
}

// Request plumbing

func (s *server) settingsFromForm(r *http.Request) (Settings, error) {
	settings := Settings{
		ModelPath:  rpath.Convert(s.exe_dir, s.cfg.Model.Path),
		Confidence: s.cfg.Model.ConfidenceThreshold,
		Classes:    &gset.Set[int]{},
	}

	if path := r.FormValue("model_path"); path != "" {
		settings.ModelPath = path
	}
	if _, err := os.Stat(settings.ModelPath); err != nil {
		return settings, fmt.Errorf("model not found: %s, select or upload one", settings.ModelPath)
	}

	if raw := r.FormValue("confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return settings, fmt.Errorf("%w: bad confidence value %q", ERR_INVALID_CONFIG, raw)
		}
		settings.Confidence = seq.Clamp(float32(parsed), 0, 1)
	}

	for _, raw := range r.Form["classes"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return settings, fmt.Errorf("%w: bad class id %q", ERR_INVALID_CONFIG, raw)
		}
		settings.Classes.Add(id)
	}
	// the selected ids are passed through verbatim: with every box checked
	// the model is still restricted to the known ids, so detections outside
	// the registry never surface. Only an empty selection lifts the filter.

	return settings, nil
}

func (s *server) detectorFor(settings Settings) (*detect.Detector, error) {
	format := config.ModelFormat("")
	config_path := ""
	if settings.ModelPath == rpath.Convert(s.exe_dir, s.cfg.Model.Path) {
		format = config.ModelFormat(s.cfg.Model.Format)
		if s.cfg.Model.ConfigPath != "" {
			config_path = rpath.Convert(s.exe_dir, s.cfg.Model.ConfigPath)
		}
	}

	m, err := s.loader.Load(settings.ModelPath, config_path, format)
	if err != nil {
		return nil, err
	}

	return detect.New(m, settings.Confidence, settings.Classes, s.registry, detect.Options{
		InputSize:    image.Pt(int(s.cfg.Model.X), int(s.cfg.Model.Y)),
		ScaleFactor:  s.cfg.Model.ScaleFactor,
		NMSThreshold: s.cfg.Model.NMSThreshold,
		Transpose:    s.cfg.Model.Transpose,
	})
}

func (s *server) maxUploadBytes() int64 {
	mb := s.cfg.Webserver.MaxUploadMB
	if mb <= 0 {
		mb = 512
	}
	return mb << 20
}

// Helpers

func saveUpload(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "detweb-in-*"+ext)
	if err != nil {
		return "", fmt.Errorf("can't create temp file: %w", err)
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, r); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("can't persist upload: %w", err)
	}
	return tmp.Name(), nil
}

func allowedExt(filename string, whitelist []string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range whitelist {
		if ext == allowed {
			return ext, true
		}
	}
	return ext, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

