// Package model loads detection networks and keeps them cached by path so a
// settings re-submit with the same model is instant.
package model

import (
	// stdlib
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// internal
	"github.com/grigone/detweb/pkg/config"
	"github.com/grigone/detweb/pkg/device"

	// external
	"gocv.io/x/gocv"
)

var (
	ErrBadModel      = errors.New("can't load model")
	ErrUnknownFormat = errors.New("unknown model format")
)

type Model struct {
	Net    gocv.Net
	Path   string
	Format config.ModelFormat
}

type readFunc func(path, config_path string, format config.ModelFormat) (gocv.Net, error)

type Loader struct {
	mu    sync.Mutex
	cache map[string]*Model
	dev   device.Descriptor
	read  readFunc
}

func NewLoader(dev device.Descriptor) *Loader {
	l := &Loader{
		cache: make(map[string]*Model),
		dev:   dev,
	}
	l.read = l.readNet
	return l
}

// Load deserializes the model at path and binds it to the probed device.
// Repeated calls with the same path return the cached handle.
func (l *Loader) Load(path, config_path string, format config.ModelFormat) (*Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.cache[path]; ok {
		return m, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadModel, path, err)
	}

	if format == "" {
		var err error
		format, err = FormatFromPath(path)
		if err != nil {
			return nil, err
		}
	}

	net, err := l.read(path, config_path, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadModel, path, err)
	}

	m := &Model{Net: net, Path: path, Format: format}
	l.cache[path] = m
	return m, nil
}

// readNet does the actual deserialization and device binding
func (l *Loader) readNet(path, config_path string, format config.ModelFormat) (gocv.Net, error) {
	var net gocv.Net

	switch format {
	case config.ModelFormatCaffe:
		net = gocv.ReadNetFromCaffe(config_path, path)
	case config.ModelFormatONNX:
		net = gocv.ReadNetFromONNX(path)
	case config.ModelFormatOpenVINO:
		net = gocv.ReadNet(path, config_path)
	default:
		return net, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if net.Empty() {
		return net, errors.New("deserialized network is empty")
	}

	if err := net.SetPreferableBackend(l.dev.Backend); err != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("can't set backend: %w", err)
	}
	if err := net.SetPreferableTarget(l.dev.Target); err != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("can't set target: %w", err)
	}

	return net, nil
}

// Evict drops one cached model, releasing its network
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.cache[path]; ok {
		m.Net.Close()
		delete(l.cache, path)
	}
}

func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, m := range l.cache {
		m.Net.Close()
		delete(l.cache, path)
	}
}

// SaveUploaded persists an uploaded model to a uniquely named temporary file
// so uploaded and built-in models go through the same Load path
func SaveUploaded(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "detweb-model-*"+ext)
	if err != nil {
		return "", fmt.Errorf("can't create temporary model file: %w", err)
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, r); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("can't persist uploaded model: %w", err)
	}
	return tmp.Name(), nil
}

func FormatFromPath(path string) (config.ModelFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return config.ModelFormatONNX, nil
	case ".caffemodel":
		return config.ModelFormatCaffe, nil
	case ".xml", ".bin":
		return config.ModelFormatOpenVINO, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}
