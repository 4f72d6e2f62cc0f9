package config

import (
	// stdlib
	"fmt"
	"os"

	// external
	"github.com/pelletier/go-toml/v2"
)

// Enum types

type ModelFormat string

const (
	ModelFormatONNX     = "onnx"
	ModelFormatOpenVINO = "openvino"
	ModelFormatCaffe    = "caffe"
)

type LoggingLevel string

const (
	LoggingLevelDebug = "debug"
	LoggingLevelInfo  = "info"
	LoggingLevelWarn  = "warn"
	LoggingLevelError = "error"
)

// Config file structure

type ConfigFile struct {
	Model     ModelConfig
	Webserver WebserverConfig
	Logging   LoggingConfig
	Video     VideoConfig
	Mqtt      MqttConfig
	Classes   []ClassConfig
}

type ModelConfig struct {
	Format              string
	Path                string
	ConfigPath          string `toml:"config_path"`
	Transpose           bool
	ScaleFactor         float64 `toml:"scale_factor"`
	X                   uint
	Y                   uint
	ConfidenceThreshold float32 `toml:"confidence_threshold"`
	NMSThreshold        float32 `toml:"nms_threshold"`
}

type WebserverConfig struct {
	Port               uint
	ReadTimeoutSec     uint  `toml:"read_timeout_sec"`
	WriteTimeoutSec    uint  `toml:"write_timeout_sec"`
	ShutdownTimeoutSec uint  `toml:"shutdown_timeout_sec"`
	MaxUploadMB        int64 `toml:"max_upload_mb"`
	JobTTLSec          uint  `toml:"job_ttl_sec"`
}

type LoggingConfig struct {
	Level string
}

type VideoConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
}

type MqttConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string `toml:"client_id"`
}

type ClassConfig struct {
	ID    uint
	Name  string
	Glyph string
}

func Unmarshal(file_path string) (*ConfigFile, error) {
	config_file := new(ConfigFile)
	data, err := os.ReadFile(file_path)
	if err != nil {
		return nil,
			fmt.Errorf("Unable to read %s error: %w", file_path, err)
	}
	err = toml.Unmarshal(data, config_file)
	if err != nil {
		return nil,
			fmt.Errorf("Unable to unmarshal %s error: %w", file_path, err)
	}
	return config_file, nil
}

// Default returns the values used when no config file is supplied
func Default() *ConfigFile {
	return &ConfigFile{
		Model: ModelConfig{
			Format:              ModelFormatONNX,
			Path:                "../models/best.onnx",
			Transpose:           true,
			ScaleFactor:         1.0 / 255.0,
			X:                   640,
			Y:                   640,
			ConfidenceThreshold: 0.5,
			NMSThreshold:        0.45,
		},
		Webserver: WebserverConfig{
			Port:               8080,
			ReadTimeoutSec:     60,
			WriteTimeoutSec:    600,
			ShutdownTimeoutSec: 5,
			MaxUploadMB:        512,
			JobTTLSec:          900,
		},
		Logging: LoggingConfig{Level: LoggingLevelInfo},
		Video:   VideoConfig{FFmpegPath: "ffmpeg"},
		Mqtt: MqttConfig{
			Enabled:  false,
			Broker:   "127.0.0.1:1883",
			Topic:    "detweb/results",
			ClientID: "detweb",
		},
		Classes: []ClassConfig{
			{ID: 0, Name: "Human", Glyph: "👤"},
			{ID: 1, Name: "Car", Glyph: "🚗"},
		},
	}
}

func CreateDefault(file_path string) error {
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("Unable to marshal default config: %w", err)
	}
	err = os.WriteFile(file_path, data, 0o644)
	if err != nil {
		return fmt.Errorf("Unable to write %s error: %w", file_path, err)
	}
	return nil
}
