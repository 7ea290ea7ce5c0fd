// config.go: settings struct for speechscope and the functions to load them.
package conf

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings selects and configures the capture device.
type AudioSettings struct {
	Source     string  // capture device name substring, "" or "sysdefault" for the default device
	Backend    string  // malgo backend override: "", "alsa", "pulse", "wasapi", "coreaudio"
	SampleRate int     // requested device sample rate in Hz
	BufferSecs float64 // capture buffer length in seconds
}

// FileSettings configures offline analysis of an audio file.
type FileSettings struct {
	Path  string // input WAV file
	Paced bool   // feed at real-time speed instead of as fast as possible
}

// AnalysisSettings selects the solver algorithm for every role.
type AnalysisSettings struct {
	PitchAlgorithm   string // "autocorrelation", "amdf", "spectral"
	LinpredAlgorithm string // "autocorrelation", "burg"
	FormantAlgorithm string // "lpc-roots", "spectral-peaks"
	InvglotAlgorithm string // "iaif"
	LPOrder          int    // linear prediction order for the formant path
}

// ViewSettings are the renderer-facing view parameters. MaxFrequency also
// drives the spectrogram analysis rate (twice the maximum view frequency).
type ViewSettings struct {
	MinFrequency   int
	MaxFrequency   int
	FFTSize        int
	MinGain        float64 // dB
	MaxGain        float64 // dB
	FrequencyScale string  // "linear", "log", "mel", "erb"
	FormantCount   int
}

// BlockSizeSettings configures the adaptive capture block size controller.
type BlockSizeSettings struct {
	Initial         int
	Min             int
	Max             int
	Step            int
	GrowThreshold   int // backlog growth (samples per tick) that means falling behind
	ShrinkThreshold int // backlog reduction (samples per tick) that means comfortably ahead
}

// PipelineSettings configures the analysis pipeline.
type PipelineSettings struct {
	BlockSize       BlockSizeSettings
	BufferSamples   int           // per-stream sample buffer capacity
	JoinTimeout     time.Duration // bound on worker join at shutdown
	HistorySeconds  float64       // tracks older than this are trimmed, 0 keeps everything
	ResampleQuality string        // "quick", "low", "medium", "high", "veryhigh"
}

// WebServerSettings configures the HTTP read API.
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// TelemetrySettings configures the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for speechscope.
type Settings struct {
	Debug bool

	Logging   logger.LoggingConfig
	Audio     AudioSettings
	Input     FileSettings
	Analysis  AnalysisSettings
	View      ViewSettings
	Pipeline  PipelineSettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings
	Sentry    SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("SPEECHSCOPE")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, write the defaults to the first path and continue
			return createDefaultConfig(configPaths[0])
		}
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Build()
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir.
func createDefaultConfig(dir string) error {
	data, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	const dirPerm, filePerm = 0o755, 0o644
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Build()
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-default-config").
			Build()
	}
	viper.SetConfigFile(path)
	return nil
}

// GetSettings returns the last loaded settings, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the directories searched for config.yaml. When
// one of them already contains the file, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{
		".",
		filepath.Join(homeDir, ".config", "speechscope"),
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths[1:], nil
}
