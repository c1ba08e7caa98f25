package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultPollIntervalSec = 5.0
	defaultPollAttempts    = 120
	defaultStatusTail      = 10
	defaultStateDirLinux   = ".local/state/speechinsight"
	defaultConfigDir       = ".config/speechinsight"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		DeviceName string `toml:"device_name"`
		SampleRate int    `toml:"sample_rate" validate:"gte=8000"`
		Channels   int    `toml:"channels" validate:"gte=1,lte=2"`
		MeterMS    int    `toml:"meter_ms" validate:"gte=10"`
	} `toml:"audio"`

	Storage struct {
		AudioDir    string `toml:"audio_dir" validate:"required"`
		MetadataDir string `toml:"metadata_dir" validate:"required"`
	} `toml:"storage"`

	Transcription struct {
		Provider        string  `toml:"provider" validate:"oneof=assemblyai whisper"`
		BaseURL         string  `toml:"base_url" validate:"omitempty,url"`
		APIKey          string  `toml:"api_key"`
		PollIntervalSec float64 `toml:"poll_interval_sec" validate:"gt=0"`
		PollMaxAttempts int     `toml:"poll_max_attempts" validate:"gte=1"`
		PollBackoff     float64 `toml:"poll_backoff" validate:"gte=1"`
		PollMaxInterval float64 `toml:"poll_max_interval_sec" validate:"gte=0"`
		ModelPath       string  `toml:"model_path"`
		Language        string  `toml:"language"`
		VADMode         int     `toml:"vad_mode" validate:"gte=0,lte=3"`
	} `toml:"transcription"`

	Analysis struct {
		Provider          string  `toml:"provider" validate:"oneof=gemini openai heuristic"`
		Model             string  `toml:"model"`
		APIKey            string  `toml:"api_key"`
		FallbackHeuristic bool    `toml:"fallback_heuristic"`
		TimeoutSec        float64 `toml:"timeout_sec" validate:"gte=0"`
	} `toml:"analysis"`

	Classifier struct {
		URL         string `toml:"url" validate:"omitempty,url"`
		Concurrency int    `toml:"concurrency" validate:"gte=1"`
	} `toml:"classifier"`

	Hooks []HookConfig `toml:"hooks"`

	Daemon struct {
		AutoAnalyze     bool    `toml:"auto_analyze"`
		ScanIntervalSec float64 `toml:"scan_interval_sec" validate:"gt=0"`
		QueueSize       int     `toml:"queue_size" validate:"gte=1"`
	} `toml:"daemon"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		SocketPath string `toml:"socket_path"`
		PidPath    string `toml:"pid_path"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
		Bars       int `toml:"bars" validate:"gte=1"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/speechinsight for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "speechinsight")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.MeterMS = 100

	cfg.Storage.AudioDir = filepath.Join(stateDir, "recordings")
	cfg.Storage.MetadataDir = filepath.Join(stateDir, "metadata")

	cfg.Transcription.Provider = "assemblyai"
	cfg.Transcription.BaseURL = "https://api.assemblyai.com/v2"
	cfg.Transcription.PollIntervalSec = defaultPollIntervalSec
	cfg.Transcription.PollMaxAttempts = defaultPollAttempts
	cfg.Transcription.PollBackoff = 1.0
	cfg.Transcription.PollMaxInterval = 30
	cfg.Transcription.ModelPath = filepath.Join(stateDir, "models", "ggml-medium-q5_1.bin")
	cfg.Transcription.Language = "auto"
	cfg.Transcription.VADMode = 2

	cfg.Analysis.Provider = "gemini"
	cfg.Analysis.Model = "gemini-2.0-flash-lite"
	cfg.Analysis.FallbackHeuristic = false
	cfg.Analysis.TimeoutSec = 60

	cfg.Classifier.URL = "http://127.0.0.1:5000"
	cfg.Classifier.Concurrency = 4

	cfg.Hooks = []HookConfig{}

	cfg.Daemon.AutoAnalyze = false
	cfg.Daemon.ScanIntervalSec = 60
	cfg.Daemon.QueueSize = 16

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "speechinsight.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "speechinsight.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "speechinsight.pid")

	cfg.UI.StatusTail = defaultStatusTail
	cfg.UI.Bars = 70

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	return cfg, nil
}

// Load loads config from file, applying defaults and env overrides. A
// missing file is created from the defaults.
func Load(path string) (*Config, error) {
	path = resolvePath(path)
	cfg, err := decodeFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if cfg, err = Default(); err != nil {
			return nil, err
		}
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes the file at path over the defaults without env overrides.
// A missing file yields the defaults. Edits that are saved back must start
// from here so secrets taken from the environment never reach the file.
func LoadFile(path string) (*Config, error) {
	path = resolvePath(path)
	cfg, err := decodeFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default()
	}
	if err != nil {
		return nil, err
	}
	cfg.Paths.ConfigPath = path
	return cfg, nil
}

// Update applies mutate to the values stored in the file at path and writes
// the result back.
func Update(path string, mutate func(*Config)) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	mutate(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if err := Save(cfg, cfg.Paths.ConfigPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultConfigDir, "config.toml")
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

var validate = validator.New()

// Validate checks field constraints after file and env values are merged.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for i := range cfg.Hooks {
		if err := validate.Struct(&cfg.Hooks[i]); err != nil {
			return fmt.Errorf("invalid config: hooks[%d]: %w", i, err)
		}
	}
	return nil
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), cfg.Storage.AudioDir, cfg.Storage.MetadataDir} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// PollInterval returns the base transcription poll delay.
func (c *Config) PollInterval() time.Duration {
	return secondsToDuration(c.Transcription.PollIntervalSec)
}

// MaxPollInterval caps the backoff between transcription polls.
func (c *Config) MaxPollInterval() time.Duration {
	return secondsToDuration(c.Transcription.PollMaxInterval)
}

// AnalysisTimeout bounds one generative-text request; zero means no limit.
func (c *Config) AnalysisTimeout() time.Duration {
	return secondsToDuration(c.Analysis.TimeoutSec)
}

// ScanInterval returns how often the daemon looks for unanalyzed recordings.
func (c *Config) ScanInterval() time.Duration {
	return secondsToDuration(c.Daemon.ScanIntervalSec)
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPEECHINSIGHT_STORAGE_DIR"); v != "" {
		cfg.Storage.AudioDir = filepath.Join(v, "recordings")
		cfg.Storage.MetadataDir = filepath.Join(v, "metadata")
	}
	if v := os.Getenv("ASSEMBLYAI_API_KEY"); v != "" {
		cfg.Transcription.APIKey = v
	}
	if v := os.Getenv("SPEECHINSIGHT_ANALYSIS_PROVIDER"); v != "" {
		cfg.Analysis.Provider = strings.ToLower(v)
	}
	if v := analysisKeyFromEnv(cfg.Analysis.Provider); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("SPEECHINSIGHT_CLASSIFIER_URL"); v != "" {
		cfg.Classifier.URL = v
	}
	if v := os.Getenv("SPEECHINSIGHT_AUTO_ANALYZE"); v != "" {
		cfg.Daemon.AutoAnalyze = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("SPEECHINSIGHT_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("SPEECHINSIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPEECHINSIGHT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func analysisKeyFromEnv(provider string) string {
	switch provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}
