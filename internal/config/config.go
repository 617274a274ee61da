// Package config handles engine configuration: in-memory defaults, on-disk
// persistence, and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EngineConfig is the immutable-after-construction configuration for the
// analysis engine. It is validated once at startup; nothing in the
// steady-state loop re-checks it.
type EngineConfig struct {
	SampleRate   int `json:"sampleRate"`
	ChunkSize    int `json:"chunkSize"`
	WindowChunks int `json:"windowChunks"`
	FFTSize      int `json:"fftSize"`

	LowCutoffHz  float64 `json:"lowCutoffHz"`
	HighCutoffHz float64 `json:"highCutoffHz"`

	SilenceThreshold float64 `json:"silenceThreshold"`

	FeatureAddr string `json:"featureAddr"`
	ControlAddr string `json:"controlAddr"`

	AutoGain AutoGainConfig `json:"autoGain"`
	Onset    OnsetConfig    `json:"onset"`

	BPMMin float64 `json:"bpmMin"`
	BPMMax float64 `json:"bpmMax"`
}

// AutoGainConfig holds the shared AutoGain tunables.
type AutoGainConfig struct {
	HistorySeconds float64 `json:"historySeconds"`
	Percentile     float64 `json:"percentile"`
	AttackSeconds  float64 `json:"attackSeconds"`
	DecaySeconds   float64 `json:"decaySeconds"`
	Floor          float64 `json:"floor"`
}

// OnsetConfig holds the onset/tempo tracker tunables.
type OnsetConfig struct {
	K                float64 `json:"k"`
	RefractorySec    float64 `json:"refractorySec"`
	HistorySeconds   float64 `json:"historySeconds"`
	IntervalCapacity int     `json:"intervalCapacity"`
	BinWidthSec      float64 `json:"binWidthSec"`
	SmoothTauSec     float64 `json:"smoothTauSec"`
}

// DefaultEngineConfig returns the documented defaults: 48kHz, 1024-sample
// chunks, a 6-chunk analysis window, 2048-point FFT.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:       48000,
		ChunkSize:        1024,
		WindowChunks:     6,
		FFTSize:          2048,
		LowCutoffHz:      150.0,
		HighCutoffHz:     4000.0,
		SilenceThreshold: 0.01, // -40 dBFS amplitude
		FeatureAddr:      "127.0.0.1:5005",
		ControlAddr:      "127.0.0.1:5006",
		AutoGain: AutoGainConfig{
			HistorySeconds: 15.0,
			Percentile:     0.90,
			AttackSeconds:  0.1,
			DecaySeconds:   15.0,
			Floor:          1e-4,
		},
		Onset: OnsetConfig{
			K:                1.5,
			RefractorySec:    0.060,
			HistorySeconds:   1.0,
			IntervalCapacity: 30,
			BinWidthSec:      0.005,
			SmoothTauSec:     2.0,
		},
		BPMMin: 90.0,
		BPMMax: 180.0,
	}
}

// FramePeriod returns the wall-clock duration of one analysis frame: one
// chunk at the configured sample rate.
func (c EngineConfig) FramePeriod() float64 {
	return float64(c.ChunkSize) / float64(c.SampleRate)
}

// Validate rejects configurations that cannot start the engine. These are
// the only configuration errors: fatal at init, never re-checked once
// running.
func (c EngineConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sampleRate must be positive, got %d", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.WindowChunks <= 0 {
		return fmt.Errorf("windowChunks must be positive, got %d", c.WindowChunks)
	}
	if c.FFTSize <= 0 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fftSize must be a power of two, got %d", c.FFTSize)
	}
	if c.FFTSize > c.WindowChunks*c.ChunkSize {
		return fmt.Errorf("fftSize (%d) cannot exceed the analysis window (%d)", c.FFTSize, c.WindowChunks*c.ChunkSize)
	}
	nyquist := float64(c.SampleRate) / 2.0
	if c.LowCutoffHz <= 0 || c.LowCutoffHz >= nyquist {
		return fmt.Errorf("lowCutoffHz (%g) must be in (0, %g)", c.LowCutoffHz, nyquist)
	}
	if c.HighCutoffHz <= c.LowCutoffHz || c.HighCutoffHz >= nyquist {
		return fmt.Errorf("highCutoffHz (%g) must be in (%g, %g)", c.HighCutoffHz, c.LowCutoffHz, nyquist)
	}
	if c.SilenceThreshold < 0 {
		return fmt.Errorf("silenceThreshold must be non-negative, got %g", c.SilenceThreshold)
	}
	if c.FeatureAddr == "" {
		return fmt.Errorf("featureAddr must not be empty")
	}
	if c.ControlAddr == "" {
		return fmt.Errorf("controlAddr must not be empty")
	}
	if c.AutoGain.Floor <= 0 {
		return fmt.Errorf("autoGain.floor must be positive, got %g", c.AutoGain.Floor)
	}
	if c.AutoGain.Percentile <= 0 || c.AutoGain.Percentile >= 1 {
		return fmt.Errorf("autoGain.percentile must be in (0, 1), got %g", c.AutoGain.Percentile)
	}
	if c.BPMMin <= 0 || c.BPMMax <= c.BPMMin {
		return fmt.Errorf("bpm hedge range invalid: [%g, %g]", c.BPMMin, c.BPMMax)
	}
	return nil
}

// Config is the on-disk daemon configuration: the engine knobs plus
// anything that only matters to the process wrapping the engine.
type Config struct {
	Engine  EngineConfig `json:"engine"`
	Verbose bool         `json:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngineConfig(),
	}
}

// Manager handles loading and saving configuration.
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager rooted at configDir.
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk, writing defaults if no file
// exists yet.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = cfg
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path.
func (m *Manager) GetPath() string {
	return m.configPath
}
