package config

import (
	"path/filepath"
	"testing"
)

func TestValidateRejectsNonPositiveSampleRate(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a zero sample rate")
	}
}

func TestValidateRejectsNonPowerOfTwoFFTSize(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.FFTSize = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a non-power-of-two fftSize")
	}
}

func TestValidateRejectsFFTSizeLargerThanWindow(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.FFTSize = 8192 // power of two, but larger than the default 6*1024 window
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when fftSize exceeds the analysis window")
	}
}

func TestValidateRejectsHighCutoffBelowLowCutoff(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.HighCutoffHz = cfg.LowCutoffHz - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when highCutoffHz <= lowCutoffHz")
	}
}

func TestValidateRejectsInvalidBPMRange(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.BPMMax = cfg.BPMMin
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when bpmMax <= bpmMin")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultEngineConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestManagerLoadWritesDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if err := mgr.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantPath := filepath.Join(dir, "config.json")
	if mgr.GetPath() != wantPath {
		t.Fatalf("GetPath() = %q, want %q", mgr.GetPath(), wantPath)
	}
	if got := mgr.Get().Engine.SampleRate; got != DefaultEngineConfig().SampleRate {
		t.Fatalf("expected defaults to be written, got sampleRate=%d", got)
	}
}

func TestManagerLoadRoundTripsACustomValue(t *testing.T) {
	dir := t.TempDir()

	writer := NewManager(dir)
	if err := writer.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	writer.Get().Engine.SampleRate = 44100
	if err := writer.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reader := NewManager(dir)
	if err := reader.Load(); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if got := reader.Get().Engine.SampleRate; got != 44100 {
		t.Fatalf("sampleRate = %d, want 44100 after round trip", got)
	}
}
