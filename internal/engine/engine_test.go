package engine

import (
	"context"
	"testing"
	"time"

	"github.com/notedancer/notedancerd/internal/config"
)

func testConfig(t *testing.T) config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	// Ephemeral ports so parallel test runs never collide.
	cfg.FeatureAddr = "127.0.0.1:0"
	cfg.ControlAddr = "127.0.0.1:0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	return cfg
}

func TestNewBindsSocketsAndWiresAllComponents(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}
	defer e.sender.Close()
	defer e.plane.Close()

	if e.window == nil || e.bands == nil || e.spec == nil || e.tempo == nil || e.assembler == nil {
		t.Fatal("expected New to wire every pipeline component")
	}
}

func TestProcessFrameEmitsValuesWithinDocumentedRanges(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}
	defer e.sender.Close()
	defer e.plane.Close()

	chunk := make([]float64, cfg.ChunkSize)
	for i := range chunk {
		if i%3 == 0 {
			chunk[i] = 0.6
		} else {
			chunk[i] = -0.4
		}
	}
	e.window.Push(chunk)

	params := e.plane.Snapshot()
	for i := 0; i < 10; i++ {
		e.window.Push(chunk)
		frame := e.processFrame(chunk, params)

		if frame.Brightness < 0 || frame.Brightness > 1 {
			t.Fatalf("frame %d: brightness %g out of [0,1]", i, frame.Brightness)
		}
		if frame.Flux < 0 || frame.Flux > 1 {
			t.Fatalf("frame %d: flux %g out of [0,1]", i, frame.Flux)
		}
		for _, v := range []float32{frame.Low, frame.Mid, frame.High} {
			if v < 0 || v > 1 {
				t.Fatalf("frame %d: band value %g out of [0,1]", i, v)
			}
		}
		if frame.BPM != 0 && (frame.BPM < 90 || frame.BPM > 180) {
			t.Fatalf("frame %d: bpm %g outside {0} union [90,180]", i, frame.BPM)
		}
		if frame.IsBeat != 0 && frame.IsBeat != 1 {
			t.Fatalf("frame %d: is_beat %g is not 0 or 1", i, frame.IsBeat)
		}
		for j, n := range frame.Notes {
			if n < 0 || n > 1 {
				t.Fatalf("frame %d: notes[%d]=%g out of [0,1]", i, j, n)
			}
		}
	}
}

func TestProcessFrameZeroesNotesOnSilence(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}
	defer e.sender.Close()
	defer e.plane.Close()

	silentChunk := make([]float64, cfg.ChunkSize)
	for i := 0; i < 10; i++ {
		e.window.Push(silentChunk)
	}

	frame := e.processFrame(silentChunk, e.plane.Snapshot())
	for i, n := range frame.Notes {
		if n != 0 {
			t.Fatalf("notes[%d] = %g, want 0 on silence", i, n)
		}
	}
}

func TestRunExitsPromptlyOnContextCancellation(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before Run even starts the loop

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit promptly after context cancellation")
	}
}
