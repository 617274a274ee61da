// Package main is the entry point for notedancerd, a headless real-time
// audio feature-extraction daemon. It owns configuration, the analysis
// engine, and a capture source, and wires them together with cooperative
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/notedancer/notedancerd/internal/config"
	"github.com/notedancer/notedancerd/internal/engine"
)

// Version is set at build time via ldflags.
var Version = "dev"

// cliFlags holds the parsed command-line overrides. Zero values mean
// "use the on-disk/default config"; only non-zero overrides are applied.
type cliFlags struct {
	configDir   string
	sampleRate  int
	chunkSize   int
	featureAddr string
	controlAddr string
	verbose     bool
}

func main() {
	flags := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("[ENGINE] received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configDir, "config", "", "configuration directory (default: ~/.config/notedancerd)")
	flag.IntVar(&f.sampleRate, "sample-rate", 0, "override the configured sample rate (Hz)")
	flag.IntVar(&f.chunkSize, "chunk-size", 0, "override the configured chunk size (samples)")
	flag.StringVar(&f.featureAddr, "feature-addr", "", "override the outbound feature endpoint")
	flag.StringVar(&f.controlAddr, "control-addr", "", "override the inbound parameter endpoint")
	flag.BoolVar(&f.verbose, "verbose", false, "enable verbose logging")
	flag.Parse()

	if f.configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		f.configDir = homeDir + "/.config/notedancerd"
	}
	return f
}

func run(ctx context.Context, flags cliFlags) error {
	if flags.verbose {
		log.Printf("notedancerd version %s starting...", Version)
	}

	configMgr := config.NewManager(flags.configDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get().Engine
	applyOverrides(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	log.Printf("[ENGINE] feature output -> %s, control input <- %s", cfg.FeatureAddr, cfg.ControlAddr)

	source := newStubCaptureSource(cfg.SampleRate, cfg.ChunkSize)
	go pumpCaptureSource(ctx, source, eng)

	eng.Run(ctx)
	return nil
}

func applyOverrides(cfg *config.EngineConfig, flags cliFlags) {
	if flags.sampleRate > 0 {
		cfg.SampleRate = flags.sampleRate
	}
	if flags.chunkSize > 0 {
		cfg.ChunkSize = flags.chunkSize
	}
	if flags.featureAddr != "" {
		cfg.FeatureAddr = flags.featureAddr
	}
	if flags.controlAddr != "" {
		cfg.ControlAddr = flags.controlAddr
	}
}

// pumpCaptureSource is the capture thread (§5): it blocks on the source
// for the next chunk and pushes it into the engine's bounded queue,
// never blocking on the analysis thread.
func pumpCaptureSource(ctx context.Context, source *stubCaptureSource, eng *engine.Engine) {
	for {
		chunk, ok := source.Next(ctx)
		if !ok {
			return
		}
		eng.Push(chunk)
	}
}

// stubCaptureSource is the "thin adapter" spec.md §1 names out of scope:
// real deployments swap it for a device-capture collaborator that
// implements the same chunk-at-a-time contract. It stands in here so the
// daemon runs standalone, generating low-level noise at the configured
// rate and chunk size.
type stubCaptureSource struct {
	sampleRate int
	chunkSize  int
	rng        *rand.Rand
}

func newStubCaptureSource(sampleRate, chunkSize int) *stubCaptureSource {
	return &stubCaptureSource{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		rng:        rand.New(rand.NewSource(1)),
	}
}

func (s *stubCaptureSource) Next(ctx context.Context) ([]float32, bool) {
	period := time.Duration(float64(s.chunkSize) / float64(s.sampleRate) * float64(time.Second))
	select {
	case <-time.After(period):
	case <-ctx.Done():
		return nil, false
	}

	chunk := make([]float32, s.chunkSize)
	for i := range chunk {
		chunk[i] = float32(s.rng.Float64()*0.02 - 0.01)
	}
	return chunk, true
}
