// Package engine implements Component G: the frame scheduler. It owns the
// capture queue, drives the analysis pipeline one chunk at a time, and
// hands finished frames to the outbound transport.
package engine

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/notedancer/notedancerd/internal/autogain"
	"github.com/notedancer/notedancerd/internal/banddsp"
	"github.com/notedancer/notedancerd/internal/config"
	"github.com/notedancer/notedancerd/internal/control"
	"github.com/notedancer/notedancerd/internal/featureassembler"
	"github.com/notedancer/notedancerd/internal/onset"
	"github.com/notedancer/notedancerd/internal/ringbuffer"
	"github.com/notedancer/notedancerd/internal/spectral"
	"github.com/notedancer/notedancerd/internal/transport"
)

// degradedLogEvery throttles the degraded-frame log line, mirroring the
// teacher's audioLogCounter pattern in its IPC server.
const degradedLogEvery = 100

// shutdownJoinTimeout bounds how long Run waits for its goroutines to
// exit cooperatively (§5).
const shutdownJoinTimeout = 1 * time.Second

// consecutiveOverBudgetWarn is how many consecutive over-budget frames
// trigger a degraded-performance warning (§4.G).
const consecutiveOverBudgetWarn = 10

// Engine is Component G, wiring components A through F.
type Engine struct {
	cfg config.EngineConfig

	window    *ringbuffer.Window
	bands     *banddsp.Chain
	spec      *spectral.Core
	tempo     *onset.Tracker
	assembler *featureassembler.Assembler
	plane     *control.Plane
	sender    *transport.FeatureSender
	queue     *transport.ChunkQueue

	framesProcessed uint64
	framesDegraded  uint64
	overBudgetRun   int
}

// New constructs an Engine from validated configuration. cfg.Validate()
// must have already succeeded; New does not re-check it.
func New(cfg config.EngineConfig) (*Engine, error) {
	plane, err := control.NewPlane(cfg.ControlAddr, control.DefaultParameters())
	if err != nil {
		return nil, err
	}
	sender, err := transport.NewFeatureSender(cfg.FeatureAddr)
	if err != nil {
		plane.Close()
		return nil, err
	}

	framePeriod := cfg.FramePeriod()
	bandAutoGain := autogain.NewConfig(
		cfg.AutoGain.HistorySeconds, cfg.AutoGain.Percentile,
		cfg.AutoGain.AttackSeconds, cfg.AutoGain.DecaySeconds,
		cfg.AutoGain.Floor, framePeriod,
	)

	return &Engine{
		cfg:    cfg,
		window: ringbuffer.New(cfg.WindowChunks, cfg.ChunkSize),
		bands: banddsp.New(banddsp.Config{
			SampleRate:   cfg.SampleRate,
			LowCutoffHz:  cfg.LowCutoffHz,
			HighCutoffHz: cfg.HighCutoffHz,
			AutoGain:     bandAutoGain,
		}),
		spec: spectral.New(spectral.Config{
			SampleRate: cfg.SampleRate,
			FFTSize:    cfg.FFTSize,
		}),
		tempo: onset.New(onset.NewConfig(
			cfg.Onset.K, cfg.Onset.RefractorySec, cfg.Onset.HistorySeconds,
			cfg.Onset.IntervalCapacity, cfg.Onset.BinWidthSec, cfg.Onset.SmoothTauSec,
			framePeriod, cfg.BPMMin, cfg.BPMMax,
		)),
		assembler: featureassembler.New(bandAutoGain),
		plane:     plane,
		sender:    sender,
		queue:     transport.NewChunkQueue(2),
	}, nil
}

// Push feeds one captured chunk into the engine's bounded queue. Safe to
// call from the capture goroutine; never blocks.
func (e *Engine) Push(chunk []float32) {
	e.queue.Push(chunk)
}

// Run drives the steady-state loop until ctx is cancelled. It also starts
// the control-plane listener goroutine and joins both within the bounded
// shutdown timeout.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.plane.Listen(ctx)
	}()

	e.loop(ctx)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownJoinTimeout):
		log.Printf("[ENGINE] control listener did not exit within %v, abandoning", shutdownJoinTimeout)
	}

	e.sender.Close()
	e.plane.Close()
}

// loop is the analysis thread's steady-state loop (§4.G, §5).
func (e *Engine) loop(ctx context.Context) {
	framePeriod := time.Duration(e.cfg.FramePeriod() * float64(time.Second))

	for {
		chunk, ok := e.queue.Pop(ctx)
		if !ok {
			return
		}

		start := time.Now()
		degraded := e.window.Push(ringbuffer.ToFloat64(chunk))
		view := e.window.View()
		latestChunk := view[len(view)-e.window.ChunkSize():]
		params := e.plane.Snapshot()
		frame := e.processFrame(latestChunk, params)
		e.sender.Send(frame.Bytes())

		e.framesProcessed++
		if degraded {
			e.framesDegraded++
		}
		if e.framesProcessed%degradedLogEvery == 0 {
			lowCeil, midCeil, highCeil := e.bands.Ceilings()
			log.Printf("[ENGINE] frames=%d degraded=%d bpm=%.1f ceilings=(low=%.4f mid=%.4f high=%.4f)",
				e.framesProcessed, e.framesDegraded, frame.BPM, lowCeil, midCeil, highCeil)
		}

		if elapsed := time.Since(start); elapsed > framePeriod {
			e.overBudgetRun++
			if e.overBudgetRun > consecutiveOverBudgetWarn {
				log.Printf("[ENGINE] degraded performance: %d consecutive frames exceeded the %v budget", e.overBudgetRun, framePeriod)
			}
		} else {
			e.overBudgetRun = 0
		}
	}
}

// processFrame drives B, C, D, then E for the current chunk/window
// (§4.G). latestChunk is the just-pushed chunk (band DSP operates on the
// latest chunk only, per §4.B); the spectral core reads the full window.
func (e *Engine) processFrame(latestChunk []float64, params control.Parameters) featureassembler.Frame {
	windowRMS := rms(e.window.View())

	bandResult := e.bands.Process(latestChunk, banddsp.GainParams{
		LowGain: params.LowGain, MidGain: params.MidGain, HighGain: params.HighGain,
		LowAttack: params.LowAttack, LowDecay: params.LowDecay,
		MidAttack: params.MidAttack, MidDecay: params.MidDecay,
		HighAttack: params.HighAttack, HighDecay: params.HighDecay,
	}, e.cfg.SilenceThreshold)

	specResult := e.spec.Process(e.window.View(), params.FluxSens)
	tempoResult := e.tempo.Process(specResult.FluxRaw)

	notes := e.assembler.Assemble(specResult.ChromaRaw, windowRMS, e.cfg.SilenceThreshold, params.NoteSensitivity, params.NormMode)

	isBeat := float32(0)
	if tempoResult.IsBeat {
		isBeat = 1
	}

	return featureassembler.Frame{
		Brightness: float32(specResult.Brightness),
		Flux:       float32(specResult.FluxClip),
		Low:        float32(bandResult.Low),
		Mid:        float32(bandResult.Mid),
		High:       float32(bandResult.High),
		BPM:        float32(tempoResult.BPM),
		IsBeat:     isBeat,
		Notes:      toFloat32Notes(notes),
	}
}

func toFloat32Notes(notes [12]float64) [12]float32 {
	var out [12]float32
	for i, n := range notes {
		out[i] = float32(n)
	}
	return out
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range samples {
		sumSq += x * x
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}
