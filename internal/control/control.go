// Package control implements Component F: the mutual-exclusion-guarded
// Parameters snapshot and the inbound UDP parameter listener.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/notedancer/notedancerd/internal/featureassembler"
)

// Parameters is the mutable, snapshotted control-plane state (§3). A
// reader always observes a single consistent snapshot per frame.
type Parameters struct {
	LowGain, MidGain, HighGain float64
	FluxSens                   float64
	NormMode                   featureassembler.Mode
	NoteSensitivity            float64
	LowAttack, LowDecay        float64
	MidAttack, MidDecay        float64
	HighAttack, HighDecay      float64
}

// DefaultParameters mirrors EngineConfig's defaults where the two overlap.
func DefaultParameters() Parameters {
	return Parameters{
		LowGain: 10, MidGain: 10, HighGain: 10,
		FluxSens:        1.0,
		NormMode:        featureassembler.ModeCompetitive,
		NoteSensitivity: 0.8,
		// Decay defaults to instantaneous (1.0): a slow decay would leave
		// a band audibly nonzero for seconds after its gain drops, even
		// though attack still ramps smoothly on rises.
		LowAttack: 0.8, LowDecay: 1.0,
		MidAttack: 0.8, MidDecay: 1.0,
		HighAttack: 0.8, HighDecay: 1.0,
	}
}

// Plane is Component F: the parameter snapshot plus the UDP listener that
// keeps it up to date.
type Plane struct {
	mu   sync.Mutex
	snap Parameters

	conn *net.UDPConn
}

// NewPlane binds the inbound parameter socket and seeds the snapshot with
// initial.
func NewPlane(addr string, initial Parameters) (*Plane, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("control: listen %q: %w", addr, err)
	}
	return &Plane{snap: initial, conn: conn}, nil
}

// Snapshot returns a copy of the current parameters. Cheap: the lock is
// held only for the duration of the copy.
func (p *Plane) Snapshot() Parameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Close releases the inbound socket.
func (p *Plane) Close() error {
	return p.conn.Close()
}

// Listen runs the inbound parameter-datagram loop until ctx is done. It
// polls ctx at the top of each iteration via a bounded read deadline, per
// spec.md §5's cooperative-shutdown model.
func (p *Plane) Listen(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			continue // malformed/unreadable datagrams are dropped silently
		}

		var fields map[string]interface{}
		if err := json.Unmarshal(buf[:n], &fields); err != nil {
			continue // a malformed datagram is dropped whole
		}
		p.applyFields(fields)
	}
}

// applyFields validates each field against its documented range (§6) and
// applies only the valid ones; unknown keys and out-of-range values are
// ignored individually.
func (p *Plane) applyFields(fields map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, raw := range fields {
		switch key {
		case "low_gain":
			setRange(&p.snap.LowGain, raw, 0, 100)
		case "mid_gain":
			setRange(&p.snap.MidGain, raw, 0, 100)
		case "high_gain":
			setRange(&p.snap.HighGain, raw, 0, 100)
		case "flux_sens":
			setRange(&p.snap.FluxSens, raw, 0, 10)
		case "note_sensitivity":
			setRange(&p.snap.NoteSensitivity, raw, 0.5, 0.98)
		case "low_attack":
			setRange(&p.snap.LowAttack, raw, 0, 1)
		case "low_decay":
			setRange(&p.snap.LowDecay, raw, 0, 1)
		case "mid_attack":
			setRange(&p.snap.MidAttack, raw, 0, 1)
		case "mid_decay":
			setRange(&p.snap.MidDecay, raw, 0, 1)
		case "high_attack":
			setRange(&p.snap.HighAttack, raw, 0, 1)
		case "high_decay":
			setRange(&p.snap.HighDecay, raw, 0, 1)
		case "norm_mode":
			s, ok := raw.(string)
			if !ok {
				continue
			}
			mode, ok := featureassembler.ParseMode(s)
			if !ok {
				continue
			}
			p.snap.NormMode = mode
		default:
			// unknown key, ignored per §6
		}
	}
}

// setRange applies raw to *dst only if it is a number within [lo, hi].
func setRange(dst *float64, raw interface{}, lo, hi float64) {
	v, ok := raw.(float64) // encoding/json decodes all JSON numbers as float64
	if !ok {
		return
	}
	if v < lo || v > hi {
		return
	}
	*dst = v
}
