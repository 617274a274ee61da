package control

import (
	"testing"

	"github.com/notedancer/notedancerd/internal/featureassembler"
)

func TestApplyFieldsRejectsOutOfRangeValues(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}
	before := p.Snapshot()

	p.applyFields(map[string]interface{}{
		"low_gain":         float64(500), // out of [0,100]
		"note_sensitivity": float64(0.1), // out of [0.5,0.98]
		"flux_sens":        float64(-1),  // out of [0,10]
	})

	after := p.Snapshot()
	if after != before {
		t.Fatalf("expected out-of-range fields to be rejected, before=%+v after=%+v", before, after)
	}
}

func TestApplyFieldsAcceptsValidValues(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}

	p.applyFields(map[string]interface{}{
		"low_gain":  float64(15),
		"norm_mode": "statistical",
	})

	got := p.Snapshot()
	if got.LowGain != 15 {
		t.Fatalf("expected low_gain=15, got %g", got.LowGain)
	}
	if got.NormMode != featureassembler.ModeStatistical {
		t.Fatalf("expected norm_mode=statistical, got %v", got.NormMode)
	}
}

func TestApplyFieldsIgnoresUnknownKeys(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}
	before := p.Snapshot()

	p.applyFields(map[string]interface{}{"totally_unknown_field": float64(1)})

	after := p.Snapshot()
	if after != before {
		t.Fatalf("expected unknown key to be a no-op, before=%+v after=%+v", before, after)
	}
}

func TestApplyFieldsPartialAcceptanceWithinOneDatagram(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}

	// one valid field and one invalid field in the same datagram: the
	// valid field still applies.
	p.applyFields(map[string]interface{}{
		"mid_gain":  float64(12),
		"high_gain": float64(9999),
	})

	got := p.Snapshot()
	if got.MidGain != 12 {
		t.Fatalf("expected mid_gain=12 to apply despite a sibling invalid field, got %g", got.MidGain)
	}
	if got.HighGain != DefaultParameters().HighGain {
		t.Fatalf("expected high_gain to remain unchanged, got %g", got.HighGain)
	}
}

func TestApplyFieldsIgnoresUnknownNormMode(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}
	before := p.Snapshot()

	p.applyFields(map[string]interface{}{"norm_mode": "not_a_real_mode"})

	after := p.Snapshot()
	if after.NormMode != before.NormMode {
		t.Fatalf("expected an unrecognized norm_mode to be rejected, got %v", after.NormMode)
	}
}

func TestSnapshotIsACopyNotAReference(t *testing.T) {
	p := &Plane{snap: DefaultParameters()}
	snap1 := p.Snapshot()
	p.applyFields(map[string]interface{}{"low_gain": float64(50)})
	if snap1.LowGain == 50 {
		t.Fatalf("expected a prior snapshot to be unaffected by a later parameter update")
	}
}
