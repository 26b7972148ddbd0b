package achievement

import (
	"testing"

	"github.com/julianstephens/ididit/internal/constants"
)

func TestRandomDeciderExtremes(t *testing.T) {
	never := NewRandomDecider(0, 1)
	always := NewRandomDecider(1, 1)
	for i := 0; i < 100; i++ {
		if never.NeedsConfirmation() {
			t.Fatal("p=0 decider asked for confirmation")
		}
		if !always.NeedsConfirmation() {
			t.Fatal("p=1 decider skipped confirmation")
		}
	}
}

func TestRandomDeciderRate(t *testing.T) {
	d := NewRandomDecider(constants.ConfirmationProbability, 42)
	asked := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if d.NeedsConfirmation() {
			asked++
		}
	}
	rate := float64(asked) / n
	if rate < 0.25 || rate > 0.35 {
		t.Errorf("confirmation rate = %.3f, want about %.1f", rate, constants.ConfirmationProbability)
	}
}

func TestDeciderFor(t *testing.T) {
	tests := []struct {
		mode    string
		fixed   *bool
		wantErr bool
	}{
		{mode: constants.ConfirmationModeAlways, fixed: boolPtr(true)},
		{mode: constants.ConfirmationModeNever, fixed: boolPtr(false)},
		{mode: constants.ConfirmationModeRandom},
		{mode: ""},
		{mode: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			d, err := DeciderFor(tt.mode, 0.5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeciderFor(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.fixed != nil {
				f, ok := d.(FixedDecider)
				if !ok || bool(f) != *tt.fixed {
					t.Errorf("DeciderFor(%q) = %#v, want FixedDecider(%v)", tt.mode, d, *tt.fixed)
				}
				return
			}
			if _, ok := d.(*RandomDecider); !ok {
				t.Errorf("DeciderFor(%q) = %T, want *RandomDecider", tt.mode, d)
			}
		})
	}
}
