package achievement

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/julianstephens/ididit/internal/constants"
)

// Decider decides whether marking a Do achieved asks "ほんとに？" first.
type Decider interface {
	NeedsConfirmation() bool
}

// FixedDecider always gives the same answer.
type FixedDecider bool

func (f FixedDecider) NeedsConfirmation() bool { return bool(f) }

// RandomDecider asks with probability p. The outcome is intentionally
// non-deterministic; tests use FixedDecider or a seeded source.
type RandomDecider struct {
	mu  sync.Mutex
	p   float64
	rng *rand.Rand
}

// NewRandomDecider builds a decider over a PCG source seeded with seed.
func NewRandomDecider(p float64, seed uint64) *RandomDecider {
	return &RandomDecider{p: p, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomDecider) NeedsConfirmation() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.p
}

// DeciderFor maps the confirmation mode setting onto a Decider.
func DeciderFor(mode string, p float64) (Decider, error) {
	switch mode {
	case "", constants.ConfirmationModeRandom:
		return NewRandomDecider(p, uint64(time.Now().UnixNano())), nil
	case constants.ConfirmationModeAlways:
		return FixedDecider(true), nil
	case constants.ConfirmationModeNever:
		return FixedDecider(false), nil
	default:
		return nil, fmt.Errorf("unknown confirmation mode %q", mode)
	}
}
