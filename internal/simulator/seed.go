package simulator

import (
	"math/rand"
	"time"
)

// Seeds handed to the simulator are drawn from [MinSeed, MaxSeed).
const (
	MinSeed = 1
	MaxSeed = 100000000
)

type SeedSource interface {
	Seed() int64
}

// RandSeeds draws a fresh seed on every call. Not safe for concurrent use.
type RandSeeds struct {
	rng *rand.Rand
}

// NewRandSeeds creates a seed stream. A zero master seed uses the clock, any
// other value makes the stream reproducible.
func NewRandSeeds(master int64) *RandSeeds {
	if master == 0 {
		master = time.Now().UnixNano()
	}
	return &RandSeeds{rng: rand.New(rand.NewSource(master))}
}

func (r *RandSeeds) Seed() int64 {
	return MinSeed + r.rng.Int63n(MaxSeed-MinSeed)
}
