// Package prng implements the engine's deterministic PRNG stream, used only
// for bonus-output rolls on recipe completion. It is not consulted anywhere
// else in the tick, so replays with bonus outputs disabled are bit-identical
// regardless of how many ticks have elapsed.
package prng

import "github.com/joeycumines/factorial/fixedpoint"

// Stream is a splitmix64-style deterministic generator: given the same seed,
// it produces the same sequence of values on every platform that supports
// 64-bit integer arithmetic.
type Stream struct {
	state uint64
}

// New constructs a Stream seeded with the given value.
func New(seed uint64) *Stream {
	return &Stream{state: seed}
}

// Seed resets the stream to the given seed.
func (s *Stream) Seed(seed uint64) {
	s.state = seed
}

// State returns the current internal state, for snapshotting.
func (s *Stream) State() uint64 { return s.state }

// SetState restores internal state from a snapshot.
func (s *Stream) SetState(state uint64) { s.state = state }

// Next consumes one draw from the stream.
func (s *Stream) Next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Chance consumes one draw, returning true iff the draw (mapped to [0,1) as
// a Fixed64) is <= p.
func (s *Stream) Chance(p fixedpoint.Fixed64) bool {
	if p <= fixedpoint.Zero {
		// still consumes a draw, per spec: "consumes one draw" unconditionally.
		s.Next()
		return false
	}
	draw := s.Next()
	// map the top 32 bits of the draw onto the fractional range [0, 1) of a Fixed64.
	frac := fixedpoint.FromBits(int64(draw >> 32))
	return frac.Cmp(p) <= 0
}

// Split derives a new, independent stream from the current one, without
// consuming a draw from the parent (useful for per-node deterministic
// sub-streams keyed by, e.g., node id).
func (s *Stream) Split(salt uint64) *Stream {
	mixed := s.state ^ (salt*0x9E3779B97F4A7C15 + 0x1000000001B3)
	child := New(mixed)
	child.Next() // avalanche the seed once before first use
	return child
}
