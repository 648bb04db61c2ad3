// Package rng derives independent, reproducible random streams from a single
// top-level seed. Every stochastic subsystem asks for its own stream by name
// so that the order in which subsystems draw never affects another stream.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
)

// Stream names used by the simulation.
const (
	StreamFailure = "failure"
	StreamPlanner = "planner"
)

// New returns a PCG-backed generator for (seed, name, index).
func New(seed uint64, name string, index uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, mix(name, index)))
}

// Seed derives a child seed for (seed, name, index). It is used when a
// subsystem needs a plain integer seed rather than a generator.
func Seed(seed uint64, name string, index uint64) uint64 {
	return splitmix(seed ^ mix(name, index))
}

func mix(name string, index uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return splitmix(h.Sum64() + index*0x9e3779b97f4a7c15)
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
