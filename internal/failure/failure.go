// Package failure maps a worker's accumulated fatigue onto a probability of
// failing during the current tick.
//
// Models are stateless: the same (h, dh) and parameters always produce the
// same probability. The random draw that consumes the probability belongs to
// the simulation, which keeps one seeded stream per worker.
package failure

import (
	"fmt"
	"math"
)

// Model is implemented by every failure model.
type Model interface {
	// Probability returns the probability of failing while fatigue grows from
	// h to h+dh, given that the worker survived up to h.
	Probability(h, dh float64) float64
	// Cumulative returns the unconditional probability of having failed by
	// fatigue h.
	Cumulative(h float64) float64
}

// Weibull is a Weibull hazard over fatigue. Lambda is the fatigue at which
// 63.2% cumulative failure probability is reached; K is the shape.
type Weibull struct {
	K      float64 `yaml:"k"`
	Lambda float64 `yaml:"lam"`
}

// NewWeibull validates the parameters and returns the model.
func NewWeibull(k, lambda float64) (Weibull, error) {
	w := Weibull{K: k, Lambda: lambda}
	if err := w.Validate(); err != nil {
		return Weibull{}, err
	}
	return w, nil
}

// Validate ensures the shape and scale are usable.
func (w Weibull) Validate() error {
	if !(w.K > 0) || math.IsInf(w.K, 0) {
		return fmt.Errorf("failure: weibull shape k must be > 0, got %v", w.K)
	}
	if !(w.Lambda > 0) || math.IsInf(w.Lambda, 0) {
		return fmt.Errorf("failure: weibull scale lam must be > 0, got %v", w.Lambda)
	}
	return nil
}

// Cumulative implements Model.
func (w Weibull) Cumulative(h float64) float64 {
	if h <= 0 {
		return 0
	}
	return 1 - math.Exp(-w.exponent(h))
}

// Probability implements Model as
// 1 - exp(-((h+dh)/lam)^k + (h/lam)^k).
func (w Weibull) Probability(h, dh float64) float64 {
	if dh <= 0 {
		return 0
	}
	if h < 0 {
		h = 0
	}
	delta := w.exponent(h+dh) - w.exponent(h)
	if math.IsInf(delta, 1) || math.IsNaN(delta) {
		return 1
	}
	return clamp01(1 - math.Exp(-delta))
}

func (w Weibull) exponent(h float64) float64 {
	if h <= 0 {
		return 0
	}
	return math.Pow(h/w.Lambda, w.K)
}

// Constant fails with a fixed probability on every tick in which fatigue
// grows.
type Constant struct {
	Prob float64 `yaml:"prob"`
}

// Validate ensures the probability lies in [0,1).
func (c Constant) Validate() error {
	if c.Prob < 0 || c.Prob >= 1 || math.IsNaN(c.Prob) {
		return fmt.Errorf("failure: constant prob must be in [0,1), got %v", c.Prob)
	}
	return nil
}

// Probability implements Model.
func (c Constant) Probability(_, dh float64) float64 {
	if dh <= 0 {
		return 0
	}
	return c.Prob
}

// Cumulative implements Model, treating one unit of fatigue as one exposure.
func (c Constant) Cumulative(h float64) float64 {
	if h <= 0 || c.Prob == 0 {
		return 0
	}
	return clamp01(1 - math.Exp(h*math.Log1p(-c.Prob)))
}

// None never fails.
type None struct{}

// Probability implements Model.
func (None) Probability(float64, float64) float64 { return 0 }

// Cumulative implements Model.
func (None) Cumulative(float64) float64 { return 0 }

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
