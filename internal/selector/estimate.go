package selector

import (
	"math"

	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/worker"
)

// minSurvival bounds the expected-time inflation of near-certain failures.
const minSurvival = 1e-3

// Leg describes one travel-then-work step of a worker.
type Leg struct {
	From, To  geom.Point
	Remaining float64
	Speed     float64
	Rate      float64
	Fatigue   float64
}

// Estimate is the failure-adjusted cost of a Leg.
type Estimate struct {
	Travel   float64
	Work     float64
	FailProb float64
	// Time is (Travel+Work) scaled by the inverse survival probability of
	// the leg.
	Time float64
	// Fatigue is the worker's fatigue at the end of the leg.
	Fatigue float64
}

// EstimateLeg computes the expected cost of l under model m.
func EstimateLeg(l Leg, m failure.Model, p worker.Params) Estimate {
	e := Estimate{Fatigue: l.Fatigue}
	dist := l.From.Dist(l.To)
	switch {
	case dist <= geom.Epsilon:
	case l.Speed > 0:
		e.Travel = dist / l.Speed
	default:
		e.Travel = math.Inf(1)
	}
	switch {
	case l.Remaining <= 0:
	case l.Rate > 0:
		e.Work = l.Remaining / l.Rate
	default:
		e.Work = math.Inf(1)
	}
	raw := e.Travel + e.Work
	if math.IsInf(raw, 1) {
		e.Time = raw
		e.FailProb = 1
		return e
	}
	dh := p.FatigueMove*e.Travel + p.FatigueWork*e.Work
	if m != nil {
		e.FailProb = m.Probability(l.Fatigue, dh)
	}
	e.Fatigue = l.Fatigue + dh
	e.Time = raw / math.Max(1-e.FailProb, minSurvival)
	return e
}

// LegFor builds the leg for worker w heading to a task at pos with the given
// remaining work, using w's health-adjusted speed and rate.
func LegFor(w *worker.Worker, p worker.Params, pos geom.Point, remaining float64) Leg {
	return Leg{
		From:      w.Pos,
		To:        pos,
		Remaining: remaining,
		Speed:     w.EffectiveSpeed(p),
		Rate:      w.EffectiveRate(p),
		Fatigue:   w.Fatigue,
	}
}
