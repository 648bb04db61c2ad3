package planner

import (
	"math/rand/v2"
	"sort"
)

// gaConfig holds the search parameters of one GA run.
type gaConfig struct {
	popSize        int
	generations    int
	eliteCount     int
	mutationRate   float64
	tournamentSize int
}

// Result is the outcome of one GA run.
type Result struct {
	Best *Individual
	// History holds the best fitness of the initial population followed by
	// the best fitness after each generation.
	History []float64
}

// run evolves a population for cfg.generations and returns the best
// individual. Elites survive unchanged, so History never increases.
func run(pr *problem, cfg gaConfig, r *rand.Rand) Result {
	pop := make([]*Individual, cfg.popSize)
	for i := range pop {
		ind := randomIndividual(pr, r)
		ind.Fitness = pr.evaluate(ind)
		pop[i] = ind
	}
	res := Result{History: make([]float64, 0, cfg.generations+1)}
	res.History = append(res.History, ranked(pop)[0].Fitness)

	for range cfg.generations {
		order := ranked(pop)
		next := make([]*Individual, 0, cfg.popSize)
		for _, e := range order[:cfg.eliteCount] {
			next = append(next, e.clone())
		}
		for len(next) < cfg.popSize {
			p1 := tournament(pop, cfg.tournamentSize, r)
			p2 := tournament(pop, cfg.tournamentSize, r)
			child := crossover(pr, p1, p2, r)
			if r.Float64() < cfg.mutationRate {
				mutate(pr, child, r)
			}
			child.Fitness = pr.evaluate(child)
			next = append(next, child)
		}
		pop = next
		res.History = append(res.History, ranked(pop)[0].Fitness)
	}
	res.Best = ranked(pop)[0].clone()
	return res
}

// ranked returns pop sorted by fitness; ties keep population order.
func ranked(pop []*Individual) []*Individual {
	out := append([]*Individual(nil), pop...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Fitness < out[j].Fitness })
	return out
}

// tournament draws size distinct individuals and returns the fittest.
func tournament(pop []*Individual, size int, r *rand.Rand) *Individual {
	if size > len(pop) {
		size = len(pop)
	}
	picks := r.Perm(len(pop))[:size]
	best := pop[picks[0]]
	for _, i := range picks[1:] {
		if pop[i].Fitness < best.Fitness {
			best = pop[i]
		}
	}
	return best
}
