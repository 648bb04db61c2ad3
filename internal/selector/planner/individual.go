package planner

import (
	"math/rand/v2"
	"slices"
)

// Individual is one candidate plan: an ordered route per worker slot plus the
// tasks left unassigned. Every task of the problem appears exactly once
// across Routes and Unassigned.
//
// Repairs holds L_max flags per slot. Repairs[i][k] sends the worker of slot
// i to the depot before it starts the k-th task of its route; flags past the
// end of the route have no effect.
type Individual struct {
	Routes     [][]int
	Repairs    [][]bool
	Unassigned []int
	Fitness    float64
}

func (ind *Individual) clone() *Individual {
	c := &Individual{
		Routes:     make([][]int, len(ind.Routes)),
		Repairs:    make([][]bool, len(ind.Repairs)),
		Unassigned: slices.Clone(ind.Unassigned),
		Fitness:    ind.Fitness,
	}
	for i, r := range ind.Routes {
		c.Routes[i] = slices.Clone(r)
	}
	for i, f := range ind.Repairs {
		c.Repairs[i] = slices.Clone(f)
	}
	return c
}

// repairBefore reports whether slot i detours to the depot before route
// position k.
func (ind *Individual) repairBefore(i, k int) bool {
	return i < len(ind.Repairs) && k < len(ind.Repairs[i]) && ind.Repairs[i][k]
}

// Tasks returns every assigned task id in slot order.
func (ind *Individual) Tasks() []int {
	var out []int
	for _, r := range ind.Routes {
		out = append(out, r...)
	}
	return out
}

// randomIndividual deals the free tasks of pr to random slots with room.
func randomIndividual(pr *problem, r *rand.Rand) *Individual {
	ind := &Individual{Routes: make([][]int, len(pr.slots)), Repairs: make([][]bool, len(pr.slots))}
	for i, s := range pr.slots {
		if s.pinned >= 0 {
			ind.Routes[i] = []int{s.pinned}
		}
		flags := make([]bool, pr.lmax)
		for k := pr.fixedPrefix(i); k < pr.lmax; k++ {
			flags[k] = r.Float64() < pr.repairProb
		}
		ind.Repairs[i] = flags
	}
	free := slices.Clone(pr.free)
	r.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	ind.Unassigned = free
	ind.fill(pr, r)
	return ind
}

// fill places unassigned tasks into random slots that still have room.
func (ind *Individual) fill(pr *problem, r *rand.Rand) {
	var rest []int
	for _, id := range ind.Unassigned {
		open := ind.openSlots(pr)
		if len(open) == 0 {
			rest = append(rest, id)
			continue
		}
		slot := open[r.IntN(len(open))]
		ind.insert(pr, slot, id, r)
	}
	ind.Unassigned = rest
}

func (ind *Individual) openSlots(pr *problem) []int {
	var out []int
	for i := range ind.Routes {
		if len(ind.Routes[i]) < pr.lmax {
			out = append(out, i)
		}
	}
	return out
}

// insert puts id at a random position of slot, never ahead of a pinned task.
func (ind *Individual) insert(pr *problem, slot, id int, r *rand.Rand) {
	lo := pr.fixedPrefix(slot)
	route := ind.Routes[slot]
	pos := lo + r.IntN(len(route)-lo+1)
	ind.Routes[slot] = slices.Insert(route, pos, id)
}

// remove deletes id from wherever it is.
func (ind *Individual) remove(id int) {
	for i, route := range ind.Routes {
		ind.Routes[i] = slices.DeleteFunc(route, func(v int) bool { return v == id })
	}
	ind.Unassigned = slices.DeleteFunc(ind.Unassigned, func(v int) bool { return v == id })
}

// crossover copies a route segment of b into a copy of a, then repairs the
// child so every task appears once. Tasks displaced from the receiving slot
// are reinserted at random.
func crossover(pr *problem, a, b *Individual, r *rand.Rand) *Individual {
	child := a.clone()
	slot := r.IntN(len(pr.slots))
	lo := pr.fixedPrefix(slot)
	donor := b.Routes[slot][lo:]
	var seg []int
	if len(donor) > 0 {
		i := r.IntN(len(donor))
		j := i + 1 + r.IntN(len(donor)-i)
		seg = slices.Clone(donor[i:j])
	}

	displaced := slices.Clone(child.Routes[slot][lo:])
	for _, id := range seg {
		child.remove(id)
	}
	child.Routes[slot] = append(child.Routes[slot][:lo:lo], seg...)
	child.Repairs[slot] = slices.Clone(b.Repairs[slot])
	for _, id := range displaced {
		if !slices.Contains(seg, id) {
			child.Unassigned = append(child.Unassigned, id)
		}
	}
	child.fill(pr, r)
	return child
}

// mutate applies a segment shuffle, a task reinsertion or a repair flag flip.
func mutate(pr *problem, ind *Individual, r *rand.Rand) {
	switch r.IntN(3) {
	case 0:
		shuffleSegment(pr, ind, r)
	case 1:
		reinsert(pr, ind, r)
	default:
		flipRepair(pr, ind, r)
	}
	ind.fill(pr, r)
}

// flipRepair toggles one repair flag unless planned repairs are disabled. A
// pinned task is never preceded by a repair.
func flipRepair(pr *problem, ind *Individual, r *rand.Rand) {
	if pr.repairProb <= 0 {
		return
	}
	slot := r.IntN(len(ind.Repairs))
	lo := pr.fixedPrefix(slot)
	flags := ind.Repairs[slot]
	if len(flags) <= lo {
		return
	}
	k := lo + r.IntN(len(flags)-lo)
	flags[k] = !flags[k]
}

func shuffleSegment(pr *problem, ind *Individual, r *rand.Rand) {
	slot := r.IntN(len(ind.Routes))
	lo := pr.fixedPrefix(slot)
	route := ind.Routes[slot]
	if len(route)-lo < 2 {
		return
	}
	i := lo + r.IntN(len(route)-lo)
	j := i + 1 + r.IntN(len(route)-i)
	seg := route[i:j]
	r.Shuffle(len(seg), func(a, b int) { seg[a], seg[b] = seg[b], seg[a] })
}

func reinsert(pr *problem, ind *Individual, r *rand.Rand) {
	if len(pr.free) == 0 {
		return
	}
	id := pr.free[r.IntN(len(pr.free))]
	ind.remove(id)
	open := ind.openSlots(pr)
	if len(open) == 0 {
		ind.Unassigned = append(ind.Unassigned, id)
		return
	}
	ind.insert(pr, open[r.IntN(len(open))], id, r)
}
