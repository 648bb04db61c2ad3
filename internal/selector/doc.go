// Package selector defines the allocation strategy contract. A Selector reads
// one start-of-tick Context and returns an Assignment: a directive per worker
// plus notes describing soft conditions (conflicts, exhausted rounds,
// infeasible plans). Selectors never mutate the context; the simulation
// validates and commits the assignment in one batch.
package selector
