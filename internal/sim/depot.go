package sim

import (
	"cmp"

	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/worker"
)

// arrival is a worker waiting at the depot.
type arrival struct {
	tick   int
	worker int
}

func byArrival(a, b interface{}) int {
	x, y := a.(arrival), b.(arrival)
	if c := cmp.Compare(x.tick, y.tick); c != 0 {
		return c
	}
	return cmp.Compare(x.worker, y.worker)
}

// depot admits workers into repair in arrival order, bounded by capacity.
type depot struct {
	pos      geom.Point
	duration int
	capacity int
	reset    float64

	queue  *priorityqueue.Queue
	queued map[int]bool
}

func newDepot(pos geom.Point, duration, capacity int, reset float64) *depot {
	return &depot{
		pos:      pos,
		duration: duration,
		capacity: capacity,
		reset:    reset,
		queue:    priorityqueue.NewWith(byArrival),
		queued:   map[int]bool{},
	}
}

// arrive queues w if it was sent to the depot, waits there and is not queued
// yet.
func (d *depot) arrive(w *worker.Worker, tick int) bool {
	if !w.AtDepot || !w.SeekingRepair || d.queued[w.ID] {
		return false
	}
	if w.Health == worker.Repairing {
		return false
	}
	d.queue.Enqueue(arrival{tick: tick, worker: w.ID})
	d.queued[w.ID] = true
	return true
}

// admit starts repairs for queued workers while bays are free and returns
// the admitted worker ids in admission order.
func (d *depot) admit(workers map[int]*worker.Worker, tick int) []int {
	busy := 0
	for _, w := range workers {
		if w.Health == worker.Repairing {
			busy++
		}
	}
	var admitted []int
	for !d.queue.Empty() {
		if d.capacity > 0 && busy >= d.capacity {
			break
		}
		v, _ := d.queue.Dequeue()
		a := v.(arrival)
		delete(d.queued, a.worker)
		w, ok := workers[a.worker]
		if !ok || w.BeginRepair(tick, d.duration, d.reset) != nil {
			continue
		}
		admitted = append(admitted, a.worker)
		if w.Health == worker.Repairing {
			busy++
		}
	}
	return admitted
}

// waiting returns the number of queued workers.
func (d *depot) waiting() int { return d.queue.Size() }
