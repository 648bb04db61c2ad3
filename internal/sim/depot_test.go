package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/worker"
)

func brokenAtDepot(t *testing.T, id int) *worker.Worker {
	t.Helper()
	w := worker.New(id, geom.Pt(0, 0), 1, 1, 0)
	require.NoError(t, w.Fail())
	w.AtDepot = true
	return w
}

func TestDepotAdmitsInArrivalOrderWithinCapacity(t *testing.T) {
	d := newDepot(geom.Pt(0, 0), 3, 1, 1)
	ws := map[int]*worker.Worker{0: brokenAtDepot(t, 0), 1: brokenAtDepot(t, 1), 2: brokenAtDepot(t, 2)}

	assert.True(t, d.arrive(ws[2], 4))
	assert.True(t, d.arrive(ws[1], 5))
	assert.True(t, d.arrive(ws[0], 5))
	assert.False(t, d.arrive(ws[0], 6), "already queued")

	assert.Equal(t, []int{2}, d.admit(ws, 5))
	assert.Equal(t, 2, d.waiting())
	assert.Empty(t, d.admit(ws, 6), "bay occupied")

	ws[2].Health = worker.Operational
	assert.Equal(t, []int{0}, d.admit(ws, 8), "ties on arrival tick go to the lower id")
}

func TestDepotUnlimitedCapacity(t *testing.T) {
	d := newDepot(geom.Pt(0, 0), 2, 0, 1)
	ws := map[int]*worker.Worker{0: brokenAtDepot(t, 0), 1: brokenAtDepot(t, 1)}
	d.arrive(ws[0], 1)
	d.arrive(ws[1], 1)
	assert.Equal(t, []int{0, 1}, d.admit(ws, 1))
	assert.Equal(t, worker.Repairing, ws[1].Health)
	assert.Equal(t, 2, ws[1].RepairLeft)
}

func TestDepotZeroDurationRepairsImmediately(t *testing.T) {
	d := newDepot(geom.Pt(0, 0), 0, 1, 1)
	ws := map[int]*worker.Worker{0: brokenAtDepot(t, 0), 1: brokenAtDepot(t, 1)}
	d.arrive(ws[0], 1)
	d.arrive(ws[1], 1)
	assert.Equal(t, []int{0, 1}, d.admit(ws, 1), "instant repairs never hold a bay")
	assert.Equal(t, worker.Operational, ws[0].Health)
}

func TestDepotAdmitsPlannedMaintenance(t *testing.T) {
	d := newDepot(geom.Pt(0, 0), 2, 1, 1)
	idle := worker.New(0, geom.Pt(0, 0), 1, 1, 3)
	idle.AtDepot = true
	assert.False(t, d.arrive(idle, 1), "only workers sent to the depot queue")

	sent := worker.New(1, geom.Pt(0, 0), 1, 1, 3)
	require.NoError(t, sent.SendToRepair())
	sent.AtDepot = true
	assert.True(t, d.arrive(sent, 1))
	assert.Equal(t, []int{1}, d.admit(map[int]*worker.Worker{0: idle, 1: sent}, 1))
	assert.Equal(t, worker.Repairing, sent.Health)
	assert.False(t, d.arrive(sent, 2), "repairing workers are not queued again")
}
