package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/params"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

func nearestContext(t *testing.T) *Context {
	t.Helper()
	pool, err := task.NewPool([]*task.Task{
		task.New(1, geom.Pt(4, 0), 1, 1),
		task.New(2, geom.Pt(0, 4), 1, 1),
		task.New(3, geom.Pt(10, 10), 1, 1),
	})
	require.NoError(t, err)
	return &Context{
		Tick: 1,
		DT:   1,
		Workers: []*worker.Worker{
			worker.New(0, geom.Pt(0, 0), 1, 1, 0),
			worker.New(1, geom.Pt(1, 1), 1, 1, 0),
		},
		Pool: pool,
	}
}

func TestNearestBreaksTiesByTaskID(t *testing.T) {
	sel, err := NewNearest(nil)
	require.NoError(t, err)
	ctx := nearestContext(t)
	a := sel.Select(ctx)
	assert.Equal(t, []int{1}, a.Directive(0).Route, "tasks 1 and 2 are equidistant")
	assert.Equal(t, []int{2}, a.Directive(1).Route, "task 1 was taken earlier this tick")
}

func TestNearestKeepsLiveTargets(t *testing.T) {
	sel, _ := NewNearest(nil)
	ctx := nearestContext(t)
	ctx.Workers[0].Assign([]int{3})
	require.NoError(t, ctx.Pool.Claim(3, 0))
	a := sel.Select(ctx)
	assert.Equal(t, Keep, a.Directive(0).Kind)
	assert.Equal(t, []int{1}, a.Directive(1).Route)
}

func TestNearestSkipsUnavailableWorkers(t *testing.T) {
	sel, _ := NewNearest(nil)
	ctx := nearestContext(t)
	require.NoError(t, ctx.Workers[0].Fail())
	a := sel.Select(ctx)
	_, ok := a.Directives[0]
	assert.False(t, ok)
	assert.Equal(t, []int{1}, a.Directive(1).Route)
}

func TestNearestLocalVisibilityUsesKnowledge(t *testing.T) {
	sel, err := NewNearest(params.Map{"visibility": "local"})
	require.NoError(t, err)
	ctx := nearestContext(t)
	snap := knowledge.New()
	far, _ := ctx.Pool.Get(3)
	snap.ObserveTask(far, 0)
	ctx.Knowledge = map[int]*knowledge.Snapshot{0: snap}
	a := sel.Select(ctx)
	assert.Equal(t, []int{3}, a.Directive(0).Route, "only task 3 is known")
	_, ok := a.Directives[1]
	assert.False(t, ok, "worker 1 knows nothing")
}

func TestNearestRejectsUnknownParams(t *testing.T) {
	_, err := NewNearest(params.Map{"visibility": "psychic"})
	require.Error(t, err)
	_, err = NewNearest(params.Map{"radius": 3})
	require.Error(t, err)
}

func TestRegistryResolvesAliases(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("nearest", NewNearest)
	r.Alias("NearestIncompleteTaskSelector", "nearest")
	sel, err := r.Resolve("NearestIncompleteTaskSelector", nil)
	require.NoError(t, err)
	assert.Equal(t, "nearest", sel.Name())
	_, err = r.Resolve("oracle", nil)
	require.ErrorContains(t, err, "unknown class")
	require.Error(t, r.Register("nearest", NewNearest))
}
