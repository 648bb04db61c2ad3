package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

func TestRecordWritesEveryStream(t *testing.T) {
	var c, tk, w bytes.Buffer
	rec := New("toy", 3, Writers{Commander: &c, Tasks: &tk, Workers: &w})

	pool, err := task.NewPool([]*task.Task{task.New(1, geom.Pt(1, 1), 2, 2), task.New(2, geom.Pt(2, 2), 1, 1)})
	require.NoError(t, err)
	require.NoError(t, pool.Claim(1, 0))
	pool.ApplyWork(2, 0, 1, 4)
	wk := worker.New(0, geom.Pt(0.5, 0.25), 1, 1, 0.1)
	wk.Assign([]int{1})

	ages := []knowledge.Age{{Kind: knowledge.KindTask, ID: 1, Age: 2}, {Kind: knowledge.KindWorker, ID: 0, Age: 1}}
	require.NoError(t, rec.Record(5, ages, pool, []*worker.Worker{wk}))
	require.NoError(t, rec.Flush())

	assert.Equal(t, strings.Join([]string{
		"scenario,seed,step,kind,id,info_age",
		"toy,3,5,task,1,2",
		"toy,3,5,worker,0,1",
		"toy,3,5,sum,,3",
		"",
	}, "\n"), c.String())
	assert.Equal(t, strings.Join([]string{
		"scenario,seed,step,task_id,remaining_work,status,claimant,finished_step",
		"toy,3,5,1,2,claimed,0,",
		"toy,3,5,2,0,completed,0,4",
		"",
	}, "\n"), tk.String())
	assert.Equal(t, strings.Join([]string{
		"scenario,seed,step,worker_id,x,y,fatigue,health,cum_distance,target",
		"toy,3,5,0,0.5,0.25,0.1,operational,0,1",
		"",
	}, "\n"), w.String())
}

func TestCreateNamesFilesBySeed(t *testing.T) {
	dir := t.TempDir()
	rec, err := Create(dir, "toy", 7)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	for _, stream := range []string{StreamCommander, StreamTasks, StreamWorkers} {
		_, err := os.Stat(filepath.Join(dir, "toy_seed0007_"+stream+".csv"))
		assert.NoError(t, err, stream)
	}
	assert.Len(t, rec.Paths(), 3)
}
