package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/tuple"
	"coredb/types"
)

func statsDesc() *tuple.Desc {
	return tuple.NewDesc(
		tuple.FieldDesc{Name: "id", Type: types.IntType},
		tuple.FieldDesc{Name: "name", Type: types.StringType(8)},
	)
}

func makeTuples(n int) []*tuple.Tuple {
	desc := statsDesc()
	tuples := make([]*tuple.Tuple, n)
	names := []string{"alice", "bob", "carol", "dan"}
	for i := 0; i < n; i++ {
		tp := tuple.NewTuple(desc)
		_ = tp.SetField(0, types.Int(i))
		_ = tp.SetField(1, types.String(names[i%len(names)]))
		tuples[i] = tp
	}
	return tuples
}

func TestCollectCountsTuplesAndPages(t *testing.T) {
	ts := Collect(statsDesc(), makeTuples(40), 3, 1000)
	assert.Equal(t, 40, ts.NumTuples())
	assert.Equal(t, 3000.0, ts.EstimateScanCost())
}

func TestEstimateSelectivityIntColumnInRange(t *testing.T) {
	ts := Collect(statsDesc(), makeTuples(50), 1, 1)
	sel := ts.EstimateSelectivity(0, types.Equals, types.Int(25), 10)
	require.GreaterOrEqual(t, sel, 0.0)
	require.LessOrEqual(t, sel, 1.0)
}

func TestEstimateSelectivityStringColumn(t *testing.T) {
	ts := Collect(statsDesc(), makeTuples(50), 1, 1)
	sel := ts.EstimateSelectivity(1, types.Equals, types.String("alice"), 10)
	require.Greater(t, sel, 0.0)
}
