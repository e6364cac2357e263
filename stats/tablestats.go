package stats

import (
	"coredb/tuple"
	"coredb/types"
)

// columnStats accumulates the raw material a TableStats needs before it
// can build an on-demand histogram for a column: numeric bounds and the
// full list of observed values.
type columnStats struct {
	isString bool
	min      int
	max      int
	ints     []int
	strings  []string
}

// TableStats captures one full-scan pass over a table's tuples: it keeps
// per-column min/max and value lists, then builds a fresh histogram per
// column on demand in EstimateSelectivity, exactly as the source
// TableStats does.
type TableStats struct {
	ioCostPerPage int
	numTuples     int
	numPages      int
	columns       []*columnStats
}

// Collect performs the single full scan this type is built around: given
// every tuple in a table plus its page count and the configured
// per-page I/O cost, it gathers per-column bounds and value lists.
func Collect(desc *tuple.Desc, tuples []*tuple.Tuple, numPages int, ioCostPerPage int) *TableStats {
	ts := &TableStats{
		ioCostPerPage: ioCostPerPage,
		numTuples:     len(tuples),
		numPages:      numPages,
		columns:       make([]*columnStats, desc.NumFields()),
	}
	for i := 0; i < desc.NumFields(); i++ {
		cs := &columnStats{isString: desc.FieldType(i).Kind == types.StringKind}
		if !cs.isString {
			cs.min = int(^uint(0) >> 1)
			cs.max = -cs.min - 1
		}
		ts.columns[i] = cs
	}
	for _, t := range tuples {
		for i := 0; i < desc.NumFields(); i++ {
			cs := ts.columns[i]
			if cs.isString {
				cs.strings = append(cs.strings, string(t.Field(i).(types.String)))
				continue
			}
			v := int(t.Field(i).(types.Int))
			cs.ints = append(cs.ints, v)
			if v < cs.min {
				cs.min = v
			}
			if v > cs.max {
				cs.max = v
			}
		}
	}
	return ts
}

// NumTuples returns the cardinality captured at Collect time.
func (ts *TableStats) NumTuples() int { return ts.numTuples }

// EstimateScanCost is the cost model's per-table scan cost: one
// sequential read of every page.
func (ts *TableStats) EstimateScanCost() float64 {
	return float64(ts.numPages * ts.ioCostPerPage)
}

// EstimateSelectivity builds a fresh NUM_HIST_BINS-bucket histogram for
// column i and evaluates op/v against it.
func (ts *TableStats) EstimateSelectivity(i int, op types.Op, v types.Value, numBins int) float64 {
	cs := ts.columns[i]
	if cs.isString {
		h := NewStringHistogram(numBins)
		for _, s := range cs.strings {
			h.AddValue(s)
		}
		return h.EstimateSelectivity(op, string(v.(types.String)))
	}
	h := NewIntHistogram(numBins, cs.min, cs.max)
	for _, iv := range cs.ints {
		h.AddValue(iv)
	}
	return h.EstimateSelectivity(op, int(v.(types.Int)))
}
