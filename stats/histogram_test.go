package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coredb/types"
)

func TestIntHistogramEqualitySelectivity(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for i := 1; i <= 100; i++ {
		h.AddValue(i)
	}

	got := h.EstimateSelectivity(types.Equals, 50)
	assert.InDelta(t, 0.01, got, 0.005)
}

func TestIntHistogramOutOfRangeEquality(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for i := 1; i <= 100; i++ {
		h.AddValue(i)
	}
	assert.Equal(t, 0.0, h.EstimateSelectivity(types.Equals, 1000))
}

func TestIntHistogramGreaterThanMonotone(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for i := 1; i <= 100; i++ {
		h.AddValue(i)
	}
	low := h.EstimateSelectivity(types.GreaterThan, 10)
	high := h.EstimateSelectivity(types.GreaterThan, 90)
	assert.Greater(t, low, high)
}

func TestIntHistogramBoundaryEdges(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for i := 1; i <= 100; i++ {
		h.AddValue(i)
	}
	assert.Equal(t, 1.0, h.EstimateSelectivity(types.GreaterThan, 0))
	assert.Equal(t, 0.0, h.EstimateSelectivity(types.GreaterThan, 100))
}

func TestIntHistogramNotEqualsComplementsEquals(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for i := 1; i <= 100; i++ {
		h.AddValue(i)
	}
	eq := h.EstimateSelectivity(types.Equals, 50)
	neq := h.EstimateSelectivity(types.NotEquals, 50)
	assert.InDelta(t, 1.0, eq+neq, 1e-9)
}

func TestIntHistogramClampsBucketsToValueRange(t *testing.T) {
	h := NewIntHistogram(1000, 1, 5)
	assert.Equal(t, 5, len(h.buckets))
}

func TestStringHistogramCodeOrderingPreservesLexicalOrder(t *testing.T) {
	assert.Less(t, StringCode("apple"), StringCode("banana"))
	assert.Less(t, StringCode("aa"), StringCode("ab"))
}

func TestStringHistogramSelectivityInRange(t *testing.T) {
	h := NewStringHistogram(10)
	for _, s := range []string{"apple", "banana", "cherry", "date", "egg"} {
		h.AddValue(s)
	}
	sel := h.EstimateSelectivity(types.Equals, "cherry")
	assert.GreaterOrEqual(t, sel, 0.0)
	assert.LessOrEqual(t, sel, 1.0)
}
