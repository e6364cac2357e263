// Package stats implements the equi-width selectivity histograms and
// per-table statistics the join optimizer costs predicates against.
package stats

import (
	"golang.org/x/exp/constraints"

	"coredb/types"
)

// bucketIndex returns the bucket holding v, clamped to [0, numBuckets-1].
func bucketIndex[T constraints.Integer](v, min, width T, numBuckets int) int {
	idx := int((v - min) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	return idx
}

// IntHistogram is an equi-width histogram over a bounded integer domain,
// following the construction and selectivity formulas of the source
// implementation's IntHistogram exactly.
type IntHistogram struct {
	buckets []int
	min     int
	max     int
	width   int
	ntups   int
}

// NewIntHistogram builds an empty histogram over [min, max]. The
// requested bucket count is clamped to the distinct-value range when that
// range is smaller.
func NewIntHistogram(buckets, min, max int) *IntHistogram {
	valueRange := max - min + 1
	if buckets > valueRange {
		buckets = valueRange
	}
	if buckets < 1 {
		buckets = 1
	}
	width := valueRange / buckets
	if width < 1 {
		width = 1
	}
	return &IntHistogram{
		buckets: make([]int, buckets),
		min:     min,
		max:     max,
		width:   width,
	}
}

// AddValue records one occurrence of v.
func (h *IntHistogram) AddValue(v int) {
	if v < h.min || v > h.max {
		return
	}
	h.buckets[bucketIndex(v, h.min, h.width, len(h.buckets))]++
	h.ntups++
}

// bucketBounds returns the half-open [left, right) real-valued bounds of
// bucket i.
func (h *IntHistogram) bucketBounds(i int) (left, right float64) {
	left = float64(h.min) + float64(i)*float64(h.width)
	right = left + float64(h.width)
	return
}

// EstimateSelectivity returns P(field op v) over the values this
// histogram was built from.
func (h *IntHistogram) EstimateSelectivity(op types.Op, v int) float64 {
	switch op {
	case types.Equals:
		return h.estimateEqual(v)
	case types.NotEquals:
		return 1.0 - h.estimateEqual(v)
	case types.GreaterThan:
		return h.estimateGreater(v)
	case types.GreaterThanOrEq:
		return h.estimateGreater(v - 1)
	case types.LessThan:
		return h.estimateLess(v)
	case types.LessThanOrEq:
		return h.estimateLess(v + 1)
	default:
		return 0
	}
}

func (h *IntHistogram) estimateEqual(v int) float64 {
	if v < h.min || v > h.max || h.ntups == 0 {
		return 0
	}
	i := bucketIndex(v, h.min, h.width, len(h.buckets))
	height := float64(h.buckets[i])
	return (height / float64(h.width)) / float64(h.ntups)
}

func (h *IntHistogram) estimateGreater(v int) float64 {
	if h.ntups == 0 {
		return 0
	}
	if v < h.min {
		return 1
	}
	if v >= h.max {
		return 0
	}
	i := bucketIndex(v, h.min, h.width, len(h.buckets))
	_, right := h.bucketBounds(i)
	bFrac := (right - float64(v)) / float64(h.width) * (float64(h.buckets[i]) / float64(h.ntups))

	var higher float64
	for j := i + 1; j < len(h.buckets); j++ {
		higher += float64(h.buckets[j]) / float64(h.ntups)
	}
	return bFrac + higher
}

func (h *IntHistogram) estimateLess(v int) float64 {
	if h.ntups == 0 {
		return 0
	}
	// P(< v) = 1 - P(>= v) = 1 - P(> v-1)
	return 1.0 - h.estimateGreater(v-1)
}

// StringHistogram maps strings to an integer code (the leading four
// characters packed base-128) and delegates to an IntHistogram over that
// fixed code range.
type StringHistogram struct {
	inner *IntHistogram
}

// stringCodeMin/Max bound the 4-character base-128 code space.
const (
	stringCodeMin = 0
	stringCodeMax = 128*128*128*128 - 1
)

func StringCode(s string) int {
	code := 0
	for i := 0; i < 4; i++ {
		code *= 128
		if i < len(s) {
			c := int(s[i])
			if c > 127 {
				c = 127
			}
			code += c
		}
	}
	return code
}

// NewStringHistogram builds an empty histogram with the given bucket
// count over the fixed string-code range.
func NewStringHistogram(buckets int) *StringHistogram {
	return &StringHistogram{inner: NewIntHistogram(buckets, stringCodeMin, stringCodeMax)}
}

func (h *StringHistogram) AddValue(s string) { h.inner.AddValue(StringCode(s)) }

func (h *StringHistogram) EstimateSelectivity(op types.Op, s string) float64 {
	return h.inner.EstimateSelectivity(op, StringCode(s))
}
