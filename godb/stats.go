package godb

// Per-table selectivity statistics, used to estimate how many rows a filter
// predicate will let through without having to run it. One fieldHistogram
// per column is built from a single full scan; each is a count-min sketch
// rather than an exact per-value count, since an exact histogram over a
// large table would cost as much memory as the table itself.

import (
	"strconv"

	"github.com/tylertreat/BoomFilters"
)

type fieldHistogram struct {
	cms   *boom.CountMinSketch
	total uint64
}

func newFieldHistogram() *fieldHistogram {
	return &fieldHistogram{cms: boom.NewCountMinSketch(0.001, 0.999)}
}

func (h *fieldHistogram) addValue(v DBValue) {
	h.cms.Add(fieldBytes(v))
	h.total++
}

// estimateEqSelectivity estimates the fraction of rows for which this
// column equals v.
func (h *fieldHistogram) estimateEqSelectivity(v DBValue) float64 {
	if h.total == 0 {
		return 0
	}
	return float64(h.cms.Count(fieldBytes(v))) / float64(h.total)
}

func fieldBytes(v DBValue) []byte {
	switch f := v.(type) {
	case IntField:
		return []byte(strconv.FormatInt(f.Value, 10))
	case StringField:
		return []byte(f.Value)
	}
	return nil
}

// rangeSelectivityGuess is used for predicates a count-min sketch cannot
// model (anything but equality/inequality): <, <=, >, >=.
const rangeSelectivityGuess = 0.3

// TableStats holds one fieldHistogram per column of a table. It is built
// once, by a full scan, and is advisory only: no operator in the query layer
// consults it.
type TableStats struct {
	desc       *TupleDesc
	histograms []*fieldHistogram
	numTuples  int
}

// NewTableStats scans every tuple of f under tid and builds a histogram for
// each of its columns.
func NewTableStats(f DBFile, tid TransactionID) (*TableStats, error) {
	desc := f.Descriptor()
	ts := &TableStats{
		desc:       desc,
		histograms: make([]*fieldHistogram, len(desc.Fields)),
	}
	for i := range ts.histograms {
		ts.histograms[i] = newFieldHistogram()
	}

	iter, err := f.Iterator(tid)
	if err != nil {
		return nil, err
	}
	for {
		t, err := iter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		for i, v := range t.Fields {
			ts.histograms[i].addValue(v)
		}
		ts.numTuples++
	}
	return ts, nil
}

// NumTuples returns the row count observed when the statistics were built.
func (ts *TableStats) NumTuples() int {
	return ts.numTuples
}

// EstimateSelectivity estimates the fraction of rows satisfying
// "column(field) op value".
func (ts *TableStats) EstimateSelectivity(field int, op BoolOp, value DBValue) float64 {
	if field < 0 || field >= len(ts.histograms) {
		return 1.0
	}
	switch op {
	case OpEq:
		return ts.histograms[field].estimateEqSelectivity(value)
	case OpNeq:
		return 1.0 - ts.histograms[field].estimateEqSelectivity(value)
	default:
		return rangeSelectivityGuess
	}
}
