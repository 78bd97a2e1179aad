package godb

import (
	"path/filepath"
	"testing"
)

func TestTableStatsEstimateSelectivity(t *testing.T) {
	defer ResetForTesting()
	cat := NewCatalog()
	bp := NewBufferPool(10, cat)
	desc := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	path := filepath.Join(t.TempDir(), "data.dat")
	hf, err := NewHeapFile(path, desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	cat.AddTable("t", hf)

	tid := NewTID()
	for _, v := range []int64{1, 1, 1, 2} {
		tup := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: v}}}
		if err := bp.InsertTuple(tid, hf.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	ts, err := NewTableStats(hf, NewTID())
	if err != nil {
		t.Fatalf("NewTableStats: %v", err)
	}
	if ts.NumTuples() != 4 {
		t.Fatalf("expected 4 rows observed, got %d", ts.NumTuples())
	}

	if got := ts.EstimateSelectivity(0, OpEq, IntField{Value: 99}); got != 0 {
		t.Errorf("expected a value never inserted to estimate 0 selectivity, got %v", got)
	}
	if got := ts.EstimateSelectivity(0, OpEq, IntField{Value: 1}); got <= 0 {
		t.Errorf("expected a value present 3/4 times to estimate a positive selectivity, got %v", got)
	}
}
