package godb

import "testing"

func TestLimitOpStopsAtLimit(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 3}}},
	}}
	limit := NewLimitOp(NewConstExpr(IntField{Value: 2}, IntType), child)
	got := drainInts(t, limit)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected the first 2 rows [1 2], got %v", got)
	}
}

func TestLimitOpLargerThanInputYieldsEverything(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}}
	limit := NewLimitOp(NewConstExpr(IntField{Value: 10}, IntType), child)
	got := drainInts(t, limit)
	if len(got) != 1 {
		t.Errorf("expected all 1 input rows when limit exceeds input size, got %v", got)
	}
}

func TestLimitOpSurfacesChildError(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
	}, failAfter: 1}
	limit := NewLimitOp(NewConstExpr(IntField{Value: 5}, IntType), child)
	iter, err := limit.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	if _, err := iter(); err != nil {
		t.Fatalf("first pull: %v", err)
	}
	if _, err := iter(); err == nil {
		t.Errorf("expected the child's simulated failure to surface, got nil error")
	}
}
