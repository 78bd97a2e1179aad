package godb

import "testing"

func TestOrderBySortsAscendingAndDescending(t *testing.T) {
	desc := intRowDesc("id")
	rows := []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 3}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
	}

	asc, err := NewOrderBy([]Expr{NewFieldExpr(desc.Fields[0])}, &sliceOp{desc: desc, rows: rows}, []bool{true})
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}
	ascResult := drainInts(t, asc)
	if ascResult[0] != 1 || ascResult[1] != 2 || ascResult[2] != 3 {
		t.Errorf("expected ascending [1 2 3], got %v", ascResult)
	}

	desc2, err := NewOrderBy([]Expr{NewFieldExpr(desc.Fields[0])}, &sliceOp{desc: desc, rows: rows}, []bool{false})
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}
	descResult := drainInts(t, desc2)
	if descResult[0] != 3 || descResult[1] != 2 || descResult[2] != 1 {
		t.Errorf("expected descending [3 2 1], got %v", descResult)
	}
}

func drainInts(t *testing.T, op Operator) []int64 {
	t.Helper()
	iter, err := op.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	var got []int64
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		if tup == nil {
			break
		}
		got = append(got, tup.Fields[0].(IntField).Value)
	}
	return got
}

func TestOrderBySurfacesChildError(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}, failAfter: 1}
	ob, err := NewOrderBy([]Expr{NewFieldExpr(desc.Fields[0])}, child, []bool{true})
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}
	if _, err := ob.Iterator(NewTID()); err == nil {
		t.Errorf("expected the child's simulated failure to surface from Iterator, since it drains before sorting")
	}
}
