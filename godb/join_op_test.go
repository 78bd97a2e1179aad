package godb

import "testing"

func TestEqualityJoinProducesFullCrossProductPerGroup(t *testing.T) {
	leftDesc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "tag", Ftype: StringType, StrLen: 8},
	}}
	rightDesc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "amount", Ftype: IntType},
	}}

	// Group id=1 has two tuples on the left and three on the right: the
	// merge step must emit all 2*3=6 combinations, not one pair per group.
	// Group id=2 has one tuple on each side (1*1=1 combination). Group
	// id=3 appears only on the left, and never matches.
	left := &sliceOp{desc: leftDesc, rows: []*Tuple{
		{Desc: *leftDesc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "a"}}},
		{Desc: *leftDesc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "b"}}},
		{Desc: *leftDesc, Fields: []DBValue{IntField{Value: 2}, StringField{Value: "c"}}},
		{Desc: *leftDesc, Fields: []DBValue{IntField{Value: 3}, StringField{Value: "d"}}},
	}}
	right := &sliceOp{desc: rightDesc, rows: []*Tuple{
		{Desc: *rightDesc, Fields: []DBValue{IntField{Value: 1}, IntField{Value: 10}}},
		{Desc: *rightDesc, Fields: []DBValue{IntField{Value: 1}, IntField{Value: 20}}},
		{Desc: *rightDesc, Fields: []DBValue{IntField{Value: 1}, IntField{Value: 30}}},
		{Desc: *rightDesc, Fields: []DBValue{IntField{Value: 2}, IntField{Value: 40}}},
	}}

	var leftOp, rightOp Operator = left, right
	join, err := NewJoin(leftOp, NewFieldExpr(leftDesc.Fields[0]), rightOp, NewFieldExpr(rightDesc.Fields[0]), 0)
	if err != nil {
		t.Fatalf("NewJoin: %v", err)
	}
	iter, err := join.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}

	var results []*Tuple
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		if tup == nil {
			break
		}
		results = append(results, tup)
	}

	if len(results) != 7 {
		t.Fatalf("expected 6 matches for id=1 plus 1 for id=2 (7 total), got %d", len(results))
	}

	groupOneCount, groupTwoCount := 0, 0
	for _, r := range results {
		switch r.Fields[0].(IntField).Value {
		case 1:
			groupOneCount++
		case 2:
			groupTwoCount++
		default:
			t.Errorf("unexpected joined id %v", r.Fields[0])
		}
	}
	if groupOneCount != 6 {
		t.Errorf("expected 6 rows for the id=1 group (2 left x 3 right), got %d", groupOneCount)
	}
	if groupTwoCount != 1 {
		t.Errorf("expected 1 row for the id=2 group, got %d", groupTwoCount)
	}
}

func TestEqualityJoinSurfacesChildError(t *testing.T) {
	desc := intRowDesc("id")
	left := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}, failAfter: 1}
	right := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}}

	var leftOp, rightOp Operator = left, right
	join, err := NewJoin(leftOp, NewFieldExpr(desc.Fields[0]), rightOp, NewFieldExpr(desc.Fields[0]), 0)
	if err != nil {
		t.Fatalf("NewJoin: %v", err)
	}
	if _, err := join.Iterator(NewTID()); err == nil {
		t.Errorf("expected the left child's simulated failure to surface from Iterator")
	}
}

func TestFindEqualRangeSpansMultipleMatches(t *testing.T) {
	desc := intRowDesc("id")
	tuples := []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
	}
	end, err := findEqualRange(tuples, 0, NewFieldExpr(desc.Fields[0]))
	if err != nil {
		t.Fatalf("findEqualRange: %v", err)
	}
	if end != 3 {
		t.Errorf("expected the run of three matching 1s to end at index 3, got %d", end)
	}
}
