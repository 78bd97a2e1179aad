package godb

import "testing"

// sliceOp is a minimal Operator backed by a fixed tuple slice, used across
// the operator test files in place of a real scan.
type sliceOp struct {
	desc *TupleDesc
	rows []*Tuple
	// failAfter, if >0, makes the iterator return an error on the call
	// after yielding failAfter tuples, instead of draining cleanly.
	failAfter int
}

func (s *sliceOp) Descriptor() *TupleDesc { return s.desc }

func (s *sliceOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	i := 0
	return func() (*Tuple, error) {
		if s.failAfter > 0 && i == s.failAfter {
			return nil, NewGoDBError(IncompatibleTypesError, "simulated scan failure")
		}
		if i >= len(s.rows) {
			return nil, nil
		}
		t := s.rows[i]
		i++
		return t, nil
	}, nil
}

func intRowDesc(name string) *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: name, Ftype: IntType}}}
}

func TestFilterKeepsOnlyMatchingTuples(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 3}}},
	}}
	f, err := NewFilter(NewConstExpr(IntField{Value: 2}, IntType), OpGe, NewFieldExpr(desc.Fields[0]), child)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	iter, err := f.Iterator(NewTID())
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
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
}

func TestFilterSurfacesChildError(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}},
	}, failAfter: 1}
	f, err := NewFilter(NewConstExpr(IntField{Value: 0}, IntType), OpGe, NewFieldExpr(desc.Fields[0]), child)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	iter, err := f.Iterator(NewTID())
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
