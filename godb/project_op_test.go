package godb

import "testing"

func TestProjectDistinctSuppressesDuplicatesOnly(t *testing.T) {
	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType, StrLen: 8},
	}}
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "a"}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "a"}}}, // exact duplicate
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}, StringField{Value: "a"}}}, // distinct: different id
		{Desc: *desc, Fields: []DBValue{IntField{Value: 2}, StringField{Value: "a"}}}, // duplicate of the above
	}}

	proj, err := NewProjectOp(
		[]Expr{NewFieldExpr(desc.Fields[0]), NewFieldExpr(desc.Fields[1])},
		[]string{"id", "name"},
		true,
		child,
	)
	if err != nil {
		t.Fatalf("NewProjectOp: %v", err)
	}
	iter, err := proj.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}

	var ids []int64
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		if tup == nil {
			break
		}
		ids = append(ids, tup.Fields[0].(IntField).Value)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected exactly one row per distinct (id,name) pair, got %v", ids)
	}
}

func TestProjectWithoutDistinctKeepsDuplicates(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}}
	proj, err := NewProjectOp([]Expr{NewFieldExpr(desc.Fields[0])}, []string{"id"}, false, child)
	if err != nil {
		t.Fatalf("NewProjectOp: %v", err)
	}
	iter, err := proj.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	count := 0
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected both duplicate rows to pass through, got %d", count)
	}
}

func TestProjectRenamesOutputFields(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 7}}},
	}}
	proj, err := NewProjectOp([]Expr{NewFieldExpr(desc.Fields[0])}, []string{"renamed"}, false, child)
	if err != nil {
		t.Fatalf("NewProjectOp: %v", err)
	}
	if proj.Descriptor().Fields[0].Fname != "renamed" {
		t.Errorf("expected output field named %q, got %q", "renamed", proj.Descriptor().Fields[0].Fname)
	}
}

func TestProjectSurfacesChildError(t *testing.T) {
	desc := intRowDesc("id")
	child := &sliceOp{desc: desc, rows: []*Tuple{
		{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}},
	}, failAfter: 1}
	proj, err := NewProjectOp([]Expr{NewFieldExpr(desc.Fields[0])}, []string{"id"}, false, child)
	if err != nil {
		t.Fatalf("NewProjectOp: %v", err)
	}
	iter, err := proj.Iterator(NewTID())
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
