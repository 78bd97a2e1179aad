package godb

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestHeapFile(t *testing.T, bp *BufferPool) *HeapFile {
	t.Helper()
	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType, StrLen: 16},
	}}
	path := filepath.Join(t.TempDir(), "data.dat")
	hf, err := NewHeapFile(path, desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf
}

func newTestPool(t *testing.T, capacity int) (*BufferPool, *catalog) {
	t.Helper()
	cat := NewCatalog()
	return NewBufferPool(capacity, cat), cat
}

func TestHeapFileInsertFillsPagesBeforeAppending(t *testing.T) {
	defer ResetForTesting()
	SetPageSize(128)
	bp, cat := newTestPool(t, 10)
	hf := newTestHeapFile(t, bp)
	if err := cat.AddTable("t", hf); err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	tid := NewTID()
	desc := hf.Descriptor()
	slotsPerPage := slotsForTupleWidth(desc.width())
	if slotsPerPage < 1 {
		t.Fatalf("page size too small for this descriptor")
	}

	for i := 0; i < slotsPerPage; i++ {
		tup := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: int64(i)}, StringField{Value: "x"}}}
		if err := bp.InsertTuple(tid, hf.TableID(), tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if hf.NumPages() != 1 {
		t.Fatalf("after filling one page's worth of slots, NumPages() = %d, want 1", hf.NumPages())
	}

	overflow := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: 999}, StringField{Value: "y"}}}
	if err := bp.InsertTuple(tid, hf.TableID(), overflow); err != nil {
		t.Fatalf("overflow insert: %v", err)
	}
	if hf.NumPages() != 2 {
		t.Fatalf("after one more insert, NumPages() = %d, want 2", hf.NumPages())
	}

	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}
}

func TestHeapFileIteratorAndDelete(t *testing.T) {
	defer ResetForTesting()
	bp, cat := newTestPool(t, 10)
	hf := newTestHeapFile(t, bp)
	cat.AddTable("t", hf)
	desc := hf.Descriptor()

	tid := NewTID()
	for i := 0; i < 5; i++ {
		tup := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: int64(i)}, StringField{Value: "x"}}}
		if err := bp.InsertTuple(tid, hf.TableID(), tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	readTid := NewTID()
	iter, err := hf.Iterator(readTid)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	var seen []*Tuple
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if tup == nil {
			break
		}
		seen = append(seen, tup)
	}
	if len(seen) != 5 {
		t.Fatalf("got %d tuples, want 5", len(seen))
	}
	bp.TransactionComplete(readTid, true)

	delTid := NewTID()
	if err := bp.DeleteTuple(delTid, seen[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	bp.TransactionComplete(delTid, true)

	remainTid := NewTID()
	iter, _ = hf.Iterator(remainTid)
	count := 0
	for {
		tup, _ := iter()
		if tup == nil {
			break
		}
		count++
	}
	if count != 4 {
		t.Fatalf("got %d tuples after delete, want 4", count)
	}
	bp.TransactionComplete(remainTid, true)
}

func TestHeapFileIteratorExhaustionErrors(t *testing.T) {
	defer ResetForTesting()
	bp, cat := newTestPool(t, 10)
	hf := newTestHeapFile(t, bp)
	cat.AddTable("t", hf)

	tid := NewTID()
	it := hf.NewIterator(tid)
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	has, err := it.HasNext()
	if err != nil {
		t.Fatalf("HasNext: %v", err)
	}
	if has {
		t.Fatalf("empty file reported HasNext true")
	}
	if _, err := it.Next(); err == nil {
		t.Fatalf("expected NoSuchElementError on empty iterator")
	} else if gerr, ok := err.(GoDBError); !ok || gerr.Code != NoSuchElementError {
		t.Errorf("expected NoSuchElementError, got %v", err)
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	defer ResetForTesting()
	bp, _ := newTestPool(t, 10)
	hf := newTestHeapFile(t, bp)
	if _, err := hf.readPage(0); err == nil {
		t.Fatalf("expected IllegalPageError reading page 0 of an empty file")
	} else if gerr, ok := err.(GoDBError); !ok || gerr.Code != IllegalPageError {
		t.Errorf("expected IllegalPageError, got %v", err)
	}
}

func TestLoadFromCSV(t *testing.T) {
	defer ResetForTesting()
	bp, cat := newTestPool(t, 10)
	hf := newTestHeapFile(t, bp)
	cat.AddTable("t", hf)

	csvPath := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(csvPath, []byte("id,name\n1,alice\n2,bob\n"), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	if err := hf.LoadFromCSV(f, true, ",", false); err != nil {
		t.Fatalf("LoadFromCSV: %v", err)
	}

	sum, err := SumIntColumn(NewTID(), hf, "id")
	if err != nil {
		t.Fatalf("SumIntColumn: %v", err)
	}
	if sum != 3 {
		t.Errorf("got sum %d, want 3", sum)
	}
}
