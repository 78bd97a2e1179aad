package godb

import (
	"path/filepath"
	"testing"
)

func TestBufferPoolCommitFlushesDirtyPages(t *testing.T) {
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
	tup := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}}
	if err := bp.InsertTuple(tid, hf.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	// A fresh read, in its own pool with nothing cached, must see the
	// committed write on disk.
	bp2 := NewBufferPool(10, cat)
	hf.bufPool = bp2
	readTid := NewTID()
	page, err := bp2.getPage(readTid, PageID{Table: hf.TableID(), PageNum: 0}, ReadPerm)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	hp := page.(*heapPage)
	if hp.numEmptySlots() == hp.getNumSlots() {
		t.Errorf("committed insert did not reach disk")
	}
}

func TestBufferPoolAbortRollsBackInMemory(t *testing.T) {
	defer ResetForTesting()
	cat := NewCatalog()
	bp := NewBufferPool(10, cat)
	desc := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	path := filepath.Join(t.TempDir(), "data.dat")
	hf, _ := NewHeapFile(path, desc, bp)
	cat.AddTable("t", hf)

	setupTid := NewTID()
	first := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: 1}}}
	if err := bp.InsertTuple(setupTid, hf.TableID(), first); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := bp.TransactionComplete(setupTid, true); err != nil {
		t.Fatalf("commit setup: %v", err)
	}

	abortTid := NewTID()
	second := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: 2}}}
	if err := bp.InsertTuple(abortTid, hf.TableID(), second); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	pid := PageID{Table: hf.TableID(), PageNum: 0}
	page := bp.pages[pid].(*heapPage)
	if page.numEmptySlots() != page.getNumSlots()-2 {
		t.Fatalf("expected two occupied slots before abort")
	}

	if err := bp.TransactionComplete(abortTid, false); err != nil {
		t.Fatalf("abort: %v", err)
	}
	rolledBack := bp.pages[pid].(*heapPage)
	if rolledBack.numEmptySlots() != rolledBack.getNumSlots()-1 {
		t.Errorf("abort should have rolled back the second insert, leaving one occupied slot")
	}
}

func TestBufferPoolEvictsOnlyCleanPages(t *testing.T) {
	defer ResetForTesting()
	SetPageSize(128)
	cat := NewCatalog()
	bp := NewBufferPool(1, cat)
	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "val", Ftype: StringType, StrLen: 8},
	}}
	path := filepath.Join(t.TempDir(), "data.dat")
	hf, _ := NewHeapFile(path, desc, bp)
	cat.AddTable("t", hf)

	tid := NewTID()
	tup := &Tuple{Desc: *desc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "a"}}}
	if err := bp.InsertTuple(tid, hf.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	// The pool holds one dirty page and has capacity 1: a second distinct
	// page cannot be fetched without an evictable (clean) victim.
	_, err := bp.getPage(tid, PageID{Table: hf.TableID(), PageNum: 1}, ReadPerm)
	if err == nil {
		t.Fatalf("expected BufferFullError, buffer pool is full of dirty pages")
	}
	gerr, ok := err.(GoDBError)
	if !ok || gerr.Code != BufferFullError {
		t.Errorf("expected BufferFullError, got %v", err)
	}
}
