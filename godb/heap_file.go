package godb

// A HeapFile is an unordered collection of tuples backed by a regular file
// whose length is always a multiple of PageSize: page k occupies byte range
// [k*PageSize, (k+1)*PageSize).
//
// HeapFile is a public type because external callers (the CSV loader, the
// catalog) need to construct one directly.

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
)

type HeapFile struct {
	backingFile string
	tupleDesc   *TupleDesc
	bufPool     *BufferPool
	table       TableID

	// fileMu serializes appends to the backing file: two transactions
	// racing to add the num_pages'th page must not both win.
	fileMu sync.Mutex
}

// NewHeapFile constructs a HeapFile over fromFile, which may be empty or a
// previously-created heap file, using td as its tuple descriptor and bp as
// the buffer pool pages are cached through.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	return &HeapFile{
		backingFile: fromFile,
		tupleDesc:   td,
		bufPool:     bp,
		table:       TableIDForPath(fromFile),
	}, nil
}

// BackingFile returns the name of the file this HeapFile is backed by.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// TableID returns the stable identifier of this file's table.
func (f *HeapFile) TableID() TableID {
	return f.table
}

// NumPages returns file_length / PageSize. A file that does not yet exist,
// or is empty, has zero pages.
func (f *HeapFile) NumPages() int {
	info, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	return int(info.Size() / int64(PageSize))
}

// Descriptor returns the TupleDesc supplied to NewHeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// readPage reads page pageNo from disk and parses it. Fails with
// IllegalPageError if pageNo is out of range for the file's current length.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	offset := int64(pageNo) * int64(PageSize)
	info, err := os.Stat(f.backingFile)
	if err != nil || offset+int64(PageSize) > info.Size() {
		return nil, NewGoDBError(IllegalPageError, "page %d out of range for %s", pageNo, f.backingFile)
	}

	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, NewGoDBError(IoFailureError, "opening %s: %v", f.backingFile, err)
	}
	defer file.Close()

	data := make([]byte, PageSize)
	if _, err := file.ReadAt(data, offset); err != nil {
		return nil, NewGoDBError(IoFailureError, "reading page %d of %s: %v", pageNo, f.backingFile, err)
	}

	pid := PageID{Table: f.table, PageNum: pageNo}
	return newHeapPageFromBytes(pid, f.tupleDesc, f, data)
}

// writePage writes p's serialized bytes to its slot on disk, extending the
// file if p is exactly one page past the current end.
func (f *HeapFile) writePage(p *heapPage) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return NewGoDBError(IoFailureError, "opening %s: %v", f.backingFile, err)
	}
	defer file.Close()

	data, err := p.toBytes()
	if err != nil {
		return err
	}
	offset := int64(p.pid.PageNum) * int64(PageSize)
	if _, err := file.WriteAt(data, offset); err != nil {
		return NewGoDBError(IoFailureError, "writing page %d of %s: %v", p.pid.PageNum, f.backingFile, err)
	}
	return nil
}

// flushPage writes p to disk. Called by the buffer pool on commit and by its
// FlushPage/FlushAllPages; eviction never writes a page. The page is not
// marked clean here, that is the buffer pool's responsibility.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return NewGoDBError(IoFailureError, "flushPage: not a heap page")
	}
	return f.writePage(hp)
}

// insertTuple finds room for t and writes it there. It scans existing pages
// read-only looking for one with a free slot, upgrading to a write lock only
// once a candidate is found; if none has room, it appends a new empty page
// to the file and inserts into that. The returned pages have already been
// fetched (and so locked) through the buffer pool. The page's own insert sets
// its dirty flag, but recording the dirtying transaction and installing the
// page in the cache is the buffer pool's job once insertTuple returns to it.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	if !t.Desc.equals(f.tupleDesc) {
		return nil, NewGoDBError(SchemaMismatchError, "tuple descriptor does not match table descriptor")
	}

	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		pid := PageID{Table: f.table, PageNum: pageNo}
		rp, err := f.bufPool.getPage(tid, pid, ReadPerm)
		if err != nil {
			return nil, err
		}
		hp := rp.(*heapPage)
		if hp.numEmptySlots() == 0 {
			continue
		}
		wp, err := f.bufPool.getPage(tid, pid, WritePerm)
		if err != nil {
			return nil, err
		}
		whp := wp.(*heapPage)
		if whp.numEmptySlots() == 0 {
			// Lost a race with another transaction's insert between
			// our read-only peek and the write upgrade; keep scanning.
			continue
		}
		if _, err := whp.insertTuple(t); err != nil {
			return nil, err
		}
		return []Page{whp}, nil
	}

	return f.appendPageAndInsert(t, tid)
}

// appendPageAndInsert appends a fresh empty page to the file, then fetches
// it read-write through the buffer pool and inserts t into it.
func (f *HeapFile) appendPageAndInsert(t *Tuple, tid TransactionID) ([]Page, error) {
	f.fileMu.Lock()
	pageNo := f.NumPages()
	pid := PageID{Table: f.table, PageNum: pageNo}
	empty, err := newHeapPage(pid, f.tupleDesc, f)
	if err != nil {
		f.fileMu.Unlock()
		return nil, err
	}
	if err := f.writePage(empty); err != nil {
		f.fileMu.Unlock()
		return nil, err
	}
	f.fileMu.Unlock()

	wp, err := f.bufPool.getPage(tid, pid, WritePerm)
	if err != nil {
		return nil, err
	}
	whp := wp.(*heapPage)
	if _, err := whp.insertTuple(t); err != nil {
		return nil, err
	}
	return []Page{whp}, nil
}

// deleteTuple removes the tuple named by t.Rid, fetching its page
// read-write through the buffer pool.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	if t.Rid == nil {
		return nil, NewGoDBError(TupleNotOnPageError, "tuple has no record id")
	}
	rid := *t.Rid
	wp, err := f.bufPool.getPage(tid, rid.PID, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := wp.(*heapPage)
	if err := hp.deleteTuple(rid); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// HeapFileIterator walks the tuples of a HeapFile in page-then-slot order,
// fetching each page read-only through the buffer pool. It implements the
// open/close/has_next/next/rewind contract used by the query layer.
type HeapFileIterator struct {
	tid  TransactionID
	file *HeapFile

	pageNo  int
	pageIt  func() (*Tuple, error)
	peeked  *Tuple
	gotPeek bool
}

// NewIterator constructs a HeapFileIterator over f under tid. It must be
// Open'd before use.
func (f *HeapFile) NewIterator(tid TransactionID) *HeapFileIterator {
	return &HeapFileIterator{tid: tid, file: f}
}

// Open positions the iterator at the first tuple.
func (it *HeapFileIterator) Open() error {
	return it.Rewind()
}

// Close releases the iterator's in-memory state. It does not release any
// locks; those are held until transactionComplete, per strict 2PL.
func (it *HeapFileIterator) Close() error {
	it.pageIt = nil
	it.gotPeek = false
	it.peeked = nil
	return nil
}

// Rewind restarts iteration from the first tuple.
func (it *HeapFileIterator) Rewind() error {
	it.pageNo = 0
	it.pageIt = nil
	it.gotPeek = false
	it.peeked = nil
	return nil
}

func (it *HeapFileIterator) advance() (*Tuple, error) {
	for it.pageNo < it.file.NumPages() {
		if it.pageIt == nil {
			pid := PageID{Table: it.file.table, PageNum: it.pageNo}
			p, err := it.file.bufPool.getPage(it.tid, pid, ReadPerm)
			if err != nil {
				return nil, err
			}
			it.pageIt = p.(*heapPage).tupleIter()
		}
		t, err := it.pageIt()
		if err != nil {
			return nil, err
		}
		if t != nil {
			out := *t
			out.Desc = *it.file.tupleDesc
			return &out, nil
		}
		it.pageIt = nil
		it.pageNo++
	}
	return nil, nil
}

// HasNext reports whether a subsequent call to Next will succeed.
func (it *HeapFileIterator) HasNext() (bool, error) {
	if it.gotPeek {
		return it.peeked != nil, nil
	}
	t, err := it.advance()
	if err != nil {
		return false, err
	}
	it.peeked, it.gotPeek = t, true
	return t != nil, nil
}

// Next returns the next tuple, failing with NoSuchElementError once
// exhausted.
func (it *HeapFileIterator) Next() (*Tuple, error) {
	if !it.gotPeek {
		t, err := it.advance()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, NewGoDBError(NoSuchElementError, "heap file iterator exhausted")
		}
		return t, nil
	}
	it.gotPeek = false
	t := it.peeked
	it.peeked = nil
	if t == nil {
		return nil, NewGoDBError(NoSuchElementError, "heap file iterator exhausted")
	}
	return t, nil
}

// Iterator returns a pull closure over f's tuples, for use by the Operator
// layer. It wraps a HeapFileIterator opened fresh on each call.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	it := f.NewIterator(tid)
	if err := it.Open(); err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		has, err := it.HasNext()
		if err != nil || !has {
			return nil, err
		}
		return it.Next()
	}, nil
}

// LoadFromCSV populates the heap file from a CSV file opened by the caller.
//   - hasHeader: whether the first line is a header to skip
//   - sep: the field separator
//   - skipLastField: drop the final field of each line (some TPC datasets
//     have a trailing separator)
//
// Each line is loaded in its own committed transaction.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		lineNo++
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.tupleDesc.Fields) {
			return NewGoDBError(MalformedDataError, "line %d (%s): expected %d fields, got %d", lineNo, line, len(f.tupleDesc.Fields), len(fields))
		}

		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.tupleDesc.Fields[i].Ftype {
			case IntType:
				raw = strings.TrimSpace(raw)
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return NewGoDBError(TypeMismatchError, "line %d: could not convert %q to int", lineNo, raw)
				}
				values[i] = IntField{Value: int64(v)}
			case StringType:
				width := f.tupleDesc.Fields[i].width()
				if len(raw) > width {
					raw = raw[:width]
				}
				values[i] = StringField{Value: raw}
			}
		}

		tup := &Tuple{Desc: *f.tupleDesc, Fields: values}
		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		if err := f.bufPool.InsertTuple(tid, f.table, tup); err != nil {
			f.bufPool.TransactionComplete(tid, false)
			return err
		}
		f.bufPool.TransactionComplete(tid, true)
	}
	return scanner.Err()
}
