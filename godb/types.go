package godb

// Process-wide configuration and the identifiers that everything else in the
// package is keyed by: transactions, pages, tables, and records.

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// PageSize is the size, in bytes, of every page of every heap file. It is a
// process-wide setting: all files created under one run of the process share
// it, and changing it mid-run invalidates any file written under the old
// value.
var PageSize int = 4096

// DefaultStringLength is the width, in bytes, used for a StringType field
// whose FieldType does not declare an explicit StrLen.
const DefaultStringLength = 32

// BufferPoolDefaultPages is the default capacity of a BufferPool, in pages.
const BufferPoolDefaultPages = 50

// SetPageSize overrides the process-wide page size. Intended to be called
// once at startup, before any HeapFile is opened.
func SetPageSize(n int) {
	PageSize = n
}

// ResetForTesting restores package-global state to its defaults. Tests that
// fiddle with PageSize or the table-id registry should call this in a
// defer so later tests are not affected.
func ResetForTesting() {
	PageSize = 4096
	tableRegistry.reset()
}

// TransactionID names a transaction for the lifetime of the process. The
// zero value is not a valid transaction id; always obtain one from NewTID.
type TransactionID struct {
	id int64
}

var tidCounter int64

// NewTID allocates a fresh, never-before-seen TransactionID.
func NewTID() TransactionID {
	return TransactionID{id: atomic.AddInt64(&tidCounter, 1)}
}

func (t TransactionID) String() string {
	return fmt.Sprintf("tid(%d)", t.id)
}

// TableID is a stable identifier for a table, derived from the absolute path
// of its backing file. Two files at the same path, opened in the same
// process, always resolve to the same TableID.
type TableID int64

// tableIDRegistry hands out stable TableIDs for file paths. It exists so
// that PageID equality can be tested with ==, rather than having to compare
// file paths; the mapping only needs to be consistent within one process
// lifetime, per the table-identity contract in the storage format.
type tableIDRegistry struct {
	mu   sync.Mutex
	ids  map[string]TableID
	next int64
}

var tableRegistry = &tableIDRegistry{ids: make(map[string]TableID)}

func (r *tableIDRegistry) idFor(path string) TableID {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[abs]; ok {
		return id
	}
	r.next++
	id := TableID(r.next)
	r.ids[abs] = id
	return id
}

func (r *tableIDRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]TableID)
	r.next = 0
}

// TableIDForPath returns the stable TableID for the given backing-file path,
// assigning one on first use.
func TableIDForPath(path string) TableID {
	return tableRegistry.idFor(path)
}

// PageID identifies a page within a table: the table it belongs to and its
// zero-based offset within that table's file.
type PageID struct {
	Table   TableID
	PageNum int
}

func (p PageID) String() string {
	return fmt.Sprintf("page(%d,%d)", p.Table, p.PageNum)
}

// RecordID addresses a single persisted tuple: the page holding it and its
// slot index on that page. A Tuple that has never been inserted has a nil
// Rid.
type RecordID struct {
	PID  PageID
	Slot int
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s,%d)", r.PID, r.Slot)
}

// RWPerm is the permission with which a page is fetched from the buffer
// pool: ReadPerm takes a shared lock, WritePerm takes an exclusive lock.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

func (p RWPerm) String() string {
	if p == WritePerm {
		return "write"
	}
	return "read"
}

// ErrorCode closes the set of error kinds that can be raised by this
// package. Callers should switch on ErrorCode rather than match error
// strings.
type ErrorCode int

const (
	// IllegalPageError: a page-id falls outside the range of a file.
	IllegalPageError ErrorCode = iota
	// MalformedPageError: a serialized page fails a structural check.
	MalformedPageError
	// PageFullError: insertTuple found no free slot on a page.
	PageFullError
	// TupleNotOnPageError: a delete's record-id does not name an occupied
	// slot on the targeted page.
	TupleNotOnPageError
	// SchemaMismatchError: an inserted tuple's descriptor does not match
	// the table's.
	SchemaMismatchError
	// BufferFullError: eviction could not find a clean victim.
	BufferFullError
	// TransactionAbortedError: the lock manager detected a deadlock
	// involving the calling transaction.
	TransactionAbortedError
	// IoFailureError: the underlying file system returned an error.
	IoFailureError
	// AmbiguousNameError: a field reference matches more than one column.
	AmbiguousNameError
	// IncompatibleTypesError: an expression is applied to an incompatible
	// field type, or a field reference cannot be resolved.
	IncompatibleTypesError
	// MalformedDataError: CSV (or similar external) input does not match
	// the expected shape.
	MalformedDataError
	// TypeMismatchError: a value could not be converted to a field's type.
	TypeMismatchError
	// NoSuchElementError: Next was called on an iterator positioned past
	// its last element.
	NoSuchElementError
)

func (c ErrorCode) String() string {
	switch c {
	case IllegalPageError:
		return "IllegalPage"
	case MalformedPageError:
		return "MalformedPage"
	case PageFullError:
		return "PageFull"
	case TupleNotOnPageError:
		return "TupleNotOnPage"
	case SchemaMismatchError:
		return "SchemaMismatch"
	case BufferFullError:
		return "BufferFull"
	case TransactionAbortedError:
		return "TransactionAborted"
	case IoFailureError:
		return "IoFailure"
	case AmbiguousNameError:
		return "AmbiguousName"
	case IncompatibleTypesError:
		return "IncompatibleTypes"
	case MalformedDataError:
		return "MalformedData"
	case TypeMismatchError:
		return "TypeMismatch"
	case NoSuchElementError:
		return "NoSuchElement"
	}
	return "Unknown"
}

// GoDBError is the concrete error type raised by every operation in this
// package. Code is the closed error kind; Message carries human-readable
// detail for logs and test failures.
type GoDBError struct {
	Code    ErrorCode
	Message string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewGoDBError constructs a GoDBError with a formatted message.
func NewGoDBError(code ErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Page is the unit cached by the BufferPool and written by a DBFile. The
// core only ships one implementation, heapPage, but the interface is what
// the buffer pool, the lock manager, and the operator layer program
// against.
type Page interface {
	// getID returns this page's identity.
	getID() PageID
	// isDirty reports whether the page has unflushed in-memory changes,
	// and, if so, which transaction last dirtied it.
	isDirty() (TransactionID, bool)
	// setDirty marks (or clears) the page as modified by tid.
	setDirty(tid TransactionID, dirty bool)
	// getFile returns the DBFile this page belongs to, so the buffer pool
	// can flush or re-read it without a separate lookup.
	getFile() DBFile
	// toBytes serializes the page to a PageSize-byte buffer.
	toBytes() ([]byte, error)
	// getBeforeImage returns a frozen copy of the page as it looked the
	// moment it was installed in the buffer pool, for abort rollback.
	getBeforeImage() Page
	// setBeforeImage snapshots the page's current bytes as its new
	// before-image, called after a successful commit.
	setBeforeImage()
}

// DBFile is the on-disk collection a table's pages live in. HeapFile is the
// only implementation specified here; a B+-tree index file would satisfy
// the same interface.
type DBFile interface {
	// Descriptor returns the TupleDesc of tuples stored in this file.
	Descriptor() *TupleDesc
	// TableID returns the stable identifier of this file's table.
	TableID() TableID
	// NumPages returns the current number of pages in the file.
	NumPages() int
	// readPage reads page pageNo from disk and parses it.
	readPage(pageNo int) (Page, error)
	// flushPage writes page p to its slot on disk.
	flushPage(p Page) error
	// insertTuple adds t to the file (via the buffer pool) and returns the
	// pages it modified.
	insertTuple(t *Tuple, tid TransactionID) ([]Page, error)
	// deleteTuple removes the tuple named by t.Rid and returns the pages
	// it modified.
	deleteTuple(t *Tuple, tid TransactionID) ([]Page, error)
	// Iterator returns a stateful function yielding each tuple of the file
	// in page-then-slot order, under the given transaction.
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// Operator is the iterator-based query node interface. Every node in the
// query layer (scan, filter, project, join, aggregate, insert, delete)
// implements it by pulling from its child's Iterator and pushing through
// the buffer pool.
type Operator interface {
	Descriptor() *TupleDesc
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// BoolOp is a comparison operator usable in a Filter predicate, a join
// condition, or an ORDER BY comparison.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op BoolOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return "?"
}
