package godb

// BufferPool caches pages read from disk, up to a fixed capacity, and is the
// mechanism through which transactions are enforced: every page access goes
// through getPage, which acquires the appropriate lock via the LockManager
// before the page is handed back.
//
// Recovery is NO STEAL / FORCE: a dirty page is never evicted or written to
// disk before its transaction commits (NO STEAL), and every page a
// transaction dirtied is flushed before its locks are released on commit
// (FORCE). Because of this, abort never has to undo anything already on
// disk -- restoring each page's in-memory before-image and releasing locks
// is sufficient.

import (
	"log"
	"os"
	"sync"
)

var poolLog = log.New(os.Stderr, "bufferpool: ", log.LstdFlags)

type BufferPool struct {
	poolLock sync.Mutex
	pages    map[PageID]Page
	capacity int

	locks *LockManager
	cat   Catalog
}

// NewBufferPool constructs a BufferPool backed by cat that caches at most
// numPages pages at a time.
func NewBufferPool(numPages int, cat Catalog) *BufferPool {
	return &BufferPool{
		pages:    make(map[PageID]Page),
		capacity: numPages,
		locks:    newLockManager(),
		cat:      cat,
	}
}

// BeginTransaction records that tid is about to start issuing reads and
// writes. There is no transaction table to update -- the lock manager and
// buffer pool key everything directly off tid -- so this exists for
// callers that want a clear point marking a transaction's start.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	return nil
}

// getPage returns the requested page, fetching it from disk through the
// owning DBFile on a cache miss, after acquiring perm on pid. Blocks until
// the lock is available; returns TransactionAbortedError if doing so would
// deadlock.
func (bp *BufferPool) getPage(tid TransactionID, pid PageID, perm RWPerm) (Page, error) {
	if err := bp.locks.AcquireLock(tid, pid, perm); err != nil {
		return nil, err
	}

	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()

	if p, ok := bp.pages[pid]; ok {
		return p, nil
	}

	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, ok := bp.cat.FileForTable(pid.Table)
	if !ok {
		return nil, NewGoDBError(IllegalPageError, "no table registered for %s", pid)
	}
	p, err := file.readPage(pid.PageNum)
	if err != nil {
		return nil, err
	}
	p.setBeforeImage()
	bp.pages[pid] = p
	return p, nil
}

// evictLocked removes one clean page from the cache to make room. Caller
// must hold bp.poolLock. Dirty pages are never evicted: that would steal an
// uncommitted write out from under its transaction.
func (bp *BufferPool) evictLocked() error {
	for pid, p := range bp.pages {
		if _, dirty := p.isDirty(); dirty {
			continue
		}
		delete(bp.pages, pid)
		return nil
	}
	poolLog.Printf("eviction failed: all %d cached pages are dirty", len(bp.pages))
	return NewGoDBError(BufferFullError, "buffer pool full of dirty pages")
}

// InsertTuple adds t to the named table on behalf of tid, marking every page
// the insert touched as dirty and installing it in the cache.
func (bp *BufferPool) InsertTuple(tid TransactionID, table TableID, t *Tuple) error {
	file, ok := bp.cat.FileForTable(table)
	if !ok {
		return NewGoDBError(IllegalPageError, "no table registered with id %d", table)
	}
	touched, err := file.insertTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, touched)
	return nil
}

// DeleteTuple removes t, identified by its record id, marking every page the
// delete touched as dirty and installing it in the cache.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	if t.Rid == nil {
		return NewGoDBError(TupleNotOnPageError, "tuple has no record id")
	}
	file, ok := bp.cat.FileForTable(t.Rid.PID.Table)
	if !ok {
		return NewGoDBError(IllegalPageError, "no table registered with id %d", t.Rid.PID.Table)
	}
	touched, err := file.deleteTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, touched)
	return nil
}

func (bp *BufferPool) markDirty(tid TransactionID, touched []Page) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	for _, p := range touched {
		p.setDirty(tid, true)
		bp.pages[p.getID()] = p
	}
}

// TransactionComplete ends tid, either committing or aborting its writes,
// and releases every lock it holds.
//
// On commit, every page tid holds an exclusive lock on is flushed (if
// dirty) and its before-image refreshed to the now-committed bytes. On
// abort, every such page has its in-memory contents replaced by its
// before-image -- nothing needs undoing on disk, since NO STEAL guarantees
// a dirty page was never written there.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	defer bp.locks.ReleaseAll(tid)

	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()

	for _, pid := range bp.locks.ExclusivePagesOf(tid) {
		p, ok := bp.pages[pid]
		if !ok {
			continue
		}
		if commit {
			if _, dirty := p.isDirty(); dirty {
				if err := p.getFile().flushPage(p); err != nil {
					poolLog.Printf("transaction %s commit: flush of %s failed: %v", tid, pid, err)
					return err
				}
				p.setDirty(tid, false)
				p.setBeforeImage()
			}
		} else {
			bp.pages[pid] = p.getBeforeImage()
		}
	}
	if !commit {
		poolLog.Printf("transaction %s aborted, rolled back %d page(s)", tid, len(bp.locks.ExclusivePagesOf(tid)))
	}
	return nil
}

// ReleasePage drops tid's lock on pid without waiting for transaction
// completion. This violates strict two-phase locking if used mid-
// transaction; it exists for callers (tests, recovery tooling) that
// manage locking by hand.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageID) {
	bp.locks.Release(tid, pid)
}

// FlushPage writes p's current contents to disk and clears its dirty bit,
// regardless of which transaction dirtied it, outside the commit path.
func (bp *BufferPool) FlushPage(p Page) error {
	if err := p.getFile().flushPage(p); err != nil {
		return err
	}
	tid, dirty := p.isDirty()
	if dirty {
		p.setDirty(tid, false)
	}
	p.setBeforeImage()
	return nil
}

// FlushAllPages flushes every dirty page currently cached. It is a testing
// convenience, not part of the commit path: real code should rely on
// TransactionComplete for durability.
func (bp *BufferPool) FlushAllPages() error {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	for _, p := range bp.pages {
		if _, dirty := p.isDirty(); !dirty {
			continue
		}
		if err := p.getFile().flushPage(p); err != nil {
			return err
		}
		tid, _ := p.isDirty()
		p.setDirty(tid, false)
		p.setBeforeImage()
	}
	return nil
}

// DiscardPage drops pid from the cache without flushing it, even if dirty.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.poolLock.Lock()
	defer bp.poolLock.Unlock()
	delete(bp.pages, pid)
}
