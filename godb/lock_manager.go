package godb

// LockManager implements per-page shared/exclusive locking with upgrade and
// deadlock detection via a waits-for graph, as required by strict two-phase
// locking. All state is protected by a single mutex; a lock decision (grant
// or not) is always made atomically with respect to every other lock
// decision.

import (
	"sync"
	"time"
)

// lockRetryInterval is how long the blocking wrapper sleeps between failed
// acquisition attempts. There are no other suspension points in the system.
const lockRetryInterval = 5 * time.Millisecond

type LockManager struct {
	mu sync.Mutex

	shared    map[PageID]map[TransactionID]struct{}
	exclusive map[PageID]TransactionID

	sharedPages    map[TransactionID]map[PageID]struct{}
	exclusivePages map[TransactionID]map[PageID]struct{}

	// waitsFor[tid] holds tid's current out-edges: the transactions tid
	// is blocked on. It is replaced wholesale on every blocked attempt,
	// and cleared whenever tid is granted a lock, aborts on a deadlock, or
	// releases everything, so it always reflects only live blockers.
	waitsFor map[TransactionID]map[TransactionID]struct{}
}

func newLockManager() *LockManager {
	return &LockManager{
		shared:         make(map[PageID]map[TransactionID]struct{}),
		exclusive:      make(map[PageID]TransactionID),
		sharedPages:    make(map[TransactionID]map[PageID]struct{}),
		exclusivePages: make(map[TransactionID]map[PageID]struct{}),
		waitsFor:       make(map[TransactionID]map[TransactionID]struct{}),
	}
}

// otherHolders returns the set of transactions, other than tid, currently
// holding any lock (shared or exclusive) on pid. Caller must hold lm.mu.
func (lm *LockManager) otherHolders(tid TransactionID, pid PageID) map[TransactionID]struct{} {
	holders := make(map[TransactionID]struct{})
	for t := range lm.shared[pid] {
		if t != tid {
			holders[t] = struct{}{}
		}
	}
	if owner, ok := lm.exclusive[pid]; ok && owner != tid {
		holders[owner] = struct{}{}
	}
	return holders
}

func (lm *LockManager) addShared(tid TransactionID, pid PageID) {
	if lm.shared[pid] == nil {
		lm.shared[pid] = make(map[TransactionID]struct{})
	}
	lm.shared[pid][tid] = struct{}{}
	if lm.sharedPages[tid] == nil {
		lm.sharedPages[tid] = make(map[PageID]struct{})
	}
	lm.sharedPages[tid][pid] = struct{}{}
}

func (lm *LockManager) removeShared(tid TransactionID, pid PageID) {
	delete(lm.shared[pid], tid)
	if len(lm.shared[pid]) == 0 {
		delete(lm.shared, pid)
	}
	delete(lm.sharedPages[tid], pid)
	if len(lm.sharedPages[tid]) == 0 {
		delete(lm.sharedPages, tid)
	}
}

func (lm *LockManager) addExclusive(tid TransactionID, pid PageID) {
	lm.exclusive[pid] = tid
	if lm.exclusivePages[tid] == nil {
		lm.exclusivePages[tid] = make(map[PageID]struct{})
	}
	lm.exclusivePages[tid][pid] = struct{}{}
}

// acquire makes one non-blocking attempt to grant tid the requested mode on
// pid. It returns whether the lock was granted.
func (lm *LockManager) acquire(tid TransactionID, pid PageID, mode RWPerm) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	// A transaction already holding EXCLUSIVE may re-acquire either mode
	// trivially, without touching the shared tables.
	if owner, ok := lm.exclusive[pid]; ok && owner == tid {
		return true
	}

	switch mode {
	case ReadPerm:
		if owner, ok := lm.exclusive[pid]; ok && owner != tid {
			return false
		}
		lm.addShared(tid, pid)
		return true
	case WritePerm:
		if len(lm.otherHolders(tid, pid)) > 0 {
			return false
		}
		// The requester may be the page's sole SHARED holder: that is
		// an upgrade, not a conflict.
		if _, ok := lm.shared[pid][tid]; ok {
			lm.removeShared(tid, pid)
		}
		lm.addExclusive(tid, pid)
		return true
	}
	return false
}

// hasCycle reports whether a path exists in the waits-for graph from any of
// tid's current out-edges back to tid itself. Caller must hold lm.mu.
func (lm *LockManager) hasCycle(tid TransactionID) bool {
	visited := make(map[TransactionID]bool)
	queue := make([]TransactionID, 0, len(lm.waitsFor[tid]))
	for t := range lm.waitsFor[tid] {
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == tid {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for t := range lm.waitsFor[cur] {
			queue = append(queue, t)
		}
	}
	return false
}

// AcquireLock is the blocking wrapper operators and the buffer pool use: it
// retries acquire until granted, recomputing tid's waits-for edges on every
// failed attempt and checking for a cycle that closes back on tid. A cycle
// means tid itself must abort; it is never used to abort some other
// transaction on tid's behalf.
func (lm *LockManager) AcquireLock(tid TransactionID, pid PageID, mode RWPerm) error {
	for {
		if lm.acquire(tid, pid, mode) {
			lm.mu.Lock()
			delete(lm.waitsFor, tid)
			lm.mu.Unlock()
			return nil
		}

		lm.mu.Lock()
		blockers := lm.otherHolders(tid, pid)
		lm.waitsFor[tid] = blockers
		cyclic := lm.hasCycle(tid)
		if cyclic {
			// tid stops waiting here, so its edges are no longer live;
			// leaving them would let the peer on the cycle abort too.
			delete(lm.waitsFor, tid)
		}
		lm.mu.Unlock()

		if cyclic {
			poolLog.Printf("deadlock detected, aborting %s (blocked on %s)", tid, pid)
			return NewGoDBError(TransactionAbortedError, "%s deadlocked waiting for %s", tid, pid)
		}
		time.Sleep(lockRetryInterval)
	}
}

// Holds reports whether tid holds any lock (shared or exclusive) on pid.
func (lm *LockManager) Holds(tid TransactionID, pid PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, ok := lm.shared[pid][tid]; ok {
		return true
	}
	owner, ok := lm.exclusive[pid]
	return ok && owner == tid
}

// Release drops tid's lock (of whichever mode it holds) on pid. Used only by
// the unsafe, explicit releasePage path -- normal operation releases locks
// solely via ReleaseAll at transaction completion.
func (lm *LockManager) Release(tid TransactionID, pid PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.removeShared(tid, pid)
	if owner, ok := lm.exclusive[pid]; ok && owner == tid {
		delete(lm.exclusive, pid)
		delete(lm.exclusivePages[tid], pid)
		if len(lm.exclusivePages[tid]) == 0 {
			delete(lm.exclusivePages, tid)
		}
	}
}

// ReleaseAll drops every lock tid holds, on every page, and clears its
// waits-for row. Called at transactionComplete.
func (lm *LockManager) ReleaseAll(tid TransactionID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for pid := range lm.sharedPages[tid] {
		delete(lm.shared[pid], tid)
		if len(lm.shared[pid]) == 0 {
			delete(lm.shared, pid)
		}
	}
	delete(lm.sharedPages, tid)

	for pid := range lm.exclusivePages[tid] {
		if owner, ok := lm.exclusive[pid]; ok && owner == tid {
			delete(lm.exclusive, pid)
		}
	}
	delete(lm.exclusivePages, tid)

	delete(lm.waitsFor, tid)
}

// ExclusivePagesOf returns the pages tid currently holds an exclusive lock
// on, used by the buffer pool to decide what to flush on commit or revert on
// abort.
func (lm *LockManager) ExclusivePagesOf(tid TransactionID) []PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages := make([]PageID, 0, len(lm.exclusivePages[tid]))
	for pid := range lm.exclusivePages[tid] {
		pages = append(pages, pid)
	}
	return pages
}
