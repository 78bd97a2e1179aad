package godb

// heapPage implements the Page interface for pages of a HeapFile.
//
// Every page is exactly PageSize bytes: a bitmap header of ceil(S/8) bytes,
// where S is the number of tuple slots that fit on the page, followed by S
// fixed-width tuple slots. Bit i of the header (LSB-first within each byte)
// is 1 iff slot i currently holds a tuple. Any bytes left over after the
// last slot are reserved and always zero.
//
// S is derived from the page size and the tuple width:
//
//	S = floor((PageSize*8) / (tupleWidth*8 + 1))
//
// which is the largest S for which ceil(S/8) + S*tupleWidth <= PageSize.

import (
	"bytes"
)

type heapPage struct {
	pid      PageID
	desc     *TupleDesc
	file     *HeapFile
	numSlots int
	tuples   []*Tuple // length numSlots; nil entry means the slot is free

	dirty   bool
	dirtyBy TransactionID

	// beforeImageBytes is the serialized form of the page the moment it
	// was installed in the buffer pool. nil until setBeforeImage is
	// called.
	beforeImageBytes []byte
}

// slotsForTupleWidth returns the number of tuple slots that fit on a page of
// the given tuple width, per the header-plus-slots layout above.
func slotsForTupleWidth(tupleWidth int) int {
	if tupleWidth <= 0 {
		return 0
	}
	return (PageSize * 8) / (tupleWidth*8 + 1)
}

// headerBytesForSlots returns ceil(numSlots/8).
func headerBytesForSlots(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage constructs a fresh, empty page: a zeroed header and a zeroed
// tuple area. Fails if the descriptor's tuple width leaves no room for even
// one slot.
func newHeapPage(pid PageID, desc *TupleDesc, f *HeapFile) (*heapPage, error) {
	width := desc.width()
	numSlots := slotsForTupleWidth(width)
	if numSlots <= 0 {
		return nil, NewGoDBError(MalformedPageError, "tuple width %d leaves no slots on a %d-byte page", width, PageSize)
	}
	return &heapPage{
		pid:      pid,
		desc:     desc,
		file:     f,
		numSlots: numSlots,
		tuples:   make([]*Tuple, numSlots),
	}, nil
}

// getNumSlots returns the number of tuple slots on the page.
func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

// numEmptySlots returns the count of currently-unoccupied slots.
func (h *heapPage) numEmptySlots() int {
	n := 0
	for _, t := range h.tuples {
		if t == nil {
			n++
		}
	}
	return n
}

// insertTuple writes t into the lowest-numbered free slot, sets the header
// bit, and assigns t's record-id. Fails with PageFullError if there is no
// free slot, or SchemaMismatchError if t's descriptor does not match the
// page's.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	if !t.Desc.equals(h.desc) {
		return RecordID{}, NewGoDBError(SchemaMismatchError, "tuple descriptor does not match page descriptor")
	}
	for slot, existing := range h.tuples {
		if existing != nil {
			continue
		}
		rid := RecordID{PID: h.pid, Slot: slot}
		stored := &Tuple{Desc: *h.desc, Fields: t.Fields, Rid: &rid}
		h.tuples[slot] = stored
		t.Rid = &rid
		h.dirty = true
		return rid, nil
	}
	return RecordID{}, NewGoDBError(PageFullError, "page %s has no free slots", h.pid)
}

// deleteTuple clears the slot named by rid. Fails with TupleNotOnPageError
// if rid does not name this page or names an unoccupied slot.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.PID != h.pid {
		return NewGoDBError(TupleNotOnPageError, "record %s is not on page %s", rid, h.pid)
	}
	if rid.Slot < 0 || rid.Slot >= len(h.tuples) || h.tuples[rid.Slot] == nil {
		return NewGoDBError(TupleNotOnPageError, "slot %d on page %s is not occupied", rid.Slot, h.pid)
	}
	h.tuples[rid.Slot] = nil
	h.dirty = true
	return nil
}

func (h *heapPage) getID() PageID {
	return h.pid
}

func (h *heapPage) isDirty() (TransactionID, bool) {
	return h.dirtyBy, h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyBy = tid
	}
}

func (h *heapPage) getFile() DBFile {
	return h.file
}

// toBytes serializes the page's header and tuple slots into a buffer of
// exactly PageSize bytes.
func (h *heapPage) toBytes() ([]byte, error) {
	buf, err := h.toBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	headerBytes := headerBytesForSlots(h.numSlots)
	header := make([]byte, headerBytes)
	for slot, t := range h.tuples {
		if t == nil {
			continue
		}
		header[slot/8] |= 1 << (uint(slot) % 8)
	}
	if _, err := buf.Write(header); err != nil {
		return nil, err
	}
	for _, t := range h.tuples {
		if t == nil {
			if err := writeZeroTuple(buf, h.desc.width()); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if err := padBuffer(buf, PageSize); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeZeroTuple(buf *bytes.Buffer, width int) error {
	_, err := buf.Write(make([]byte, width))
	return err
}

func padBuffer(buf *bytes.Buffer, targetSize int) error {
	if buf.Len() < targetSize {
		_, err := buf.Write(make([]byte, targetSize-buf.Len()))
		return err
	}
	return nil
}

// newHeapPageFromBytes parses a PageSize-byte buffer into a heapPage. Fails
// with MalformedPageError if buf is not exactly PageSize bytes or if the
// descriptor leaves no room for any slot.
func newHeapPageFromBytes(pid PageID, desc *TupleDesc, f *HeapFile, data []byte) (*heapPage, error) {
	if len(data) != PageSize {
		return nil, NewGoDBError(MalformedPageError, "page %s: expected %d bytes, got %d", pid, PageSize, len(data))
	}
	width := desc.width()
	numSlots := slotsForTupleWidth(width)
	if numSlots <= 0 {
		return nil, NewGoDBError(MalformedPageError, "tuple width %d leaves no slots on a %d-byte page", width, PageSize)
	}
	headerBytes := headerBytesForSlots(numSlots)
	if headerBytes+numSlots*width > PageSize {
		return nil, NewGoDBError(MalformedPageError, "page %s: header+slots exceed page size", pid)
	}

	h := &heapPage{pid: pid, desc: desc, file: f, numSlots: numSlots, tuples: make([]*Tuple, numSlots)}

	header := data[:headerBytes]
	body := bytes.NewBuffer(data[headerBytes:])
	for slot := 0; slot < numSlots; slot++ {
		occupied := header[slot/8]&(1<<(uint(slot)%8)) != 0
		raw := body.Next(width)
		if !occupied {
			continue
		}
		tupBuf := bytes.NewBuffer(raw)
		tuple, err := readTupleFrom(tupBuf, desc)
		if err != nil {
			return nil, NewGoDBError(MalformedPageError, "page %s slot %d: %v", pid, slot, err)
		}
		rid := RecordID{PID: pid, Slot: slot}
		tuple.Rid = &rid
		h.tuples[slot] = tuple
	}
	return h, nil
}

// getBeforeImage returns a page holding the bytes captured by the last call
// to setBeforeImage. It is a detached copy: mutating the returned page does
// not affect h.
func (h *heapPage) getBeforeImage() Page {
	if h.beforeImageBytes == nil {
		// No snapshot yet: the page has not been installed in a buffer
		// pool. Treat the current contents as the before-image.
		data, _ := h.toBytes()
		h.beforeImageBytes = data
	}
	before, err := newHeapPageFromBytes(h.pid, h.desc, h.file, h.beforeImageBytes)
	if err != nil {
		// The snapshot was captured from a valid page, so this cannot
		// fail in practice; fall back to an empty page rather than
		// panicking.
		before, _ = newHeapPage(h.pid, h.desc, h.file)
	}
	return before
}

// setBeforeImage snapshots the page's current serialized bytes as its new
// before-image.
func (h *heapPage) setBeforeImage() {
	data, err := h.toBytes()
	if err != nil {
		return
	}
	h.beforeImageBytes = data
}

// tupleIter returns a function that yields the page's tuples in ascending
// slot order, one per call, then returns (nil, nil) forever after.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < len(h.tuples) {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
