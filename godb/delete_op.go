package godb

type DeleteOp struct {
	bufPool    *BufferPool
	deleteFile DBFile
	child      Operator
	res        *TupleDesc
}

// NewDeleteOp constructs a delete operator that deletes every record
// produced by child from deleteFile, via bp.
func NewDeleteOp(bp *BufferPool, deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{
		bufPool:    bp,
		deleteFile: deleteFile,
		child:      child,
		res: &TupleDesc{Fields: []FieldType{{
			Fname: "count",
			Ftype: IntType,
		}}},
	}
}

// Descriptor returns a one-column descriptor with an integer field named
// "count".
func (dop *DeleteOp) Descriptor() *TupleDesc {
	return dop.res
}

// Iterator drains child, deleting every tuple it produces (by record id)
// from deleteFile, then yields a single tuple giving the number deleted.
func (dop *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := dop.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	count := int64(0)

	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if err := dop.bufPool.DeleteTuple(tid, t); err != nil {
			return nil, err
		}
		count++
	}

	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		done = true
		return &Tuple{
			Desc:   *dop.Descriptor(),
			Fields: []DBValue{IntField{Value: count}},
		}, nil
	}, nil
}
