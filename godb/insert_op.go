package godb

type InsertOp struct {
	bufPool    *BufferPool
	insertFile DBFile
	child      Operator
	res        *TupleDesc
}

// NewInsertOp constructs an insert operator that inserts every record
// produced by child into insertFile, via bp so that the insert is properly
// locked and its dirtied pages tracked for commit/abort.
func NewInsertOp(bp *BufferPool, insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{
		bufPool:    bp,
		insertFile: insertFile,
		child:      child,
		res: &TupleDesc{Fields: []FieldType{{
			Fname: "count",
			Ftype: IntType,
		}}},
	}
}

// Descriptor returns a one-column descriptor with an integer field named
// "count".
func (iop *InsertOp) Descriptor() *TupleDesc {
	return iop.res
}

// Iterator drains child, inserting every tuple it produces into insertFile,
// then yields a single tuple giving the number inserted.
func (iop *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := iop.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	counter := int64(0)
	done := false

	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			if err := iop.bufPool.InsertTuple(tid, iop.insertFile.TableID(), t); err != nil {
				return nil, err
			}
			counter++
		}
		done = true
		return &Tuple{
			Desc:   *iop.Descriptor(),
			Fields: []DBValue{IntField{Value: counter}},
		}, nil
	}, nil
}
