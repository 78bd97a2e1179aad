package godb

// LimitOp passes through at most the first limit tuples of its child.
type LimitOp struct {
	child     Operator
	limitTups Expr
}

// NewLimitOp constructs a limit of child's output to the value lim
// evaluates to (lim is typically a ConstExpr).
func NewLimitOp(lim Expr, child Operator) *LimitOp {
	return &LimitOp{
		child:     child,
		limitTups: lim,
	}
}

func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *LimitOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	limitVal, err := l.limitTups.EvalExpr(nil)
	if err != nil {
		return nil, err
	}
	limit := limitVal.(IntField).Value

	childIter, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	count := int64(0)
	return func() (*Tuple, error) {
		if count >= limit {
			return nil, nil
		}
		tuple, err := childIter()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			return nil, nil
		}
		count += 1
		return tuple, nil
	}, nil
}
