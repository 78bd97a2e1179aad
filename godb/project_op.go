package godb

import (
	"errors"
)

// Project emits one tuple per child tuple, evaluating selectFields and
// renaming the results to outputNames. When distinct is set, tuples whose
// serialized value has already been emitted are suppressed.
type Project struct {
	selectFields []Expr
	outputNames  []string
	child        Operator
	distinct     bool
}

// NewProjectOp constructs a projection. selectFields and outputNames must be
// the same length.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	if len(selectFields) != len(outputNames) {
		return nil, errors.New("these should be the same length")
	}

	return &Project{
		selectFields: selectFields,
		outputNames:  outputNames,
		distinct:     distinct,
		child:        child,
	}, nil
}

func (p *Project) Descriptor() *TupleDesc {
	projDesc := &TupleDesc{
		Fields: make([]FieldType, len(p.selectFields)),
	}

	for i := 0; i < len(p.selectFields); i++ {
		get := p.selectFields[i].GetExprType()
		get.Fname = p.outputNames[i]
		projDesc.Fields[i] = get
	}

	return projDesc
}

func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	projDesc := *p.Descriptor()
	var seenKeys map[any]struct{}
	if p.distinct {
		seenKeys = make(map[any]struct{})
	}

	return func() (*Tuple, error) {
		for {
			tuple, err := childIter()
			if err != nil {
				return nil, err
			}
			if tuple == nil {
				return nil, nil
			}

			out := &Tuple{
				Desc:   projDesc,
				Fields: make([]DBValue, len(p.selectFields)),
			}

			for i := 0; i < len(p.selectFields); i++ {
				field := p.selectFields[i]
				val, err := field.EvalExpr(tuple)
				if err != nil {
					return nil, err
				}
				out.Fields[i] = val
			}

			if p.distinct {
				key := out.tupleKey()
				if _, exists := seenKeys[key]; exists {
					continue
				}
				seenKeys[key] = struct{}{}
			}

			return out, nil
		}
	}, nil
}
