package godb

import (
	"errors"
	"sort"
)

// EqualityJoin implements an equality join via sort-merge: both children are
// materialized and sorted by their join expression, then merged, producing
// the full cross-product of every matching group on each side.
type EqualityJoin struct {
	leftField, rightField Expr

	left, right *Operator

	// maxBufferSize bounds the amount of intermediate state a bounded
	// (non-sort-merge) join implementation would be allowed to hold; kept
	// for callers that want to size a join, though this implementation
	// materializes both sides regardless.
	maxBufferSize int
}

// NewJoin constructs an equality join of left and right on leftField/
// rightField, which must agree in type.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField.GetExprType().Ftype != rightField.GetExprType().Ftype {
		return nil, errors.New("not proper types")
	}
	switch leftField.GetExprType().Ftype {
	case IntType:
		return &EqualityJoin{leftField, rightField, &left, &right, maxBufferSize}, nil
	case StringType:
		return &EqualityJoin{leftField, rightField, &left, &right, maxBufferSize}, nil
	}
	return nil, errors.New("not proper types")
}

func (hj *EqualityJoin) Descriptor() *TupleDesc {
	return (*hj.left).Descriptor().merge((*hj.right).Descriptor())
}

func (joinOp *EqualityJoin) Iterator(transactionID TransactionID) (func() (*Tuple, error), error) {
	leftIterator, err := (*joinOp.left).Iterator(transactionID)
	if err != nil {
		return nil, err
	}
	leftTuples, err := fetchAllTuples(leftIterator)
	if err != nil {
		return nil, err
	}

	rightIterator, err := (*joinOp.right).Iterator(transactionID)
	if err != nil {
		return nil, err
	}
	rightTuples, err := fetchAllTuples(rightIterator)
	if err != nil {
		return nil, err
	}

	if err := sortTupleList(leftTuples, joinOp.leftField); err != nil {
		return nil, err
	}
	if err := sortTupleList(rightTuples, joinOp.rightField); err != nil {
		return nil, err
	}

	joinedTuples, err := mergeAndJoinTuples(leftTuples, rightTuples, joinOp.leftField, joinOp.rightField)
	if err != nil {
		return nil, err
	}

	currentIndex := 0
	return func() (*Tuple, error) {
		if currentIndex >= len(joinedTuples) {
			return nil, nil
		}
		currentIndex += 1
		return joinedTuples[currentIndex-1], nil
	}, nil
}

// fetchAllTuples drains iterator into a slice, surfacing the first error it
// encounters rather than truncating the result silently.
func fetchAllTuples(iterator func() (*Tuple, error)) ([]*Tuple, error) {
	tuples := []*Tuple{}
	for {
		tuple, err := iterator()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			return tuples, nil
		}
		tuples = append(tuples, tuple)
	}
}

func sortTupleList(tuples []*Tuple, field Expr) error {
	var sortErr error
	sort.Slice(tuples, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		compareResult, err := tuples[i].compareField(tuples[j], field)
		if err != nil {
			sortErr = err
			return false
		}
		return compareResult < OrderedEqual
	})
	return sortErr
}

func mergeAndJoinTuples(leftTuples, rightTuples []*Tuple, leftField, rightField Expr) ([]*Tuple, error) {
	joinedTuples := []*Tuple{}
	leftIndex, rightIndex := 0, 0

	for leftIndex < len(leftTuples) && rightIndex < len(rightTuples) {
		order, err := compare(leftTuples[leftIndex], rightTuples[rightIndex], leftField, rightField)
		if err != nil {
			return nil, err
		}

		switch order {
		case OrderedEqual:
			if err := mergeEqualTuples(leftTuples, rightTuples, leftIndex, rightIndex, leftField, rightField, &joinedTuples); err != nil {
				return nil, err
			}
			leftEnd, err := findEqualRange(leftTuples, leftIndex, leftField)
			if err != nil {
				return nil, err
			}
			rightEnd, err := findEqualRange(rightTuples, rightIndex, rightField)
			if err != nil {
				return nil, err
			}
			leftIndex, rightIndex = leftEnd, rightEnd
		case OrderedLessThan:
			leftIndex += 1
		case OrderedGreaterThan:
			rightIndex += 1
		}
	}

	return joinedTuples, nil
}

// mergeEqualTuples appends the full cross-product of the run of tuples in
// leftTuples starting at leftIndex and the run in rightTuples starting at
// rightIndex, both of which compare equal on their join field.
func mergeEqualTuples(leftTuples, rightTuples []*Tuple, leftIndex, rightIndex int, leftField, rightField Expr, joinedTuples *[]*Tuple) error {
	leftEnd, err := findEqualRange(leftTuples, leftIndex, leftField)
	if err != nil {
		return err
	}
	rightEnd, err := findEqualRange(rightTuples, rightIndex, rightField)
	if err != nil {
		return err
	}

	for i := leftIndex; i < leftEnd; i++ {
		for j := rightIndex; j < rightEnd; j++ {
			*joinedTuples = append(*joinedTuples, joinTuples(leftTuples[i], rightTuples[j]))
		}
	}
	return nil
}

func compare(leftTuple, rightTuple *Tuple, leftField, rightField Expr) (orderByState, error) {
	leftExpr, err := leftField.EvalExpr(leftTuple)
	if err != nil {
		return 0, err
	}
	rightExpr, err := rightField.EvalExpr(rightTuple)
	if err != nil {
		return 0, err
	}

	switch leftVal := leftExpr.(type) {
	case IntField:
		rightVal := rightExpr.(IntField)
		switch {
		case leftVal.Value < rightVal.Value:
			return OrderedLessThan, nil
		case leftVal.Value > rightVal.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		rightVal := rightExpr.(StringField)
		switch {
		case leftVal.Value < rightVal.Value:
			return OrderedLessThan, nil
		case leftVal.Value > rightVal.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	default:
		return OrderedEqual, nil
	}
}

// findEqualRange returns the end (exclusive) of the run of tuples starting
// at startIndex that compare equal to tuples[startIndex] on field.
func findEqualRange(tuples []*Tuple, startIndex int, field Expr) (int, error) {
	endIndex := startIndex + 1
	for endIndex < len(tuples) {
		result, err := tuples[endIndex].compareField(tuples[startIndex], field)
		if err != nil {
			return 0, err
		}
		if result != OrderedEqual {
			break
		}
		endIndex += 1
	}
	return endIndex, nil
}
