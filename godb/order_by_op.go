package godb

import (
	"sort"
)

// OrderBy is a blocking sort: it materializes its child, sorts in memory by
// the given expressions (descending where the corresponding ascending entry
// is false), then streams the sorted result.
type OrderBy struct {
	orderBy       []Expr
	child         Operator
	ascendingList []bool
}

// NewOrderBy constructs a sort of child's output by orderByFields, with
// ascending[i] controlling the sort direction of orderByFields[i].
func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	return &OrderBy{
		orderBy:       orderByFields,
		child:         child,
		ascendingList: ascending,
	}, nil
}

// Descriptor passes the child's descriptor through unchanged: ordering does
// not add, remove, or rename fields.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	res := make([]*Tuple, 0)
	for {
		tuple, err := childIter()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			break
		}
		res = append(res, tuple)
	}

	keys, err := sortKeys(res, o.orderBy)
	if err != nil {
		return nil, err
	}
	sort.Sort(sortTuples{ascendingList: o.ascendingList, all: res, keys: keys})

	count := 0
	return func() (*Tuple, error) {
		if count >= len(res) {
			return nil, nil
		}
		tuple := res[count]
		count += 1
		return tuple, nil
	}, nil
}

// sortKeys evaluates every orderBy expression against every tuple up front,
// so a failing EvalExpr surfaces as an error from Iterator rather than being
// silently swallowed inside sort.Sort's Less, which cannot return one.
func sortKeys(tuples []*Tuple, orderBy []Expr) ([][]DBValue, error) {
	keys := make([][]DBValue, len(tuples))
	for i, t := range tuples {
		row := make([]DBValue, len(orderBy))
		for j, expr := range orderBy {
			val, err := expr.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			row[j] = val
		}
		keys[i] = row
	}
	return keys, nil
}

type sortTuples struct {
	ascendingList []bool
	all           []*Tuple
	keys          [][]DBValue
}

func (s sortTuples) Less(a, b int) bool {
	for index := range s.keys[a] {
		valA := s.keys[a][index]
		valB := s.keys[b][index]

		if valA.EvalPred(valB, OpEq) {
			continue
		}

		if s.ascendingList[index] {
			return valA.EvalPred(valB, OpLt)
		}
		return !valA.EvalPred(valB, OpLt)
	}
	return false
}

func (s sortTuples) Swap(a, b int) {
	s.all[a], s.all[b] = s.all[b], s.all[a]
	s.keys[a], s.keys[b] = s.keys[b], s.keys[a]
}

func (s sortTuples) Len() int {
	return len(s.all)
}
