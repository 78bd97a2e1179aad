package godb

// AggregatorOp groups its child's tuples by groupByExpr (nil for a single,
// ungrouped result) and reduces each group with one AggState per
// newState()'d instance, following exactly the Init/Copy/AddTuple/Finalize
// contract AggState declares: newState is called once to build a template,
// Copy()'d for every group first seen, AddTuple()'d for every member tuple,
// and Finalize()'d to produce that group's output row.
type AggregatorOp struct {
	child       Operator
	groupByExpr Expr // nil for an ungrouped aggregate
	newState    func() AggState
	aggExpr     Expr
	alias       string
}

// NewAggregatorOp constructs an aggregation of child's output using
// newState to build one AggState per group, applied to aggExpr and named
// alias. groupByExpr may be nil, producing a single output row.
func NewAggregatorOp(child Operator, groupByExpr Expr, aggExpr Expr, alias string, newState func() AggState) *AggregatorOp {
	return &AggregatorOp{
		child:       child,
		groupByExpr: groupByExpr,
		newState:    newState,
		aggExpr:     aggExpr,
		alias:       alias,
	}
}

func (a *AggregatorOp) Descriptor() *TupleDesc {
	template := a.newState()
	if err := template.Init(a.alias, a.aggExpr); err != nil {
		return nil
	}
	aggDesc := template.GetTupleDesc()
	if a.groupByExpr == nil {
		return aggDesc
	}
	groupDesc := &TupleDesc{Fields: []FieldType{a.groupByExpr.GetExprType()}}
	return groupDesc.merge(aggDesc)
}

func (a *AggregatorOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	template := a.newState()
	if err := template.Init(a.alias, a.aggExpr); err != nil {
		return nil, err
	}

	type group struct {
		key   DBValue
		state AggState
	}
	var groups []*group
	byKey := make(map[any]*group)

	for {
		tuple, err := childIter()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			break
		}

		var key any = struct{}{}
		var keyVal DBValue
		if a.groupByExpr != nil {
			keyVal, err = a.groupByExpr.EvalExpr(tuple)
			if err != nil {
				return nil, err
			}
			key = keyVal
		}

		g, ok := byKey[key]
		if !ok {
			g = &group{key: keyVal, state: template.Copy()}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.state.AddTuple(tuple)
	}

	// AggState's Min/Max/Avg implementations document that AddTuple is
	// always called at least once before Finalize; synthesizing a zero-row
	// group here would violate that and panic (e.g. AvgAggState divides by
	// its tuple count). A zero-row input therefore yields zero output rows.

	index := 0
	return func() (*Tuple, error) {
		if index >= len(groups) {
			return nil, nil
		}
		g := groups[index]
		index++

		result := g.state.Finalize()
		if a.groupByExpr == nil {
			return result, nil
		}
		groupTuple := &Tuple{
			Desc:   TupleDesc{Fields: []FieldType{a.groupByExpr.GetExprType()}},
			Fields: []DBValue{g.key},
		}
		return joinTuples(groupTuple, result), nil
	}, nil
}
