package godb

// Expr is anything that can be evaluated against a tuple to produce a
// DBValue: a bare field reference, a constant, or (in a fuller query layer)
// an arbitrary scalar expression. Operators are written against Expr rather
// than a bare field name so that, e.g., an ORDER BY can sort by something
// more interesting than a single column.
type Expr interface {
	// EvalExpr evaluates the expression against t, returning the resulting
	// value.
	EvalExpr(t *Tuple) (DBValue, error)
	// GetExprType returns the FieldType this expression would produce,
	// used to build an Operator's output TupleDesc before any tuple has
	// actually flowed through it.
	GetExprType() FieldType
}

// FieldExpr extracts a single named field from a tuple.
type FieldExpr struct {
	field FieldType
}

// NewFieldExpr constructs an Expr that looks up field in whatever tuple it
// is evaluated against.
func NewFieldExpr(field FieldType) *FieldExpr {
	return &FieldExpr{field: field}
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := findFieldInTd(e.field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.field
}

// ConstExpr evaluates to the same value regardless of the tuple it is given.
type ConstExpr struct {
	val   DBValue
	dbT   DBType
	fname string
}

// NewConstExpr constructs an Expr that always evaluates to val.
func NewConstExpr(val DBValue, dbT DBType) *ConstExpr {
	return &ConstExpr{val: val, dbT: dbT, fname: "const"}
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.val, nil
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Fname: e.fname, Ftype: e.dbT}
}
