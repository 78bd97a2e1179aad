package godb

// This file defines the types used to describe and hold tuples: DBType,
// FieldType, TupleDesc, DBValue, and Tuple, plus their (de)serialization to
// the fixed-width on-disk tuple format.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field, e.g. IntType or StringType.
type DBType int

const (
	IntType     DBType = iota
	StringType  DBType = iota
	UnknownType DBType = iota // used internally during parsing, when the type is not yet known
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType is the type of a single field in a tuple: its name, the
// (optional) table it was selected from, its DBType, and, for StringType
// fields, the declared maximum width in bytes. TableQualifier may be empty
// if the table was not specified explicitly.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
	StrLen         int // width in bytes for StringType; 0 means DefaultStringLength
}

// width returns the number of bytes this field occupies in the fixed-width
// tuple layout.
func (f FieldType) width() int {
	if f.Ftype == StringType {
		if f.StrLen > 0 {
			return f.StrLen
		}
		return DefaultStringLength
	}
	return 8 // int64
}

// TupleDesc is the "type" of a tuple: its ordered field names and types.
type TupleDesc struct {
	Fields []FieldType
}

// width returns the fixed serialized width, in bytes, of a tuple with this
// descriptor.
func (d *TupleDesc) width() int {
	total := 0
	for _, f := range d.Fields {
		total += f.width()
	}
	return total
}

// equals reports whether d1 and d2 describe tuples of the same shape: same
// length, and every field equal in name and type.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname {
			return false
		}
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// findFieldInTd finds the best matching field in desc for field. A match
// requires the same Ftype and name, preferring a match on TableQualifier
// when field declares one.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, NewGoDBError(AmbiguousNameError, "select name %s is ambiguous", f.Fname)
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, NewGoDBError(IncompatibleTypesError, "field %s.%s not found", field.TableQualifier, field.Fname)
}

// copy makes a deep copy of the tuple descriptor's field slice.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias assigns alias as the TableQualifier of every field.
func (td *TupleDesc) setTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// merge returns a new TupleDesc whose fields are desc's fields followed by
// desc2's fields.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// ================== Tuple field values ======================

// DBValue is a tuple field value: IntField or StringField.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is an integer field value.
type IntField struct {
	Value int64
}

// StringField is a string field value.
type StringField struct {
	Value string
}

// EvalPred evaluates `f op v` for two integer fields. Comparisons against a
// non-IntField are always false.
func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	}
	return false
}

// EvalPred evaluates `f op v` for two string fields. Comparisons against a
// non-StringField are always false.
func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	}
	return false
}

// Tuple is the contents of a tuple read from (or destined for) a table: its
// descriptor, its field values, and, once persisted, the record-id it was
// read from or inserted at.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID // nil until the tuple has a record identity
}

func writeStringField(b *bytes.Buffer, strField StringField, width int) error {
	padded := make([]byte, width)
	copy(padded, []byte(strField.Value))
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, intField IntField) error {
	return binary.Write(b, binary.LittleEndian, intField.Value)
}

// writeTo serializes t's fields, in field order, into b. Tuples are fixed
// width, so this always writes exactly Desc.width() bytes.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for i, field := range t.Fields {
		width := t.Desc.Fields[i].width()
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v, width); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer, width int) (StringField, error) {
	raw := make([]byte, width)
	if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var val int64
	if err := binary.Read(b, binary.LittleEndian, &val); err != nil {
		return IntField{}, err
	}
	return IntField{Value: val}, nil
}

// readTupleFrom deserializes one tuple of the given descriptor from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	tuple := &Tuple{Desc: *desc, Fields: make([]DBValue, 0, len(desc.Fields))}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			strField, err := readStringField(b, fd.width())
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, strField)
		default:
			intField, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, intField)
		}
	}
	return tuple, nil
}

// equals reports whether t1 and t2 have equal descriptors and equal field
// values.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t1's fields followed by t2's, producing a tuple
// whose TupleDesc is the merge of the two inputs'.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	merged := t1.Desc.merge(&t2.Desc)
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{Desc: *merged, Fields: fields}
}

type orderByState int

const (
	OrderedLessThan    orderByState = iota
	OrderedEqual       orderByState = iota
	OrderedGreaterThan orderByState = iota
)

// compareField applies expr to both t and t2 and compares the results.
func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	v1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(v1, v2)
}

func compareFields(val1, val2 DBValue) (orderByState, error) {
	switch v1 := val1.(type) {
	case IntField:
		if v2, ok := val2.(IntField); ok {
			switch {
			case v1.Value > v2.Value:
				return OrderedGreaterThan, nil
			case v1.Value == v2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	case StringField:
		if v2, ok := val2.(StringField); ok {
			switch {
			case v1.Value > v2.Value:
				return OrderedGreaterThan, nil
			case v1.Value == v2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	}
	return OrderedEqual, fmt.Errorf("unsupported field comparison between %T and %T", val1, val2)
}

// project returns a new tuple holding just the named fields, preferring a
// match on TableQualifier when one of the candidates has it.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	projected := &Tuple{Desc: TupleDesc{}, Fields: []DBValue{}}
	for _, field := range fields {
		matched := -1
		for i, df := range t.Desc.Fields {
			if field.Fname == df.Fname && field.TableQualifier == df.TableQualifier {
				matched = i
				break
			}
		}
		if matched == -1 {
			for i, df := range t.Desc.Fields {
				if field.Fname == df.Fname {
					matched = i
					break
				}
			}
		}
		if matched == -1 {
			return nil, NewGoDBError(IncompatibleTypesError, "field %s.%s not found", field.TableQualifier, field.Fname)
		}
		projected.Fields = append(projected.Fields, t.Fields[matched])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[matched])
	}
	return projected, nil
}

// tupleKey computes a comparable key for the tuple's serialized value, for
// use in distinct-tracking maps.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth int = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	}
	if colWid-4 < 0 || colWid-4 > len(v) {
		return " " + v + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString renders the field names of d as a table header, tabular if
// aligned is set, comma-separated otherwise.
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// PrettyPrintString renders t's field values, tabular if aligned is set,
// comma-separated otherwise.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := ""
		switch f := f.(type) {
		case IntField:
			str = strconv.FormatInt(f.Value, 10)
		case StringField:
			str = f.Value
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}
