// Command simpledb is a line-oriented REPL over the storage, concurrency,
// and operator layer in package godb. It loads one or more CSV files as
// heap-file tables and then accepts canned commands, each run as its own
// committed transaction (stats reads the statistics built at startup and
// runs no transaction):
//
//	scan     <table>
//	project  <table> <field>[,<field>...] [distinct]
//	filter   <table> <field> <op> <value>
//	orderby  <table> <field> <asc|desc>
//	limit    <table> <n>
//	join     <table1> <field1> <table2> <field2>
//	aggregate <table> <count|sum|avg|min|max> <field>
//	insert   <table> <value> [<value> ...]
//	delete   <table> <field> = <value>
//	stats    <table> <column-index> <op> <int-value>
//	quit
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/gopherdb/simpledb/godb"
)

// tableSpec describes one -table flag: name=path:field:type,field:type,...
type tableSpec struct {
	name string
	path string
	desc *godb.TupleDesc
}

func main() {
	pageSize := flag.Int("pagesize", 4096, "page size in bytes")
	poolSize := flag.Int("bufpages", 50, "buffer pool capacity, in pages")
	tableFlags := multiFlag{}
	flag.Var(&tableFlags, "table", "name=csvpath:field:type[,field:type...] (type is int or string); repeatable")
	flag.Parse()

	godb.SetPageSize(*pageSize)

	specs := make([]tableSpec, 0, len(tableFlags))
	for _, raw := range tableFlags {
		spec, err := parseTableSpec(raw)
		if err != nil {
			log.Fatalf("bad -table %q: %v", raw, err)
		}
		specs = append(specs, spec)
	}

	cat := godb.NewCatalog()
	bp := godb.NewBufferPool(*poolSize, cat)
	stats := make(map[string]*godb.TableStats)

	for _, spec := range specs {
		hf, err := godb.NewHeapFile(spec.path+".heap", spec.desc, bp)
		if err != nil {
			log.Fatalf("creating heap file for table %s: %v", spec.name, err)
		}
		if err := cat.AddTable(spec.name, hf); err != nil {
			log.Fatalf("registering table %s: %v", spec.name, err)
		}
		if err := loadCSV(hf, spec.path); err != nil {
			log.Fatalf("loading %s into table %s: %v", spec.path, spec.name, err)
		}
		ts, err := godb.NewTableStats(hf, godb.NewTID())
		if err != nil {
			log.Fatalf("building statistics for table %s: %v", spec.name, err)
		}
		stats[spec.name] = ts
		fmt.Printf("loaded table %s from %s (%d rows)\n", spec.name, spec.path, ts.NumTuples())
	}

	rl, err := readline.New("simpledb> ")
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	repl(rl, cat, bp, stats)
}

func loadCSV(hf *godb.HeapFile, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return hf.LoadFromCSV(f, true, ",", false)
}

// repl reads commands from rl until EOF or "quit", dispatching each as a
// single committed (or aborted, on error) transaction.
func repl(rl *readline.Instance, cat godb.Catalog, bp *godb.BufferPool, stats map[string]*godb.TableStats) {
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			log.Printf("readline: %v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "scan":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdScan(cat, tid, fields) })
		case "project":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdProject(cat, tid, fields) })
		case "filter":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdFilter(cat, tid, fields) })
		case "orderby":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdOrderBy(cat, tid, fields) })
		case "limit":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdLimit(cat, tid, fields) })
		case "join":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdJoin(cat, tid, fields) })
		case "aggregate":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdAggregate(cat, tid, fields) })
		case "insert":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdInsert(cat, bp, tid, fields) })
		case "delete":
			runCommand(bp, func(tid godb.TransactionID) error { return cmdDelete(cat, bp, tid, fields) })
		case "stats":
			cmdStats(stats, fields)
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

// runCommand begins a transaction, runs fn, and commits or aborts it
// depending on whether fn returned an error.
func runCommand(bp *godb.BufferPool, fn func(tid godb.TransactionID) error) {
	tid := godb.NewTID()
	if err := fn(tid); err != nil {
		fmt.Println("error:", err)
		bp.TransactionComplete(tid, false)
		return
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		fmt.Println("commit error:", err)
	}
}

// printRows drains iter, printing op's header once and one line per tuple.
func printRows(op godb.Operator, iter func() (*godb.Tuple, error)) error {
	fmt.Println(op.Descriptor().HeaderString(true))
	for {
		t, err := iter()
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		fmt.Println(t.PrettyPrintString(true))
	}
}

func cmdScan(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 2 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: scan <table>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	iter, err := scan.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(scan, iter)
}

// cmdProject handles: project <table> <field>[,<field>...] [distinct]
func cmdProject(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) < 3 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: project <table> <field,field,...> [distinct]")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	cols := strings.Split(fields[2], ",")

	exprs := make([]godb.Expr, len(cols))
	names := make([]string, len(cols))
	for i, col := range cols {
		ft, err := lookupField(scan.Descriptor(), col)
		if err != nil {
			return err
		}
		exprs[i] = godb.NewFieldExpr(ft)
		names[i] = col
	}
	distinct := len(fields) >= 4 && fields[3] == "distinct"

	proj, err := godb.NewProjectOp(exprs, names, distinct, scan)
	if err != nil {
		return err
	}
	iter, err := proj.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(proj, iter)
}

// cmdFilter handles: filter <table> <field> <op> <value>
func cmdFilter(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 5 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: filter <table> <field> <op> <value>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	ft, err := lookupField(scan.Descriptor(), fields[2])
	if err != nil {
		return err
	}
	op, err := parseBoolOp(fields[3])
	if err != nil {
		return err
	}
	constVal, err := parseValue(ft.Ftype, fields[4])
	if err != nil {
		return err
	}

	filter, err := godb.NewFilter(godb.NewConstExpr(constVal, ft.Ftype), op, godb.NewFieldExpr(ft), scan)
	if err != nil {
		return err
	}
	iter, err := filter.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(filter, iter)
}

// cmdOrderBy handles: orderby <table> <field> <asc|desc>
func cmdOrderBy(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 4 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: orderby <table> <field> <asc|desc>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	ft, err := lookupField(scan.Descriptor(), fields[2])
	if err != nil {
		return err
	}
	ascending := fields[3] != "desc"

	ob, err := godb.NewOrderBy([]godb.Expr{godb.NewFieldExpr(ft)}, scan, []bool{ascending})
	if err != nil {
		return err
	}
	iter, err := ob.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(ob, iter)
}

// cmdLimit handles: limit <table> <n>
func cmdLimit(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 3 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: limit <table> <n>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return godb.NewGoDBError(godb.MalformedDataError, "bad limit %q: %v", fields[2], err)
	}
	scan := godb.NewSeqScan(file, fields[1])
	limit := godb.NewLimitOp(godb.NewConstExpr(godb.IntField{Value: n}, godb.IntType), scan)
	iter, err := limit.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(limit, iter)
}

// cmdJoin handles: join <table1> <field1> <table2> <field2>
func cmdJoin(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 5 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: join <table1> <field1> <table2> <field2>")
	}
	leftFile, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	rightFile, err := cat.FileByName(fields[3])
	if err != nil {
		return err
	}
	leftScan := godb.NewSeqScan(leftFile, fields[1])
	rightScan := godb.NewSeqScan(rightFile, fields[3])

	leftFt, err := lookupField(leftScan.Descriptor(), fields[2])
	if err != nil {
		return err
	}
	rightFt, err := lookupField(rightScan.Descriptor(), fields[4])
	if err != nil {
		return err
	}

	join, err := godb.NewJoin(leftScan, godb.NewFieldExpr(leftFt), rightScan, godb.NewFieldExpr(rightFt), 0)
	if err != nil {
		return err
	}
	iter, err := join.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(join, iter)
}

// cmdAggregate handles: aggregate <table> <count|sum|avg|min|max> <field>
func cmdAggregate(cat godb.Catalog, tid godb.TransactionID, fields []string) error {
	if len(fields) != 4 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: aggregate <table> <count|sum|avg|min|max> <field>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	ft, err := lookupField(scan.Descriptor(), fields[3])
	if err != nil {
		return err
	}
	newState, err := aggStateConstructor(fields[2])
	if err != nil {
		return err
	}

	agg := godb.NewAggregatorOp(scan, nil, godb.NewFieldExpr(ft), fields[2], newState)
	iter, err := agg.Iterator(tid)
	if err != nil {
		return err
	}
	return printRows(agg, iter)
}

func aggStateConstructor(op string) (func() godb.AggState, error) {
	switch op {
	case "count":
		return func() godb.AggState { return &godb.CountAggState{} }, nil
	case "sum":
		return func() godb.AggState { return &godb.SumAggState{} }, nil
	case "avg":
		return func() godb.AggState { return &godb.AvgAggState{} }, nil
	case "min":
		return func() godb.AggState { return &godb.MinAggState{} }, nil
	case "max":
		return func() godb.AggState { return &godb.MaxAggState{} }, nil
	}
	return nil, godb.NewGoDBError(godb.MalformedDataError, "unknown aggregate %q", op)
}

// valuesOp is a literal-row Operator: the child InsertOp drains when the
// REPL inserts a single, already-parsed tuple.
type valuesOp struct {
	desc *godb.TupleDesc
	rows []*godb.Tuple
}

func (v *valuesOp) Descriptor() *godb.TupleDesc { return v.desc }

func (v *valuesOp) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	i := 0
	return func() (*godb.Tuple, error) {
		if i >= len(v.rows) {
			return nil, nil
		}
		t := v.rows[i]
		i++
		return t, nil
	}, nil
}

func cmdInsert(cat godb.Catalog, bp *godb.BufferPool, tid godb.TransactionID, fields []string) error {
	if len(fields) < 2 {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: insert <table> <value> [<value> ...]")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	desc := file.Descriptor()
	values := fields[2:]
	if len(values) != len(desc.Fields) {
		return godb.NewGoDBError(godb.MalformedDataError, "table %s has %d columns, got %d values", fields[1], len(desc.Fields), len(values))
	}
	vals, err := parseValues(desc, values)
	if err != nil {
		return err
	}
	tup := &godb.Tuple{Desc: *desc, Fields: vals}
	child := &valuesOp{desc: desc, rows: []*godb.Tuple{tup}}

	insert := godb.NewInsertOp(bp, file, child)
	iter, err := insert.Iterator(tid)
	if err != nil {
		return err
	}
	result, err := iter()
	if err != nil {
		return err
	}
	fmt.Printf("inserted %d row(s)\n", result.Fields[0].(godb.IntField).Value)
	return nil
}

func cmdDelete(cat godb.Catalog, bp *godb.BufferPool, tid godb.TransactionID, fields []string) error {
	if len(fields) != 5 || fields[3] != "=" {
		return godb.NewGoDBError(godb.MalformedDataError, "usage: delete <table> <field> = <value>")
	}
	file, err := cat.FileByName(fields[1])
	if err != nil {
		return err
	}
	scan := godb.NewSeqScan(file, fields[1])
	ft, err := lookupField(scan.Descriptor(), fields[2])
	if err != nil {
		return err
	}
	constVal, err := parseValue(ft.Ftype, fields[4])
	if err != nil {
		return err
	}

	matching, err := godb.NewFilter(godb.NewConstExpr(constVal, ft.Ftype), godb.OpEq, godb.NewFieldExpr(ft), scan)
	if err != nil {
		return err
	}

	del := godb.NewDeleteOp(bp, file, matching)
	iter, err := del.Iterator(tid)
	if err != nil {
		return err
	}
	result, err := iter()
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d row(s)\n", result.Fields[0].(godb.IntField).Value)
	return nil
}

// cmdStats handles: stats <table> <column-index> <op> <int-value>
func cmdStats(stats map[string]*godb.TableStats, fields []string) {
	if len(fields) != 5 {
		fmt.Println("usage: stats <table> <column-index> <op> <int-value>")
		return
	}
	ts, ok := stats[fields[1]]
	if !ok {
		fmt.Printf("no statistics for table %s\n", fields[1])
		return
	}
	op, err := parseBoolOp(fields[3])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	colIdx, err := strconv.Atoi(fields[2])
	if err != nil {
		fmt.Printf("stats addresses columns by index, not name: %v\n", err)
		return
	}
	n, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		fmt.Printf("selectivity estimate only supports integer literals here: %v\n", err)
		return
	}
	sel := ts.EstimateSelectivity(colIdx, op, godb.IntField{Value: n})
	fmt.Printf("estimated selectivity: %.4f\n", sel)
}

func lookupField(desc *godb.TupleDesc, name string) (godb.FieldType, error) {
	for _, f := range desc.Fields {
		if f.Fname == name {
			return f, nil
		}
	}
	return godb.FieldType{}, godb.NewGoDBError(godb.AmbiguousNameError, "no column named %s", name)
}

func parseBoolOp(s string) (godb.BoolOp, error) {
	switch s {
	case "=":
		return godb.OpEq, nil
	case "!=":
		return godb.OpNeq, nil
	case "<":
		return godb.OpLt, nil
	case "<=":
		return godb.OpLe, nil
	case ">":
		return godb.OpGt, nil
	case ">=":
		return godb.OpGe, nil
	}
	return 0, godb.NewGoDBError(godb.MalformedDataError, "unknown operator %q", s)
}

func parseValue(t godb.DBType, raw string) (godb.DBValue, error) {
	switch t {
	case godb.IntType:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, godb.NewGoDBError(godb.TypeMismatchError, "%v", err)
		}
		return godb.IntField{Value: n}, nil
	case godb.StringType:
		return godb.StringField{Value: raw}, nil
	}
	return nil, godb.NewGoDBError(godb.TypeMismatchError, "unsupported column type")
}

func parseValues(desc *godb.TupleDesc, raw []string) ([]godb.DBValue, error) {
	vals := make([]godb.DBValue, len(raw))
	for i, f := range desc.Fields {
		v, err := parseValue(f.Ftype, raw[i])
		if err != nil {
			return nil, godb.NewGoDBError(godb.TypeMismatchError, "column %s: %v", f.Fname, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func parseTableSpec(raw string) (tableSpec, error) {
	nameRest := strings.SplitN(raw, "=", 2)
	if len(nameRest) != 2 {
		return tableSpec{}, fmt.Errorf("expected name=path:schema")
	}
	pathSchema := strings.SplitN(nameRest[1], ":", 2)
	if len(pathSchema) != 2 {
		return tableSpec{}, fmt.Errorf("expected path:field:type,field:type,...")
	}
	var fields []godb.FieldType
	for _, col := range strings.Split(pathSchema[1], ",") {
		parts := strings.SplitN(col, ":", 2)
		if len(parts) != 2 {
			return tableSpec{}, fmt.Errorf("bad column spec %q", col)
		}
		var ft godb.DBType
		switch parts[1] {
		case "int":
			ft = godb.IntType
		case "string":
			ft = godb.StringType
		default:
			return tableSpec{}, fmt.Errorf("unknown type %q", parts[1])
		}
		fields = append(fields, godb.FieldType{Fname: parts[0], Ftype: ft})
	}
	return tableSpec{
		name: nameRest[0],
		path: pathSchema[0],
		desc: &godb.TupleDesc{Fields: fields},
	}, nil
}

// multiFlag collects repeated -table flags.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
