package godb

// SeqScan reads every tuple of a table in storage order, tagging each with
// the table's alias so later operators can resolve qualified field names
// (alias.field) unambiguously.
type SeqScan struct {
	file  DBFile
	alias string
	desc  *TupleDesc
}

// NewSeqScan constructs a scan of file, labeling every tuple it produces
// with alias as their TableQualifier.
func NewSeqScan(file DBFile, alias string) *SeqScan {
	desc := file.Descriptor().copy()
	desc.setTableAlias(alias)
	return &SeqScan{file: file, alias: alias, desc: desc}
}

func (ss *SeqScan) Descriptor() *TupleDesc {
	return ss.desc
}

// Iterator pulls from the underlying file's iterator, which already fetches
// each page read-locked through the buffer pool, and relabels every tuple
// with this scan's alias.
func (ss *SeqScan) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	fileIter, err := ss.file.Iterator(tid)
	if err != nil {
		return nil, err
	}
	desc := *ss.desc
	return func() (*Tuple, error) {
		t, err := fileIter()
		if err != nil || t == nil {
			return nil, err
		}
		out := *t
		out.Desc = desc
		return &out, nil
	}, nil
}
