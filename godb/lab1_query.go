package godb

// SumIntColumn scans file under tid and returns the sum of its named integer
// column. It is a convenience for callers that want a single aggregate
// without building out a full operator tree (AggregatorOp et al.); the CSV
// loading test uses it to check the loaded values.
func SumIntColumn(tid TransactionID, file DBFile, fieldName string) (int64, error) {
	index, err := findFieldInTd(FieldType{Fname: fieldName}, file.Descriptor())
	if err != nil {
		return 0, err
	}

	iter, err := file.Iterator(tid)
	if err != nil {
		return 0, err
	}

	var sum int64
	for {
		t, err := iter()
		if err != nil {
			return 0, err
		}
		if t == nil {
			return sum, nil
		}
		v, ok := t.Fields[index].(IntField)
		if !ok {
			return 0, NewGoDBError(TypeMismatchError, "column %s is not an int column", fieldName)
		}
		sum += v.Value
	}
}
