package export

// Dataset defines tabular export content. Columns are rendered in order;
// each row maps column name to a cell value.
type Dataset struct {
	Title   string
	Columns []string
	Rows    []map[string]string
}
