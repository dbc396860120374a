package export

// Table is the positional tabular payload the report renderers share. Rows
// follow the column order; short rows render with trailing blanks.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}
