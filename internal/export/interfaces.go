package export

import "io"

// ExcelWriter writes tabular data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name and makes it current.
	AddSheet(name string) error

	// WriteHeader writes column headers to the current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to the current sheet.
	WriteRow(row []interface{}) error

	// Save writes the workbook to the writer.
	Save(w io.Writer) error
}
