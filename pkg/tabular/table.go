// Package tabular holds CSV data in memory as named string columns.
//
// A cell is null when it is empty, matching how the source CSVs encode missing
// values and how the clean CSVs are written back.
package tabular

import (
	"fmt"
	"slices"
)

// Table is a column-oriented table of string cells.
type Table struct {
	Name string

	header []string
	index  map[string]int
	cols   [][]string
	rows   int

	// Malformed counts records skipped while reading because their field
	// count did not match the header.
	Malformed int
}

// New creates an empty table with the given header.
func New(name string, header []string) *Table {
	t := &Table{
		Name:   name,
		header: slices.Clone(header),
		index:  make(map[string]int, len(header)),
		cols:   make([][]string, len(header)),
	}
	for i, h := range header {
		t.index[h] = i
	}
	return t
}

// Header returns the column names in order.
func (t *Table) Header() []string { return slices.Clone(t.header) }

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// HasColumn reports whether the table has a column named name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the cells of the named column. The slice is shared with the
// table and must not be modified.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("table %s has no column %q", t.Name, name)
	}
	return t.cols[i], nil
}

// MustColumn is like Column but panics on an unknown column.
func (t *Table) MustColumn(name string) []string {
	c, err := t.Column(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Value returns a single cell. Unknown columns read as null.
func (t *Table) Value(row int, column string) string {
	i, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.cols[i][row]
}

// IsNull reports whether a cell is null.
func (t *Table) IsNull(row int, column string) bool {
	return t.Value(row, column) == ""
}

// Set overwrites a single cell.
func (t *Table) Set(row int, column string, value string) error {
	i, ok := t.index[column]
	if !ok {
		return fmt.Errorf("table %s has no column %q", t.Name, column)
	}
	t.cols[i][row] = value
	return nil
}

// Append adds a row. The record must have one cell per column.
func (t *Table) Append(record []string) error {
	if len(record) != len(t.header) {
		return fmt.Errorf("table %s: record has %d fields, want %d", t.Name, len(record), len(t.header))
	}
	for i, v := range record {
		t.cols[i] = append(t.cols[i], v)
	}
	t.rows++
	return nil
}

// Row returns a copy of row i in header order.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.cols))
	for c := range t.cols {
		out[c] = t.cols[c][i]
	}
	return out
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	out := make(map[string]string, len(t.header))
	for c, h := range t.header {
		out[h] = t.cols[c][i]
	}
	return out
}

// Filter returns a new table holding the rows for which keep returns true,
// in their original order.
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	out := New(t.Name, t.header)
	for c := range t.cols {
		col := make([]string, len(rows))
		for j, r := range rows {
			col[j] = t.cols[c][r]
		}
		out.cols[c] = col
	}
	out.rows = len(rows)
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.header)
	for c := range t.cols {
		out.cols[c] = slices.Clone(t.cols[c])
	}
	out.rows = t.rows
	out.Malformed = t.Malformed
	return out
}
