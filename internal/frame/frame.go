// Package frame provides the tabular output value produced by table
// projections and hierarchy flattening: a rectangular block of data
// columns plus a (possibly multi-level) row index, with source-qualified
// labels for both.
package frame

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/icetab/icetab/internal/errors"
)

// Label names one index level or one column. Source qualifies the name
// with the table the values came from; a Label with an empty Source is a
// flat single-level name.
type Label struct {
	Source string
	Name   string
}

// Flat creates a single-level label.
func Flat(name string) Label {
	return Label{Name: name}
}

// Qualified creates a (source table, name) label.
func Qualified(source, name string) Label {
	return Label{Source: source, Name: name}
}

// String renders the label the way it appears in output headers.
func (l Label) String() string {
	if l.Source == "" {
		return l.Name
	}
	return fmt.Sprintf("(%s, %s)", l.Source, l.Name)
}

// FlatName joins source and name with an underscore, the form used when
// index levels are moved into ordinary columns.
func (l Label) FlatName() string {
	if l.Source == "" {
		return l.Name
	}
	return l.Source + "_" + l.Name
}

// Frame is a row-indexed rectangular value. Index tuples and data rows
// are stored row-wise; the index may have zero levels, in which case
// rows are identified by position only.
type Frame struct {
	indexNames []Label
	columns    []Label
	index      [][]interface{}
	data       [][]interface{}

	// outer maps the fingerprint of the outermost index value to the
	// positions carrying it, in row order. Built lazily.
	outer map[Fingerprint][]int
}

// New creates an empty frame with the given index level names and
// column labels.
func New(indexNames, columns []Label) *Frame {
	return &Frame{
		indexNames: append([]Label(nil), indexNames...),
		columns:    append([]Label(nil), columns...),
	}
}

// IndexNames returns the index level labels.
func (f *Frame) IndexNames() []Label {
	return f.indexNames
}

// Columns returns the column labels.
func (f *Frame) Columns() []Label {
	return f.columns
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return len(f.data)
}

// AppendRow appends one row. The index key arity must match the number
// of index levels and the data arity the number of columns.
func (f *Frame) AppendRow(indexKey, data []interface{}) error {
	if len(indexKey) != len(f.indexNames) {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeColumnLengthMismatch,
			"index key has %d values, frame has %d index levels", len(indexKey), len(f.indexNames))
	}
	if len(data) != len(f.columns) {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeColumnLengthMismatch,
			"row has %d values, frame has %d columns", len(data), len(f.columns))
	}
	f.index = append(f.index, append([]interface{}(nil), indexKey...))
	f.data = append(f.data, append([]interface{}(nil), data...))
	f.outer = nil
	return nil
}

// IndexRow returns the index tuple of row i.
func (f *Frame) IndexRow(i int) []interface{} {
	return f.index[i]
}

// DataRow returns the data values of row i.
func (f *Frame) DataRow(i int) []interface{} {
	return f.data[i]
}

// Cell returns the data value at row i, column j.
func (f *Frame) Cell(i, j int) interface{} {
	return f.data[i][j]
}

// RowsWithOuter returns the positions, in row order, whose outermost
// index level equals v. Matching is by normalized key, so slice-valued
// cells compare by content.
func (f *Frame) RowsWithOuter(v interface{}) []int {
	if len(f.indexNames) == 0 {
		return nil
	}
	if f.outer == nil {
		f.outer = make(map[Fingerprint][]int, len(f.index))
		for i, key := range f.index {
			fp := FingerprintOf(key[0])
			f.outer[fp] = append(f.outer[fp], i)
		}
	}
	return f.outer[FingerprintOf(v)]
}

// ResetIndex moves every index level into ordinary leading columns,
// labeled with the level's flat name, and returns the resulting frame.
// The result has a zero-level (positional) index.
func (f *Frame) ResetIndex() *Frame {
	cols := make([]Label, 0, len(f.indexNames)+len(f.columns))
	for _, l := range f.indexNames {
		cols = append(cols, Flat(l.FlatName()))
	}
	for _, l := range f.columns {
		cols = append(cols, Flat(l.FlatName()))
	}
	out := New(nil, cols)
	for i := range f.data {
		row := make([]interface{}, 0, len(cols))
		row = append(row, f.index[i]...)
		row = append(row, f.data[i]...)
		out.index = append(out.index, nil)
		out.data = append(out.data, row)
	}
	return out
}

// WithColumns returns a copy of the frame sharing the same rows but
// carrying the given column labels.
func (f *Frame) WithColumns(columns []Label) (*Frame, error) {
	if len(columns) != len(f.columns) {
		return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeColumnLengthMismatch,
			"got %d column labels, frame has %d columns", len(columns), len(f.columns))
	}
	out := &Frame{
		indexNames: f.indexNames,
		columns:    append([]Label(nil), columns...),
		index:      f.index,
		data:       f.data,
	}
	return out, nil
}

// Equal reports whether two frames have the same labels and the same
// rows, comparing cell values by normalized key.
func (f *Frame) Equal(other *Frame) bool {
	if other == nil {
		return false
	}
	if !labelsEqual(f.indexNames, other.indexNames) || !labelsEqual(f.columns, other.columns) {
		return false
	}
	if len(f.data) != len(other.data) {
		return false
	}
	for i := range f.data {
		if !tupleEqual(f.index[i], other.index[i]) || !tupleEqual(f.data[i], other.data[i]) {
			return false
		}
	}
	return true
}

// WriteCSV renders the frame, index levels first, as CSV.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(f.indexNames)+len(f.columns))
	for _, l := range f.indexNames {
		header = append(header, l.String())
	}
	for _, l := range f.columns {
		header = append(header, l.String())
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range f.data {
		row := make([]string, 0, len(header))
		for _, v := range f.index[i] {
			row = append(row, renderValue(v))
		}
		for _, v := range f.data[i] {
			row = append(row, renderValue(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func labelsEqual(a, b []Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func tupleEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if FingerprintOf(a[i]) != FingerprintOf(b[i]) {
			return false
		}
	}
	return true
}

func renderValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
