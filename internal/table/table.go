// Package table implements the row-oriented indexed table that all
// higher levels of the hierarchy build on: an ordered set of unique
// integer row ids plus named columns of equal length, grown by
// append-only row adds.
package table

import (
	"reflect"
	"sort"

	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/schema"
)

// Table is an append-only table of named columns aligned on a shared
// row-id column. Row insertion order is the canonical row order.
type Table struct {
	name        string
	description string
	ids         []int
	pos         map[int]int
	nextID      int
	columns     []*Column
	byName      map[string]*Column
}

// New creates an empty table.
func New(name, description string) *Table {
	return &Table{
		name:        name,
		description: description,
		pos:         make(map[int]int),
		byName:      make(map[string]*Column),
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Description returns the table description.
func (t *Table) Description() string { return t.description }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// IDs returns the row ids in row order.
func (t *Table) IDs() []int {
	return append([]int(nil), t.ids...)
}

// IDAt returns the row id at the given position.
func (t *Table) IDAt(pos int) (int, error) {
	if pos < 0 || pos >= len(t.ids) {
		return 0, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
			"table %q has no row at position %d (%d rows)", t.name, pos, len(t.ids))
	}
	return t.ids[pos], nil
}

// PosOf returns the position of the row with the given id.
func (t *Table) PosOf(id int) (int, bool) {
	p, ok := t.pos[id]
	return p, ok
}

// NextID returns the id the next AddRow call would assign.
func (t *Table) NextID() int { return t.nextID }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// CellAt returns the value of the named column at row position pos.
func (t *Table) CellAt(name string, pos int) (interface{}, error) {
	c, ok := t.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownColumn,
			"table %q has no column %q", t.name, name)
	}
	if pos < 0 || pos >= len(c.cells) {
		return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
			"table %q has no row at position %d (%d rows)", t.name, pos, len(c.cells))
	}
	return c.cells[pos], nil
}

// AddColumn appends a new column. data must have exactly one value per
// existing row; a reference column additionally needs its target table.
func (t *Table) AddColumn(spec schema.ColumnSpec, data []interface{}, target *Table) error {
	if _, ok := t.byName[spec.Name]; ok {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeDuplicateColumn,
			"table %q already has a column %q", t.name, spec.Name)
	}
	if spec.IsReference() && target == nil {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownColumn,
			"reference column %q needs a target table", spec.Name)
	}
	if !spec.IsReference() && target != nil {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownColumn,
			"column %q is not declared as a reference but a target table was given", spec.Name)
	}
	if len(data) != len(t.ids) {
		return errors.NewSchemaError(errors.CodeColumnLengthMismatch,
			"column must have the same number of rows as the row-id column")
	}
	c := &Column{
		name:        spec.Name,
		description: spec.Description,
		required:    spec.Required,
		indexed:     spec.Indexed,
		target:      target,
		cells:       append([]interface{}(nil), data...),
	}
	t.columns = append(t.columns, c)
	t.byName[c.name] = c
	return nil
}

// RowInput is the payload for one AddRow call. Values holds one entry
// per column; keys that name no existing column create new plain
// columns, backfilled with nil for earlier rows.
type RowInput struct {
	// ID is the explicit row id; nil assigns the next sequential id.
	ID *int

	// Values maps column name to cell value.
	Values map[string]interface{}
}

// ValidateRow checks a row payload without mutating the table: the
// explicit id must be unused and every required column must be given a
// non-nil value.
func (t *Table) ValidateRow(in RowInput) error {
	if in.ID != nil {
		if _, ok := t.pos[*in.ID]; ok {
			return errors.Newf(errors.ErrCategoryUniqueness, errors.CodeDuplicateRowID,
				"row id %d already present in table %q", *in.ID, t.name)
		}
	}
	for _, c := range t.columns {
		if !c.required {
			continue
		}
		v, ok := in.Values[c.name]
		if !ok || isNilValue(v) {
			return errors.Newf(errors.ErrCategorySchema, errors.CodeRequiredColumnMissing,
				"required column %q missing from row for table %q", c.name, t.name)
		}
	}
	return nil
}

// isNilValue reports whether v is nil, including a typed nil pointer
// boxed into the interface, which a plain nil comparison misses.
func isNilValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// AddRow appends one row and returns its position. Row ids are always
// unique; an explicit duplicate id is rejected.
func (t *Table) AddRow(in RowInput) (int, error) {
	if err := t.ValidateRow(in); err != nil {
		return 0, err
	}

	id := t.nextID
	if in.ID != nil {
		id = *in.ID
	}
	pos := len(t.ids)
	t.ids = append(t.ids, id)
	t.pos[id] = pos
	if id >= t.nextID {
		t.nextID = id + 1
	}

	for _, c := range t.columns {
		c.cells = append(c.cells, in.Values[c.name])
	}

	// Unknown keys create new plain columns on the fly, in sorted
	// order so column layout does not depend on map iteration.
	var extra []string
	for k := range in.Values {
		if _, ok := t.byName[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		c := &Column{name: k, cells: make([]interface{}, pos+1)}
		c.cells[pos] = in.Values[k]
		t.columns = append(t.columns, c)
		t.byName[k] = c
	}
	return pos, nil
}

// FrameAll projects every row.
func (t *Table) FrameAll() *frame.Frame {
	f, _ := t.frameAt(allPositions(len(t.ids)))
	return f
}

// FrameAt projects the single row at the given position.
func (t *Table) FrameAt(pos int) (*frame.Frame, error) {
	if pos < 0 || pos >= len(t.ids) {
		return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
			"table %q has no row at position %d (%d rows)", t.name, pos, len(t.ids))
	}
	return t.frameAt([]int{pos})
}

// FrameAtPositions projects the rows at the given positions, in the
// given order.
func (t *Table) FrameAtPositions(positions []int) (*frame.Frame, error) {
	for _, p := range positions {
		if p < 0 || p >= len(t.ids) {
			return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
				"table %q has no row at position %d (%d rows)", t.name, p, len(t.ids))
		}
	}
	return t.frameAt(positions)
}

// FrameRange projects rows in the half-open position range [from, to).
func (t *Table) FrameRange(from, to int) (*frame.Frame, error) {
	if from < 0 || to > len(t.ids) || from > to {
		return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
			"range [%d, %d) out of bounds for table %q with %d rows", from, to, t.name, len(t.ids))
	}
	positions := make([]int, 0, to-from)
	for p := from; p < to; p++ {
		positions = append(positions, p)
	}
	return t.frameAt(positions)
}

// FrameByID projects the single row with the given id.
func (t *Table) FrameByID(id int) (*frame.Frame, error) {
	p, ok := t.pos[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
			"table %q has no row with id %d", t.name, id)
	}
	return t.frameAt([]int{p})
}

func (t *Table) frameAt(positions []int) (*frame.Frame, error) {
	cols := make([]frame.Label, len(t.columns))
	for i, c := range t.columns {
		cols[i] = frame.Flat(c.name)
	}
	f := frame.New([]frame.Label{frame.Qualified(t.name, "id")}, cols)
	for _, p := range positions {
		row := make([]interface{}, len(t.columns))
		for i, c := range t.columns {
			row[i] = c.cells[p]
		}
		if err := f.AppendRow([]interface{}{t.ids[p]}, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func allPositions(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}
