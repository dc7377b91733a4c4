// Package hierarchy flattens chains of tables linked by reference columns
// into single frames. A reference column's cells hold row positions into its
// target table; the view expands the distinguished hierarchy column
// recursively until it reaches a table with no reference columns.
package hierarchy

import (
	"fmt"

	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/table"
)

// View attaches flattening capability to a table that has at least one
// reference column. The zero value is not usable; construct with NewView.
type View struct {
	table *table.Table

	// hcol overrides the scan policy when set via WithHierarchyColumn.
	hcol string
}

// Option adjusts view construction.
type Option func(*View)

// WithHierarchyColumn pins the hierarchy column instead of letting the
// declaration-order scan choose one. The named column must exist and
// reference a table.
func WithHierarchyColumn(name string) Option {
	return func(v *View) { v.hcol = name }
}

// NewView wraps t. The table does not need a reference column at
// construction time; resolution failures surface on first use.
func NewView(t *table.Table, opts ...Option) *View {
	v := &View{table: t}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Table returns the wrapped table.
func (v *View) Table() *table.Table { return v.table }

// IsHierarchical reports whether t carries at least one reference column.
func IsHierarchical(t *table.Table) bool {
	for _, c := range t.Columns() {
		if c.Target() != nil {
			return true
		}
	}
	return false
}

// ReferencingColumnNames lists every reference column in declaration order.
func (v *View) ReferencingColumnNames() []string {
	var names []string
	for _, c := range v.table.Columns() {
		if c.Target() != nil {
			names = append(names, c.Name())
		}
	}
	return names
}

// HierarchyColumnName resolves the column to expand when flattening. The
// scan walks columns in declaration order and prefers the first reference
// column whose target is itself hierarchical; with no such column the first
// reference column wins. An explicit WithHierarchyColumn override replaces
// the scan entirely.
func (v *View) HierarchyColumnName() (string, error) {
	if v.hcol != "" {
		c, ok := v.table.Column(v.hcol)
		if !ok || c.Target() == nil {
			return "", errors.Newf(errors.ErrCategoryHierarchy, errors.CodeNoHierarchyColumn,
				"column %q on table %q is not a table reference", v.hcol, v.table.Name())
		}
		return v.hcol, nil
	}
	first := ""
	for _, c := range v.table.Columns() {
		if c.Target() == nil {
			continue
		}
		if first == "" {
			first = c.Name()
		}
		if IsHierarchical(c.Target()) {
			return c.Name(), nil
		}
	}
	if first == "" {
		return "", errors.Newf(errors.ErrCategoryHierarchy, errors.CodeNoHierarchyColumn,
			"table %q has no reference column to expand", v.table.Name())
	}
	return first, nil
}

func (v *View) hierarchyColumn() (*table.Column, error) {
	name, err := v.HierarchyColumnName()
	if err != nil {
		return nil, err
	}
	c, _ := v.table.Column(name)
	return c, nil
}

// Targets resolves the chain of tables reachable through hierarchy columns,
// ending at the leaf table. With includeSelf the wrapped table leads the
// result.
func (v *View) Targets(includeSelf bool) ([]*table.Table, error) {
	hcol, err := v.hierarchyColumn()
	if err != nil {
		return nil, err
	}
	var chain []*table.Table
	if includeSelf {
		chain = append(chain, v.table)
	}
	target := hcol.Target()
	for {
		chain = append(chain, target)
		if !IsHierarchical(target) {
			return chain, nil
		}
		next, err := NewView(target).hierarchyColumn()
		if err != nil {
			return nil, err
		}
		target = next.Target()
	}
}

// ToHierarchicalFrame expands the hierarchy column recursively and returns
// one output row per reachable leaf row. The index carries one (table,
// column) label per level: the row id of each level followed by that level's
// non-hierarchy columns. With flat the data columns keep single-level names
// taken from the immediate target; otherwise they are labeled
// (source_table, column).
func (v *View) ToHierarchicalFrame(flat bool) (*frame.Frame, error) {
	hcol, err := v.hierarchyColumn()
	if err != nil {
		return nil, err
	}
	target := hcol.Target()

	indexNames := []frame.Label{frame.Qualified(v.table.Name(), "id")}
	restCols := v.restColumns(hcol.Name())
	for _, c := range restCols {
		indexNames = append(indexNames, frame.Qualified(v.table.Name(), c.Name()))
	}

	if !IsHierarchical(target) {
		return v.flattenLeaf(hcol, target, indexNames, restCols, flat)
	}
	return v.flattenRecursive(hcol, target, indexNames, restCols, flat)
}

// flattenLeaf handles a hierarchy column whose target has no further
// references. Every position in a row's group contributes one output row
// holding the target row's id and column values.
func (v *View) flattenLeaf(hcol *table.Column, target *table.Table,
	indexNames []frame.Label, restCols []*table.Column, flat bool) (*frame.Frame, error) {

	var cols []frame.Label
	if flat {
		cols = append(cols, frame.Flat("id"))
		for _, name := range target.ColumnNames() {
			cols = append(cols, frame.Flat(name))
		}
	} else {
		cols = append(cols, frame.Qualified(target.Name(), "id"))
		for _, name := range target.ColumnNames() {
			cols = append(cols, frame.Qualified(target.Name(), name))
		}
	}

	out := frame.New(indexNames, cols)
	for r := 0; r < v.table.Len(); r++ {
		group, err := v.groupAt(hcol, r)
		if err != nil {
			return nil, err
		}
		key, err := v.indexKeyAt(r, restCols)
		if err != nil {
			return nil, err
		}
		for _, p := range group {
			id, err := target.IDAt(p)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCategoryHierarchy, errors.CodeTargetRowNotFound,
					fmt.Sprintf("row group on %q references missing row %d of %q", v.table.Name(), p, target.Name()), err)
			}
			data := []interface{}{id}
			for _, c := range target.Columns() {
				data = append(data, c.Cell(p))
			}
			if err := out.AppendRow(key, data); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// flattenRecursive flattens the target first and then matches each group
// position against the outermost index level of the target's flattened
// frame. Data columns are inherited unchanged from the deeper flattening.
func (v *View) flattenRecursive(hcol *table.Column, target *table.Table,
	indexNames []frame.Label, restCols []*table.Column, flat bool) (*frame.Frame, error) {

	inner, err := NewView(target).ToHierarchicalFrame(flat)
	if err != nil {
		return nil, err
	}
	indexNames = append(indexNames, inner.IndexNames()...)

	out := frame.New(indexNames, inner.Columns())
	for r := 0; r < v.table.Len(); r++ {
		group, err := v.groupAt(hcol, r)
		if err != nil {
			return nil, err
		}
		key, err := v.indexKeyAt(r, restCols)
		if err != nil {
			return nil, err
		}
		for _, p := range group {
			id, err := target.IDAt(p)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCategoryHierarchy, errors.CodeTargetRowNotFound,
					fmt.Sprintf("row group on %q references missing row %d of %q", v.table.Name(), p, target.Name()), err)
			}
			// A single target row may have fanned out into many rows of
			// the inner frame. Row ids are unique, so matching on the
			// outermost index level recovers exactly that row's expansion.
			for _, m := range inner.RowsWithOuter(id) {
				full := append(append([]interface{}{}, key...), inner.IndexRow(m)...)
				if err := out.AppendRow(full, inner.DataRow(m)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// ToDenormalizedFrame moves every index level into ordinary columns. With
// flat the column names stay single-level; otherwise each flattened name is
// split on the longest matching table-name prefix from the chain and
// relabeled (source_table, column), falling back to the deepest table when
// no name matches.
func (v *View) ToDenormalizedFrame(flat bool) (*frame.Frame, error) {
	hier, err := v.ToHierarchicalFrame(true)
	if err != nil {
		return nil, err
	}
	out := hier.ResetIndex()
	if flat {
		return out, nil
	}

	chain, err := v.Targets(true)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(chain))
	for i, t := range chain {
		names[i] = t.Name()
	}

	relabeled := make([]frame.Label, len(out.Columns()))
	for i, col := range out.Columns() {
		relabeled[i] = splitOnTablePrefix(col.FlatName(), names)
	}
	return out.WithColumns(relabeled)
}

// splitOnTablePrefix attributes a flattened column name to the longest
// table name that prefixes it, stripping the prefix and its separating
// underscore. Names matching no table belong to the deepest table.
func splitOnTablePrefix(name string, tables []string) frame.Label {
	best := ""
	for _, t := range tables {
		if len(t) > len(best) && hasPrefix(name, t) {
			best = t
		}
	}
	if best == "" {
		return frame.Qualified(tables[len(tables)-1], name)
	}
	rest := name[len(best):]
	if len(rest) > 0 && rest[0] == '_' {
		rest = rest[1:]
	}
	return frame.Qualified(best, rest)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// restColumns returns the wrapped table's columns minus the hierarchy
// column, in declaration order.
func (v *View) restColumns(hcolName string) []*table.Column {
	var rest []*table.Column
	for _, c := range v.table.Columns() {
		if c.Name() != hcolName {
			rest = append(rest, c)
		}
	}
	return rest
}

// indexKeyAt builds the index contribution of row r: its id followed by the
// non-hierarchy column values. Variable-length cells are frozen into tuples
// so the key stays usable for grouping.
func (v *View) indexKeyAt(r int, restCols []*table.Column) ([]interface{}, error) {
	id, err := v.table.IDAt(r)
	if err != nil {
		return nil, err
	}
	key := []interface{}{id}
	for _, c := range restCols {
		key = append(key, frame.NormalizeValue(c.Cell(r)))
	}
	return key, nil
}

// groupAt reads the hierarchy cell of row r as a list of target positions.
func (v *View) groupAt(hcol *table.Column, r int) ([]int, error) {
	switch g := hcol.Cell(r).(type) {
	case nil:
		return nil, nil
	case []int:
		return g, nil
	case []interface{}:
		return v.positionsOf(g, r)
	case frame.Tuple:
		return v.positionsOf(g, r)
	default:
		return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeTargetRowNotFound,
			"row group on %q row %d is not a position list (%T)", v.table.Name(), r, g)
	}
}

func (v *View) positionsOf(g []interface{}, r int) ([]int, error) {
	out := make([]int, 0, len(g))
	for _, e := range g {
		p, ok := e.(int)
		if !ok {
			return nil, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeTargetRowNotFound,
				"row group on %q row %d holds a non-integer position %v", v.table.Name(), r, e)
		}
		out = append(out, p)
	}
	return out, nil
}
