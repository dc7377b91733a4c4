// Package aligned implements the aligned table group: a main table
// plus an ordered set of named side tables ("categories") that always
// hold exactly as many rows as the main table. Row adds span the whole
// group; projections concatenate the group into a single frame keyed
// by (table, column).
package aligned

import (
	"sort"
	"strings"

	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
	"github.com/icetab/icetab/pkg/types"
)

// Group is a main table plus row-count-synchronized category tables.
type Group struct {
	main  *table.Table
	order []string
	cats  map[string]*table.Table
}

// Config carries the optional pre-built categories for NewGroup.
// CategoryNames, when given, fixes the category order and must name
// exactly the tables supplied in Categories.
type Config struct {
	Categories    []*table.Table
	CategoryNames []string
}

// NewGroup creates a group around main. Every supplied category must
// already hold the same number of rows as main.
func NewGroup(main *table.Table, cfg Config) (*Group, error) {
	if main == nil {
		return nil, errors.NewAlignmentError(errors.CodeCategoryArity, "main table is required")
	}
	if len(cfg.CategoryNames) > 0 && len(cfg.Categories) == 0 {
		return nil, errors.NewAlignmentError(errors.CodeCategoryArity,
			"category names given without category tables")
	}
	if len(cfg.CategoryNames) > 0 && len(cfg.CategoryNames) != len(cfg.Categories) {
		return nil, errors.Newf(errors.ErrCategoryAlignment, errors.CodeCategoryArity,
			"got %d category names for %d category tables", len(cfg.CategoryNames), len(cfg.Categories))
	}

	g := &Group{main: main, cats: make(map[string]*table.Table)}

	byName := make(map[string]*table.Table, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		if _, ok := byName[cat.Name()]; ok {
			return nil, errors.Newf(errors.ErrCategoryAlignment, errors.CodeDuplicateCategory,
				"duplicate category table %q", cat.Name())
		}
		byName[cat.Name()] = cat
	}

	ordered := cfg.Categories
	if len(cfg.CategoryNames) > 0 {
		ordered = make([]*table.Table, 0, len(cfg.CategoryNames))
		for _, name := range cfg.CategoryNames {
			cat, ok := byName[name]
			if !ok {
				return nil, errors.Newf(errors.ErrCategoryAlignment, errors.CodeCategoryArity,
					"category name %q matches no supplied category table", name)
			}
			ordered = append(ordered, cat)
		}
	}

	for _, cat := range ordered {
		if err := g.AddCategory(cat); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Main returns the group's main table.
func (g *Group) Main() *table.Table { return g.main }

// Len returns the shared row count of the group.
func (g *Group) Len() int { return g.main.Len() }

// Categories returns the category names in declaration order.
func (g *Group) Categories() []string {
	return append([]string(nil), g.order...)
}

// HasCategory reports whether name is a known category.
func (g *Group) HasCategory(name string) bool {
	_, ok := g.cats[name]
	return ok
}

// HasColumn reports whether the named category has the named column.
func (g *Group) HasColumn(category, column string) bool {
	cat, ok := g.cats[category]
	if !ok {
		return false
	}
	_, ok = cat.Column(column)
	return ok
}

// Category returns the named category table.
func (g *Group) Category(name string) (*table.Table, error) {
	cat, ok := g.cats[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryAlignment, errors.CodeCategoryNotFound,
			"unknown category %q", name)
	}
	return cat, nil
}

// CategoryColumn returns a single column of the named category table.
func (g *Group) CategoryColumn(category, column string) (*table.Column, error) {
	cat, err := g.Category(category)
	if err != nil {
		return nil, err
	}
	col, ok := cat.Column(column)
	if !ok {
		return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownColumn,
			"category %q has no column %q", category, column)
	}
	return col, nil
}

// AddCategory appends a new category table. Its row count must match
// the main table's current row count.
func (g *Group) AddCategory(cat *table.Table) error {
	if _, ok := g.cats[cat.Name()]; ok {
		return errors.Newf(errors.ErrCategoryAlignment, errors.CodeDuplicateCategory,
			"duplicate category table %q", cat.Name())
	}
	if cat.Len() != g.main.Len() {
		return errors.Newf(errors.ErrCategoryAlignment, errors.CodeRowCountMismatch,
			"category table %q has %d rows expected %d", cat.Name(), cat.Len(), g.main.Len())
	}
	g.order = append(g.order, cat.Name())
	g.cats[cat.Name()] = cat
	return nil
}

// AddColumn routes a new column to the main table (category == "") or
// to the named category.
func (g *Group) AddColumn(category string, spec schema.ColumnSpec, data []interface{}, target *table.Table) error {
	if category == "" {
		return g.main.AddColumn(spec, data, target)
	}
	cat, err := g.Category(category)
	if err != nil {
		return err
	}
	return cat.AddColumn(spec, data, target)
}

// RowInput is the composite payload for one group row: the main-table
// values plus one sub-payload per category.
type RowInput struct {
	// ID is the explicit row id shared by the main table and every
	// category; nil assigns the main table's next sequential id.
	ID *int

	// Values holds the main-table column values.
	Values map[string]interface{}

	// Categories maps category name to that category's column values.
	Categories map[string]map[string]interface{}
}

// AddRow appends one row to the main table and to every category, in
// category-declaration order, all under the same row id.
//
// The whole payload is validated before anything is appended: unknown
// or missing categories, missing required columns and duplicate ids
// all fail with the group unchanged. A failure injected through other
// means mid-apply would leave the group misaligned; callers must then
// discard the group.
func (g *Group) AddRow(in RowInput) (int, error) {
	for name := range in.Categories {
		if _, ok := g.cats[name]; !ok {
			return 0, errors.Newf(errors.ErrCategoryAlignment, errors.CodeCategoryNotFound,
				"unknown category %q", name)
		}
	}
	var missing []string
	for _, name := range g.order {
		if _, ok := in.Categories[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, errors.Newf(errors.ErrCategoryAlignment, errors.CodeMissingCategory,
			"row data missing for categories: %s", strings.Join(missing, ", "))
	}

	id := g.main.NextID()
	if in.ID != nil {
		id = *in.ID
	}

	if err := g.main.ValidateRow(table.RowInput{ID: &id, Values: in.Values}); err != nil {
		return 0, err
	}
	for _, name := range g.order {
		if err := g.cats[name].ValidateRow(table.RowInput{ID: &id, Values: in.Categories[name]}); err != nil {
			return 0, err
		}
	}

	pos, err := g.main.AddRow(table.RowInput{ID: &id, Values: in.Values})
	if err != nil {
		return 0, err
	}
	for _, name := range g.order {
		if _, err := g.cats[name].AddRow(table.RowInput{ID: &id, Values: in.Categories[name]}); err != nil {
			return 0, err
		}
	}
	return pos, nil
}

// FrameOptions controls group projections.
type FrameOptions struct {
	// DropCategoryIDs omits the per-category id column, which
	// duplicates the main table's ids.
	DropCategoryIDs bool

	// OpaqueRefs replaces electrode/stimulus/response object
	// references with their stable opaque identifiers, for comparing
	// a group against one read back from a snapshot.
	OpaqueRefs bool
}

// ToFrame concatenates the main table and every category into a single
// frame, column-keyed by (table, column).
func (g *Group) ToFrame(opt FrameOptions) (*frame.Frame, error) {
	return g.RowsAt(allPositions(g.main.Len()), opt)
}

// RowsAt is ToFrame restricted to the given row positions.
func (g *Group) RowsAt(positions []int, opt FrameOptions) (*frame.Frame, error) {
	for _, p := range positions {
		if p < 0 || p >= g.main.Len() {
			return nil, errorRowOut(g.main, p)
		}
	}

	var cols []frame.Label
	for _, name := range g.main.ColumnNames() {
		cols = append(cols, frame.Qualified(g.main.Name(), name))
	}
	for _, catName := range g.order {
		if !opt.DropCategoryIDs {
			cols = append(cols, frame.Qualified(catName, "id"))
		}
		for _, name := range g.cats[catName].ColumnNames() {
			cols = append(cols, frame.Qualified(catName, name))
		}
	}

	f := frame.New([]frame.Label{frame.Qualified(g.main.Name(), "id")}, cols)
	for _, p := range positions {
		row := make([]interface{}, 0, len(cols))
		for _, c := range g.main.Columns() {
			row = append(row, projectValue(c.Name(), c.Cell(p), opt))
		}
		for _, catName := range g.order {
			cat := g.cats[catName]
			if !opt.DropCategoryIDs {
				id, err := cat.IDAt(p)
				if err != nil {
					return nil, err
				}
				row = append(row, id)
			}
			for _, c := range cat.Columns() {
				row = append(row, projectValue(c.Name(), c.Cell(p), opt))
			}
		}
		id, err := g.main.IDAt(p)
		if err != nil {
			return nil, err
		}
		if err := f.AppendRow([]interface{}{id}, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Row projects a single group row.
func (g *Group) Row(pos int, opt FrameOptions) (*frame.Frame, error) {
	return g.RowsAt([]int{pos}, opt)
}

// CategoryFrame projects a single category on its own.
func (g *Group) CategoryFrame(name string) (*frame.Frame, error) {
	cat, err := g.Category(name)
	if err != nil {
		return nil, err
	}
	return cat.FrameAll(), nil
}

// Conventional column names whose cells hold object references.
var referenceColumns = map[string]bool{
	"electrode": true,
	"stimulus":  true,
	"response":  true,
}

func projectValue(column string, v interface{}, opt FrameOptions) interface{} {
	if !opt.OpaqueRefs || !referenceColumns[column] {
		return v
	}
	if id := types.OpaqueID(v); id != "" {
		return id
	}
	return v
}

func errorRowOut(t *table.Table, pos int) error {
	return errors.Newf(errors.ErrCategoryHierarchy, errors.CodeRowNotFound,
		"table %q has no row at position %d (%d rows)", t.Name(), pos, t.Len())
}

func allPositions(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}
