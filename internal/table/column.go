package table

// Column is a named, described sequence of cell values, one per row.
// An indexed column is ragged: each cell holds a variable-length list.
// A reference column's cells hold row positions into a fixed target
// table (a single position, or a list of positions when indexed).
type Column struct {
	name        string
	description string
	required    bool
	indexed     bool
	target      *Table
	cells       []interface{}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Description returns the column description.
func (c *Column) Description() string { return c.description }

// Required reports whether every row must supply a value.
func (c *Column) Required() bool { return c.required }

// Indexed reports whether cells hold variable-length lists.
func (c *Column) Indexed() bool { return c.indexed }

// IsReference reports whether the column points into another table.
func (c *Column) IsReference() bool { return c.target != nil }

// Target returns the referenced table, or nil for data columns.
func (c *Column) Target() *Table { return c.target }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.cells) }

// Cell returns the value at row position pos.
func (c *Column) Cell(pos int) interface{} { return c.cells[pos] }
