// Package schema provides the declarative column metadata used to
// validate table construction, plus an explicit registry of table
// specs. Registration is always an explicit call made by the
// application entry point; nothing registers itself at import time.
package schema

// ColumnSpec declares a single column of a table type.
type ColumnSpec struct {
	// Name is the column name
	Name string `json:"name"`

	// Description is user-facing column documentation
	Description string `json:"description"`

	// Required indicates whether every row must supply a value
	Required bool `json:"required"`

	// Indexed indicates a ragged column whose cells are
	// variable-length lists
	Indexed bool `json:"indexed"`

	// Reference names the declared table type this column's cells
	// point into; empty for plain data columns
	Reference string `json:"reference,omitempty"`
}

// IsReference reports whether the column points into another table.
func (c ColumnSpec) IsReference() bool {
	return c.Reference != ""
}

// TableSpec declares a table type: its canonical name, description and
// column list in declaration order.
type TableSpec struct {
	// Name is the canonical table name
	Name string `json:"name"`

	// Description is user-facing table documentation
	Description string `json:"description"`

	// Columns lists the declared columns in order
	Columns []ColumnSpec `json:"columns"`
}

// Column returns the spec of the named column.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// RequiredColumns returns the names of all required columns in order.
func (t TableSpec) RequiredColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}
