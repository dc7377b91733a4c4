package aligned

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
)

// TestProperty_GroupAlignment validates the alignment invariant: after any
// sequence of successful and failed mutations, the main table and every
// category table hold exactly the same number of rows.
func TestProperty_GroupAlignment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	newGroup := func(catCount int) (*Group, error) {
		main := table.New("main", "")
		if err := main.AddColumn(schema.ColumnSpec{Name: "m"}, nil, nil); err != nil {
			return nil, err
		}
		cats := make([]*table.Table, catCount)
		names := []string{"cat_a", "cat_b", "cat_c"}
		for i := range cats {
			cats[i] = table.New(names[i], "")
			if err := cats[i].AddColumn(schema.ColumnSpec{Name: "v", Required: true}, nil, nil); err != nil {
				return nil, err
			}
		}
		return NewGroup(main, Config{Categories: cats})
	}

	aligned := func(g *Group) bool {
		for _, name := range g.Categories() {
			cat, err := g.Category(name)
			if err != nil || cat.Len() != g.Len() {
				return false
			}
		}
		return true
	}

	properties.Property("row count stays equal across all tables", prop.ForAll(
		func(catCount int, ops []bool) bool {
			g, err := newGroup(catCount)
			if err != nil {
				return false
			}

			for i, complete := range ops {
				in := RowInput{
					Values:     map[string]interface{}{"m": i},
					Categories: map[string]map[string]interface{}{},
				}
				last := len(g.Categories())
				if !complete && last > 0 {
					// Drop one category payload so the row is rejected.
					last--
				}
				for _, name := range g.Categories()[:last] {
					in.Categories[name] = map[string]interface{}{"v": i}
				}

				_, err := g.AddRow(in)
				if complete && err != nil {
					return false
				}
				if !complete && catCount > 0 && err == nil {
					return false
				}
				if !aligned(g) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 3),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("late categories must match the main row count", prop.ForAll(
		func(rows, extra int) bool {
			g, err := newGroup(0)
			if err != nil {
				return false
			}
			for i := 0; i < rows; i++ {
				if _, err := g.AddRow(RowInput{Values: map[string]interface{}{"m": i}}); err != nil {
					return false
				}
			}

			late := table.New("late", "")
			if err := late.AddColumn(schema.ColumnSpec{Name: "v"}, nil, nil); err != nil {
				return false
			}
			for i := 0; i < rows+extra; i++ {
				if _, err := late.AddRow(table.RowInput{Values: map[string]interface{}{"v": i}}); err != nil {
					return false
				}
			}

			err = g.AddCategory(late)
			if extra == 0 {
				return err == nil && aligned(g)
			}
			return err != nil && aligned(g)
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
