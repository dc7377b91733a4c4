package hierarchy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
)

// TestProperty_FlattenRowCount validates the flatten row-count law: for a
// two level hierarchy the flattened frame holds exactly one row per group
// member, summed over all grouping rows.
func TestProperty_FlattenRowCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("row count equals the sum of group sizes", prop.ForAll(
		func(baseRows int, groupSizes []int) bool {
			base := table.New("base", "")
			if err := base.AddColumn(schema.ColumnSpec{Name: "v"}, nil, nil); err != nil {
				return false
			}
			for i := 0; i < baseRows; i++ {
				if _, err := base.AddRow(table.RowInput{Values: map[string]interface{}{"v": i}}); err != nil {
					return false
				}
			}

			level1 := table.New("level1", "")
			if err := level1.AddColumn(schema.ColumnSpec{
				Name: "groups", Indexed: true, Reference: "base",
			}, nil, base); err != nil {
				return false
			}

			want := 0
			for i, size := range groupSizes {
				if size > baseRows {
					size = baseRows
				}
				group := make([]int, size)
				for j := range group {
					group[j] = (i + j) % baseRows
				}
				want += size
				if _, err := level1.AddRow(table.RowInput{Values: map[string]interface{}{"groups": group}}); err != nil {
					return false
				}
			}

			f, err := NewView(level1).ToHierarchicalFrame(false)
			if err != nil {
				return false
			}
			return f.NumRows() == want
		},
		gen.IntRange(1, 30),
		gen.SliceOf(gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}
