package icephys

import (
	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/hierarchy"
	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
)

// levelTable is the shared shape of the four grouping levels: a table
// whose single built-in column references groups of rows in the level
// below, plus a hierarchy view over it.
type levelTable struct {
	tbl  *table.Table
	view *hierarchy.View
	hcol string
}

func newLevelTable(specName string, target *table.Table) (levelTable, error) {
	spec, _ := schema.BuiltinRegistry().Lookup(specName)
	if target == nil {
		return levelTable{}, errors.Newf(errors.ErrCategoryHierarchy, errors.CodeNoHierarchyColumn,
			"table %q requires the %q table it references", specName, spec.Columns[0].Reference)
	}
	tbl := table.New(spec.Name, spec.Description)
	for _, col := range spec.Columns {
		tgt := target
		if !col.IsReference() {
			tgt = nil
		}
		// Fresh table, distinct built-in names: cannot fail.
		_ = tbl.AddColumn(col, nil, tgt)
	}
	hcol := spec.Columns[0].Name
	return levelTable{
		tbl:  tbl,
		view: hierarchy.NewView(tbl, hierarchy.WithHierarchyColumn(hcol)),
		hcol: hcol,
	}, nil
}

// Table returns the underlying table, the flatten target of the level above.
func (lt *levelTable) Table() *table.Table { return lt.tbl }

// View returns the hierarchy view over this level.
func (lt *levelTable) View() *hierarchy.View { return lt.view }

// Len reports the number of groups at this level.
func (lt *levelTable) Len() int { return lt.tbl.Len() }

// AddColumn declares a metadata column on this level.
func (lt *levelTable) AddColumn(spec schema.ColumnSpec, data []interface{}) error {
	return lt.tbl.AddColumn(spec, data, nil)
}

// ToFrame projects this level alone.
func (lt *levelTable) ToFrame() *frame.Frame { return lt.tbl.FrameAll() }

// ToHierarchicalFrame flattens this level down to the recordings table.
func (lt *levelTable) ToHierarchicalFrame(flatColumns bool) (*frame.Frame, error) {
	return lt.view.ToHierarchicalFrame(flatColumns)
}

// ToDenormalizedFrame flattens this level with all index levels moved
// into ordinary columns.
func (lt *levelTable) ToDenormalizedFrame(flatColumns bool) (*frame.Frame, error) {
	return lt.view.ToDenormalizedFrame(flatColumns)
}

// addGroupRow appends a row whose hierarchy cell is the given list of
// positions into the level below. A nil group stores an empty group.
func (lt *levelTable) addGroupRow(id *int, group []int, extra map[string]interface{}) (int, error) {
	if group == nil {
		group = []int{}
	}
	values := map[string]interface{}{lt.hcol: group}
	for k, v := range extra {
		values[k] = v
	}
	return lt.tbl.AddRow(table.RowInput{ID: id, Values: values})
}

// SimultaneousRecordingsTable groups recordings taken at the same time
// from different electrodes.
type SimultaneousRecordingsTable struct {
	levelTable
}

// NewSimultaneousRecordingsTable builds the table over the given
// recordings table.
func NewSimultaneousRecordingsTable(recordings *RecordingsTable) (*SimultaneousRecordingsTable, error) {
	var target *table.Table
	if recordings != nil {
		target = recordings.Table()
	}
	lt, err := newLevelTable(schema.SimultaneousRecordingsName, target)
	if err != nil {
		return nil, err
	}
	return &SimultaneousRecordingsTable{levelTable: lt}, nil
}

// SimultaneousRecording describes one group of recording positions.
type SimultaneousRecording struct {
	ID         *int
	Recordings []int
	Extra      map[string]interface{}
}

// AddSimultaneousRecording appends a group and returns its row position.
func (t *SimultaneousRecordingsTable) AddSimultaneousRecording(s SimultaneousRecording) (int, error) {
	return t.addGroupRow(s.ID, s.Recordings, s.Extra)
}

// SequentialRecordingsTable groups simultaneous recordings applied in
// sequence, typically the same stimulus type with varying parameters.
type SequentialRecordingsTable struct {
	levelTable
}

func NewSequentialRecordingsTable(simultaneous *SimultaneousRecordingsTable) (*SequentialRecordingsTable, error) {
	var target *table.Table
	if simultaneous != nil {
		target = simultaneous.Table()
	}
	lt, err := newLevelTable(schema.SequentialRecordingsName, target)
	if err != nil {
		return nil, err
	}
	return &SequentialRecordingsTable{levelTable: lt}, nil
}

// SequentialRecording describes one group of simultaneous-recording positions.
type SequentialRecording struct {
	ID                     *int
	SimultaneousRecordings []int
	Extra                  map[string]interface{}
}

func (t *SequentialRecordingsTable) AddSequentialRecording(s SequentialRecording) (int, error) {
	return t.addGroupRow(s.ID, s.SimultaneousRecordings, s.Extra)
}

// RepetitionsTable groups sequential recordings that repeat the same
// stimulus sequence.
type RepetitionsTable struct {
	levelTable
}

func NewRepetitionsTable(sequential *SequentialRecordingsTable) (*RepetitionsTable, error) {
	var target *table.Table
	if sequential != nil {
		target = sequential.Table()
	}
	lt, err := newLevelTable(schema.RepetitionsName, target)
	if err != nil {
		return nil, err
	}
	return &RepetitionsTable{levelTable: lt}, nil
}

// Repetition describes one group of sequential-recording positions.
type Repetition struct {
	ID                   *int
	SequentialRecordings []int
	Extra                map[string]interface{}
}

func (t *RepetitionsTable) AddRepetition(r Repetition) (int, error) {
	return t.addGroupRow(r.ID, r.SequentialRecordings, r.Extra)
}

// ExperimentalConditionsTable groups repetitions recorded under the
// same experimental condition.
type ExperimentalConditionsTable struct {
	levelTable
}

func NewExperimentalConditionsTable(repetitions *RepetitionsTable) (*ExperimentalConditionsTable, error) {
	var target *table.Table
	if repetitions != nil {
		target = repetitions.Table()
	}
	lt, err := newLevelTable(schema.ExperimentalConditionsName, target)
	if err != nil {
		return nil, err
	}
	return &ExperimentalConditionsTable{levelTable: lt}, nil
}

// ExperimentalCondition describes one group of repetition positions.
type ExperimentalCondition struct {
	ID          *int
	Repetitions []int
	Extra       map[string]interface{}
}

func (t *ExperimentalConditionsTable) AddExperimentalCondition(c ExperimentalCondition) (int, error) {
	return t.addGroupRow(c.ID, c.Repetitions, c.Extra)
}
