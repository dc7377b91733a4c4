// Package icephys wires the five level tables of the intracellular
// electrophysiology hierarchy: recordings are grouped into simultaneous
// recordings, those into sequential recordings, those into repetitions,
// and repetitions into experimental conditions.
package icephys

import (
	"github.com/icetab/icetab/internal/aligned"
	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/frame"
	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
	"github.com/icetab/icetab/pkg/types"
)

// RecordingsTable is the base level of the hierarchy, an aligned group
// whose main table holds one row per recording: the electrode used, a
// sample span of the stimulus series, and a sample span of the response
// series. Callers may attach category tables for their own metadata.
type RecordingsTable struct {
	group *aligned.Group
}

// NewRecordingsTable builds an empty recordings group with the built-in
// electrode/stimulus/response columns.
func NewRecordingsTable() *RecordingsTable {
	spec, _ := schema.BuiltinRegistry().Lookup(schema.IntracellularRecordingsName)
	main := table.New(spec.Name, spec.Description)
	for _, col := range spec.Columns {
		// Fresh table, distinct built-in names: cannot fail.
		_ = main.AddColumn(col, nil, nil)
	}
	g, _ := aligned.NewGroup(main, aligned.Config{})
	return &RecordingsTable{group: g}
}

// Group exposes the underlying aligned group for category management
// and projections.
func (rt *RecordingsTable) Group() *aligned.Group { return rt.group }

// Table returns the main table, the flatten target of the level above.
func (rt *RecordingsTable) Table() *table.Table { return rt.group.Main() }

// Len reports the number of recordings.
func (rt *RecordingsTable) Len() int { return rt.group.Len() }

// AddCategory attaches a side table whose rows align one-to-one with
// the recordings.
func (rt *RecordingsTable) AddCategory(cat *table.Table) error {
	return rt.group.AddCategory(cat)
}

// AddColumn declares a column on the main table or, with a non-empty
// category name, on that category.
func (rt *RecordingsTable) AddColumn(category string, spec schema.ColumnSpec, data []interface{}) error {
	return rt.group.AddColumn(category, spec, data, nil)
}

// ToFrame projects the whole group.
func (rt *RecordingsTable) ToFrame(opt aligned.FrameOptions) (*frame.Frame, error) {
	return rt.group.ToFrame(opt)
}

// Recording describes one row of the recordings table. Electrode is
// required. At least one of Stimulus and Response must be set; when only
// one is, both stored spans share that series and the absent side is
// marked not recorded. A negative start means "from the beginning" and a
// zero or negative count means "through the last sample".
type Recording struct {
	ID        *int
	Electrode *types.Electrode

	Stimulus      *types.TimeSeries
	StimulusStart int
	StimulusCount int

	Response      *types.TimeSeries
	ResponseStart int
	ResponseCount int

	// Extra carries values for dynamically declared main-table columns.
	Extra map[string]interface{}

	// Categories carries per-category payloads, keyed by category name.
	Categories map[string]map[string]interface{}
}

// AddRecording validates the recording, resolves its sample spans and
// appends one row to the group. It returns the position of the new row.
func (rt *RecordingsTable) AddRecording(rec Recording) (int, error) {
	if rec.Stimulus == nil && rec.Response == nil {
		return 0, errors.NewDomainError(errors.CodeSeriesRequired,
			"stimulus and response cannot both be nil")
	}
	if err := checkClampModes(rec.Stimulus, rec.Response); err != nil {
		return 0, err
	}

	stimSpan, err := resolveSpan("stimulus", rec.Stimulus, rec.StimulusStart, rec.StimulusCount)
	if err != nil {
		return 0, err
	}
	respSpan, err := resolveSpan("response", rec.Response, rec.ResponseStart, rec.ResponseCount)
	if err != nil {
		return 0, err
	}

	// A single-sided recording stores the present series on both columns
	// with the absent side marked not recorded.
	if rec.Stimulus == nil {
		stimSpan = types.SeriesSpan{Start: types.SpanNotRecorded, Count: types.SpanNotRecorded, Series: rec.Response}
	}
	if rec.Response == nil {
		respSpan = types.SeriesSpan{Start: types.SpanNotRecorded, Count: types.SpanNotRecorded, Series: rec.Stimulus}
	}

	values := map[string]interface{}{
		"electrode": rec.Electrode,
		"stimulus":  stimSpan,
		"response":  respSpan,
	}
	for k, v := range rec.Extra {
		values[k] = v
	}
	return rt.group.AddRow(aligned.RowInput{ID: rec.ID, Values: values, Categories: rec.Categories})
}

// resolveSpan applies the span defaults and bounds checks for one series.
func resolveSpan(side string, series *types.TimeSeries, start, count int) (types.SeriesSpan, error) {
	if series == nil {
		return types.SeriesSpan{}, nil
	}
	if start < 0 {
		start = 0
	}
	samples := series.NumSamples()
	if count <= 0 {
		count = samples - start
	}
	if start >= samples {
		return types.SeriesSpan{}, errors.Newf(errors.ErrCategoryRange, errors.CodeStartOutOfRange,
			"%s start %d out of range, series %q has %d samples", side, start, series.Name, samples)
	}
	if start+count > samples {
		return types.SeriesSpan{}, errors.Newf(errors.ErrCategoryRange, errors.CodeSpanOutOfRange,
			"%s span [%d, %d) out of range, series %q has %d samples", side, start, start+count, series.Name, samples)
	}
	return types.SeriesSpan{Start: start, Count: count, Series: series}, nil
}

func checkClampModes(stimulus, response *types.TimeSeries) error {
	if stimulus == nil || response == nil {
		return nil
	}
	if stimulus.ClampMode == types.ClampModeUnspecified || response.ClampMode == types.ClampModeUnspecified {
		return nil
	}
	if stimulus.ClampMode != response.ClampMode {
		return errors.Newf(errors.ErrCategoryDomain, errors.CodeClampModeMismatch,
			"stimulus series %q is %s but response series %q is %s",
			stimulus.Name, stimulus.ClampMode, response.Name, response.ClampMode)
	}
	return nil
}
