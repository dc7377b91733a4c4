package icephys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icetab/icetab/internal/aligned"
	icerr "github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
	"github.com/icetab/icetab/pkg/types"
)

func tableWithColumns(t *testing.T, name string, cols ...string) *table.Table {
	t.Helper()
	tbl := table.New(name, "")
	for _, c := range cols {
		require.NoError(t, tbl.AddColumn(schema.ColumnSpec{Name: c}, nil, nil))
	}
	return tbl
}

func testElectrode(name string) *types.Electrode {
	return types.NewElectrode(name, "test electrode", "amplifier-1")
}

func testSeries(name string, mode types.ClampMode, samples int) *types.TimeSeries {
	data := make([]float64, samples)
	for i := range data {
		data[i] = float64(i)
	}
	return types.NewTimeSeries(name, "volts", mode, data, 20000)
}

func TestAddRecordingFullPair(t *testing.T) {
	rt := NewRecordingsTable()
	stim := testSeries("stim0", types.ClampModeCurrent, 10)
	resp := testSeries("resp0", types.ClampModeCurrent, 10)

	pos, err := rt.AddRecording(Recording{
		Electrode: testElectrode("elec0"),
		Stimulus:  stim,
		Response:  resp,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	require.Equal(t, 1, rt.Len())

	stimCell, err := rt.Table().CellAt("stimulus", 0)
	require.NoError(t, err)
	assert.Equal(t, types.SeriesSpan{Start: 0, Count: 10, Series: stim}, stimCell)
	respCell, err := rt.Table().CellAt("response", 0)
	require.NoError(t, err)
	assert.Equal(t, types.SeriesSpan{Start: 0, Count: 10, Series: resp}, respCell)
}

func TestAddRecordingPartialSpan(t *testing.T) {
	rt := NewRecordingsTable()
	stim := testSeries("stim0", types.ClampModeUnspecified, 10)

	_, err := rt.AddRecording(Recording{
		Electrode:     testElectrode("elec0"),
		Stimulus:      stim,
		StimulusStart: 3,
		StimulusCount: 4,
		Response:      testSeries("resp0", types.ClampModeUnspecified, 10),
	})
	require.NoError(t, err)

	cell, err := rt.Table().CellAt("stimulus", 0)
	require.NoError(t, err)
	span := cell.(types.SeriesSpan)
	assert.Equal(t, 3, span.Start)
	assert.Equal(t, 4, span.Count)
}

// A recording with only a response stores the response series on both
// columns, with the stimulus side marked not recorded and the response
// span covering the full series.
func TestAddRecordingResponseOnly(t *testing.T) {
	rt := NewRecordingsTable()
	resp := testSeries("resp0", types.ClampModeVoltage, 8)

	_, err := rt.AddRecording(Recording{
		Electrode: testElectrode("elec0"),
		Response:  resp,
	})
	require.NoError(t, err)

	stimCell, err := rt.Table().CellAt("stimulus", 0)
	require.NoError(t, err)
	assert.Equal(t, types.SeriesSpan{Start: -1, Count: -1, Series: resp}, stimCell)
	assert.False(t, stimCell.(types.SeriesSpan).Recorded())

	respCell, err := rt.Table().CellAt("response", 0)
	require.NoError(t, err)
	assert.Equal(t, types.SeriesSpan{Start: 0, Count: 8, Series: resp}, respCell)
}

func TestAddRecordingStimulusOnly(t *testing.T) {
	rt := NewRecordingsTable()
	stim := testSeries("stim0", types.ClampModeVoltage, 8)

	_, err := rt.AddRecording(Recording{
		Electrode: testElectrode("elec0"),
		Stimulus:  stim,
	})
	require.NoError(t, err)

	respCell, err := rt.Table().CellAt("response", 0)
	require.NoError(t, err)
	assert.Equal(t, types.SeriesSpan{Start: -1, Count: -1, Series: stim}, respCell)
}

func TestAddRecordingBothNil(t *testing.T) {
	rt := NewRecordingsTable()
	_, err := rt.AddRecording(Recording{Electrode: testElectrode("elec0")})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeSeriesRequired, icerr.GetCode(err))
	assert.Contains(t, err.Error(), "stimulus and response cannot both be nil")
	assert.Equal(t, 0, rt.Len())
}

func TestAddRecordingRangeChecks(t *testing.T) {
	rt := NewRecordingsTable()
	stim := testSeries("stim0", types.ClampModeUnspecified, 5)

	_, err := rt.AddRecording(Recording{
		Electrode:     testElectrode("elec0"),
		Stimulus:      stim,
		StimulusStart: 5,
	})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeStartOutOfRange, icerr.GetCode(err))

	_, err = rt.AddRecording(Recording{
		Electrode:     testElectrode("elec0"),
		Stimulus:      stim,
		StimulusStart: 2,
		StimulusCount: 4,
	})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeSpanOutOfRange, icerr.GetCode(err))

	_, err = rt.AddRecording(Recording{
		Electrode:     testElectrode("elec0"),
		Response:      testSeries("resp0", types.ClampModeUnspecified, 5),
		ResponseStart: 7,
	})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeStartOutOfRange, icerr.GetCode(err))

	assert.Equal(t, 0, rt.Len())
}

func TestAddRecordingClampModeMismatch(t *testing.T) {
	rt := NewRecordingsTable()
	_, err := rt.AddRecording(Recording{
		Electrode: testElectrode("elec0"),
		Stimulus:  testSeries("stim0", types.ClampModeVoltage, 5),
		Response:  testSeries("resp0", types.ClampModeCurrent, 5),
	})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeClampModeMismatch, icerr.GetCode(err))

	// An unspecified mode on either side disables the check.
	_, err = rt.AddRecording(Recording{
		Electrode: testElectrode("elec0"),
		Stimulus:  testSeries("stim1", types.ClampModeUnspecified, 5),
		Response:  testSeries("resp1", types.ClampModeCurrent, 5),
	})
	require.NoError(t, err)
}

func TestAddRecordingMissingElectrode(t *testing.T) {
	rt := NewRecordingsTable()
	_, err := rt.AddRecording(Recording{
		Stimulus: testSeries("stim0", types.ClampModeUnspecified, 5),
	})
	require.Error(t, err)
	assert.Equal(t, icerr.CodeRequiredColumnMissing, icerr.GetCode(err))
}

func TestAddRecordingExtraAndCategories(t *testing.T) {
	rt := NewRecordingsTable()
	require.NoError(t, rt.AddColumn("", schema.ColumnSpec{Name: "quality"}, nil))

	qc := tableWithColumns(t, "qc", "passed")
	require.NoError(t, rt.AddCategory(qc))

	_, err := rt.AddRecording(Recording{
		Electrode:  testElectrode("elec0"),
		Stimulus:   testSeries("stim0", types.ClampModeUnspecified, 5),
		Extra:      map[string]interface{}{"quality": "good"},
		Categories: map[string]map[string]interface{}{"qc": {"passed": true}},
	})
	require.NoError(t, err)

	cell, err := rt.Table().CellAt("quality", 0)
	require.NoError(t, err)
	assert.Equal(t, "good", cell)

	f, err := rt.ToFrame(aligned.FrameOptions{DropCategoryIDs: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.NumRows())
}

func TestAddRecordingExplicitDuplicateID(t *testing.T) {
	rt := NewRecordingsTable()
	id := 4
	_, err := rt.AddRecording(Recording{
		ID:        &id,
		Electrode: testElectrode("elec0"),
		Stimulus:  testSeries("stim0", types.ClampModeUnspecified, 5),
	})
	require.NoError(t, err)

	dup := 4
	_, err = rt.AddRecording(Recording{
		ID:        &dup,
		Electrode: testElectrode("elec1"),
		Stimulus:  testSeries("stim1", types.ClampModeUnspecified, 5),
	})
	require.Error(t, err)
	assert.Equal(t, icerr.ErrCategoryUniqueness, icerr.GetCategory(err))
}
