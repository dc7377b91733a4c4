package icephys

import (
	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/pkg/types"
)

// Experiment owns the five level tables of one recording session
// together with the electrodes, stimulus series and acquisition series
// they reference. Levels are created lazily, each one linked to the
// level below it on first use.
type Experiment struct {
	recordings   *RecordingsTable
	simultaneous *SimultaneousRecordingsTable
	sequential   *SequentialRecordingsTable
	repetitions  *RepetitionsTable
	conditions   *ExperimentalConditionsTable

	electrodes   map[string]*types.Electrode
	stimuli      map[string]*types.TimeSeries
	acquisitions map[string]*types.TimeSeries

	electrodeNames   []string
	stimulusNames    []string
	acquisitionNames []string
}

// NewExperiment creates an empty experiment.
func NewExperiment() *Experiment {
	return &Experiment{
		electrodes:   make(map[string]*types.Electrode),
		stimuli:      make(map[string]*types.TimeSeries),
		acquisitions: make(map[string]*types.TimeSeries),
	}
}

// Recordings returns the recordings table, creating it on first use.
func (e *Experiment) Recordings() *RecordingsTable {
	if e.recordings == nil {
		e.recordings = NewRecordingsTable()
	}
	return e.recordings
}

// SimultaneousRecordings returns the simultaneous recordings table,
// creating it, and the recordings table below it, on first use.
func (e *Experiment) SimultaneousRecordings() *SimultaneousRecordingsTable {
	if e.simultaneous == nil {
		// The target is never nil here, construction cannot fail.
		e.simultaneous, _ = NewSimultaneousRecordingsTable(e.Recordings())
	}
	return e.simultaneous
}

// SequentialRecordings returns the sequential recordings table,
// creating the levels below it on first use.
func (e *Experiment) SequentialRecordings() *SequentialRecordingsTable {
	if e.sequential == nil {
		e.sequential, _ = NewSequentialRecordingsTable(e.SimultaneousRecordings())
	}
	return e.sequential
}

// Repetitions returns the repetitions table, creating the levels below
// it on first use.
func (e *Experiment) Repetitions() *RepetitionsTable {
	if e.repetitions == nil {
		e.repetitions, _ = NewRepetitionsTable(e.SequentialRecordings())
	}
	return e.repetitions
}

// ExperimentalConditions returns the experimental conditions table,
// creating the levels below it on first use.
func (e *Experiment) ExperimentalConditions() *ExperimentalConditionsTable {
	if e.conditions == nil {
		e.conditions, _ = NewExperimentalConditionsTable(e.Repetitions())
	}
	return e.conditions
}

// AddElectrode registers an electrode by name.
func (e *Experiment) AddElectrode(el *types.Electrode) error {
	if el == nil {
		return errors.New(errors.ErrCategoryDomain, errors.CodeDuplicateObject, "electrode is nil")
	}
	if _, ok := e.electrodes[el.Name]; ok {
		return errors.Newf(errors.ErrCategoryDomain, errors.CodeDuplicateObject,
			"electrode %q already registered", el.Name)
	}
	e.electrodes[el.Name] = el
	e.electrodeNames = append(e.electrodeNames, el.Name)
	return nil
}

// Electrode looks up a registered electrode by name.
func (e *Experiment) Electrode(name string) (*types.Electrode, bool) {
	el, ok := e.electrodes[name]
	return el, ok
}

// Electrodes returns all registered electrodes in registration order.
func (e *Experiment) Electrodes() []*types.Electrode {
	out := make([]*types.Electrode, 0, len(e.electrodeNames))
	for _, name := range e.electrodeNames {
		out = append(out, e.electrodes[name])
	}
	return out
}

// AddStimulus registers a stimulus series by name.
func (e *Experiment) AddStimulus(ts *types.TimeSeries) error {
	return addSeries(ts, "stimulus", e.stimuli, &e.stimulusNames)
}

// Stimulus looks up a registered stimulus series by name.
func (e *Experiment) Stimulus(name string) (*types.TimeSeries, bool) {
	ts, ok := e.stimuli[name]
	return ts, ok
}

// Stimuli returns all registered stimulus series in registration order.
func (e *Experiment) Stimuli() []*types.TimeSeries {
	return seriesList(e.stimuli, e.stimulusNames)
}

// AddAcquisition registers an acquired (response) series by name.
func (e *Experiment) AddAcquisition(ts *types.TimeSeries) error {
	return addSeries(ts, "acquisition", e.acquisitions, &e.acquisitionNames)
}

// Acquisition looks up a registered acquisition series by name.
func (e *Experiment) Acquisition(name string) (*types.TimeSeries, bool) {
	ts, ok := e.acquisitions[name]
	return ts, ok
}

// Acquisitions returns all registered acquisition series in
// registration order.
func (e *Experiment) Acquisitions() []*types.TimeSeries {
	return seriesList(e.acquisitions, e.acquisitionNames)
}

func addSeries(ts *types.TimeSeries, kind string, byName map[string]*types.TimeSeries, order *[]string) error {
	if ts == nil {
		return errors.Newf(errors.ErrCategoryDomain, errors.CodeDuplicateObject, "%s series is nil", kind)
	}
	if _, ok := byName[ts.Name]; ok {
		return errors.Newf(errors.ErrCategoryDomain, errors.CodeDuplicateObject,
			"%s series %q already registered", kind, ts.Name)
	}
	byName[ts.Name] = ts
	*order = append(*order, ts.Name)
	return nil
}

func seriesList(byName map[string]*types.TimeSeries, order []string) []*types.TimeSeries {
	out := make([]*types.TimeSeries, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// AddIntracellularRecording registers the recording's electrode,
// stimulus and response with the experiment if they are not yet known,
// then appends the recording. It returns the new row position.
func (e *Experiment) AddIntracellularRecording(rec Recording) (int, error) {
	if rec.Stimulus != nil {
		if _, ok := e.stimuli[rec.Stimulus.Name]; !ok {
			if err := e.AddStimulus(rec.Stimulus); err != nil {
				return 0, err
			}
		}
	}
	if rec.Response != nil {
		if _, ok := e.acquisitions[rec.Response.Name]; !ok {
			if err := e.AddAcquisition(rec.Response); err != nil {
				return 0, err
			}
		}
	}
	if rec.Electrode != nil {
		if _, ok := e.electrodes[rec.Electrode.Name]; !ok {
			if err := e.AddElectrode(rec.Electrode); err != nil {
				return 0, err
			}
		}
	}
	return e.Recordings().AddRecording(rec)
}

// AddSimultaneousRecording appends a group to the simultaneous
// recordings table.
func (e *Experiment) AddSimultaneousRecording(s SimultaneousRecording) (int, error) {
	return e.SimultaneousRecordings().AddSimultaneousRecording(s)
}

// AddSequentialRecording appends a group to the sequential recordings
// table.
func (e *Experiment) AddSequentialRecording(s SequentialRecording) (int, error) {
	return e.SequentialRecordings().AddSequentialRecording(s)
}

// AddRepetition appends a group to the repetitions table.
func (e *Experiment) AddRepetition(r Repetition) (int, error) {
	return e.Repetitions().AddRepetition(r)
}

// AddExperimentalCondition appends a group to the experimental
// conditions table.
func (e *Experiment) AddExperimentalCondition(c ExperimentalCondition) (int, error) {
	return e.ExperimentalConditions().AddExperimentalCondition(c)
}
