package schema

import (
	"github.com/icetab/icetab/internal/errors"
)

// Table type names used by the built-in hierarchy.
const (
	IntracellularRecordingsName = "intracellular_recordings"
	SimultaneousRecordingsName  = "simultaneous_recordings"
	SequentialRecordingsName    = "sequential_recordings"
	RepetitionsName             = "repetitions"
	ExperimentalConditionsName  = "experimental_conditions"
)

// Registry maps table type names to their specs, preserving
// registration order.
type Registry struct {
	order []string
	specs map[string]TableSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]TableSpec)}
}

// Register adds a table spec. Registering the same name twice fails.
func (r *Registry) Register(spec TableSpec) error {
	if _, ok := r.specs[spec.Name]; ok {
		return errors.Newf(errors.ErrCategorySchema, errors.CodeDuplicateColumn,
			"table spec %q already registered", spec.Name)
	}
	r.order = append(r.order, spec.Name)
	r.specs[spec.Name] = spec
	return nil
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (TableSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns the registered table names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// BuiltinRegistry constructs a registry holding the five level-table
// specs of the intracellular ephys hierarchy.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, spec := range builtinSpecs() {
		// Names are distinct constants, registration cannot fail.
		_ = r.Register(spec)
	}
	return r
}

func builtinSpecs() []TableSpec {
	return []TableSpec{
		{
			Name: IntracellularRecordingsName,
			Description: "A table to group together a stimulus and response from a single " +
				"electrode and a single simultaneous recording. Each row represents a " +
				"single recording, typically a stimulus and a corresponding response.",
			Columns: []ColumnSpec{
				{Name: "electrode", Description: "Reference to the intracellular electrode used", Required: true},
				{Name: "stimulus", Description: "Sample span of the recorded stimulus series", Required: true},
				{Name: "response", Description: "Sample span of the recorded response series", Required: true},
			},
		},
		{
			Name: SimultaneousRecordingsName,
			Description: "A table for grouping recordings from the intracellular_recordings " +
				"table that were recorded simultaneously from different electrodes.",
			Columns: []ColumnSpec{
				{Name: "recordings", Description: "References to one or more rows in the intracellular_recordings table",
					Required: true, Indexed: true, Reference: IntracellularRecordingsName},
			},
		},
		{
			Name: SequentialRecordingsName,
			Description: "A table for grouping simultaneous recordings that were applied in " +
				"sequence, typically a sequence of stimuli of the same type with varying parameters.",
			Columns: []ColumnSpec{
				{Name: "simultaneous_recordings", Description: "References to one or more rows in the simultaneous_recordings table",
					Required: true, Indexed: true, Reference: SimultaneousRecordingsName},
			},
		},
		{
			Name: RepetitionsName,
			Description: "A table for grouping sequential recordings that are repetitions of " +
				"the same stimulus sequence.",
			Columns: []ColumnSpec{
				{Name: "sequential_recordings", Description: "References to one or more rows in the sequential_recordings table",
					Required: true, Indexed: true, Reference: SequentialRecordingsName},
			},
		},
		{
			Name: ExperimentalConditionsName,
			Description: "A table for grouping repetitions recorded under the same " +
				"experimental condition.",
			Columns: []ColumnSpec{
				{Name: "repetitions", Description: "References to one or more rows in the repetitions table",
					Required: true, Indexed: true, Reference: RepetitionsName},
			},
		},
	}
}
