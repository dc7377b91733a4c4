// Package types provides core data types for icetab.
package types

import "github.com/google/uuid"

// ClampMode identifies the recording mode of a patch-clamp series.
type ClampMode int

const (
	ClampModeUnspecified ClampMode = iota
	ClampModeVoltage
	ClampModeCurrent
)

// String returns the canonical name of the clamp mode.
func (m ClampMode) String() string {
	switch m {
	case ClampModeVoltage:
		return "voltage_clamp"
	case ClampModeCurrent:
		return "current_clamp"
	default:
		return "unspecified"
	}
}

// ParseClampMode converts a canonical name back to a ClampMode.
// Unknown names map to ClampModeUnspecified.
func ParseClampMode(s string) ClampMode {
	switch s {
	case "voltage_clamp":
		return ClampModeVoltage
	case "current_clamp":
		return ClampModeCurrent
	default:
		return ClampModeUnspecified
	}
}

// TimeSeries is a recorded stimulus or response waveform.
// The UID gives the series a stable identity that survives a snapshot
// write/read round trip, so references can be compared without relying
// on pointer identity.
type TimeSeries struct {
	// UID is the stable identity of the series
	UID uuid.UUID `json:"uid"`

	// Name is the user-facing series name
	Name string `json:"name"`

	// Unit is the measurement unit of the samples (e.g. "volts")
	Unit string `json:"unit"`

	// ClampMode records how the series was acquired
	ClampMode ClampMode `json:"clamp_mode"`

	// Data holds the recorded samples
	Data []float64 `json:"data"`

	// Rate is the sampling rate in Hz
	Rate float64 `json:"rate"`
}

// NewTimeSeries creates a TimeSeries with a fresh UID.
func NewTimeSeries(name, unit string, mode ClampMode, data []float64, rate float64) *TimeSeries {
	return &TimeSeries{
		UID:       uuid.New(),
		Name:      name,
		Unit:      unit,
		ClampMode: mode,
		Data:      data,
		Rate:      rate,
	}
}

// NumSamples returns the number of recorded samples.
func (s *TimeSeries) NumSamples() int {
	return len(s.Data)
}

// Electrode describes the intracellular electrode a recording was made with.
type Electrode struct {
	// UID is the stable identity of the electrode
	UID uuid.UUID `json:"uid"`

	// Name is the user-facing electrode name
	Name string `json:"name"`

	// Description is free-form electrode metadata
	Description string `json:"description"`

	// Device names the amplifier/device the electrode is attached to
	Device string `json:"device"`
}

// NewElectrode creates an Electrode with a fresh UID.
func NewElectrode(name, description, device string) *Electrode {
	return &Electrode{
		UID:         uuid.New(),
		Name:        name,
		Description: description,
		Device:      device,
	}
}
