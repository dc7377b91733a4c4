package types

import "fmt"

// SpanNotRecorded is the sentinel start/count value stored when only one
// half of a stimulus/response pair was recorded.
const SpanNotRecorded = -1

// SeriesSpan references a contiguous sample range of a TimeSeries.
// A span with Start == Count == SpanNotRecorded marks a series slot that
// was not recorded; its Series still points at the recorded counterpart
// so the reference itself stays resolvable.
type SeriesSpan struct {
	// Start is the index of the first referenced sample
	Start int `json:"start"`

	// Count is the number of referenced samples
	Count int `json:"count"`

	// Series is the referenced waveform
	Series *TimeSeries `json:"-"`
}

// Recorded reports whether the span references actual recorded samples.
func (sp SeriesSpan) Recorded() bool {
	return sp.Start != SpanNotRecorded || sp.Count != SpanNotRecorded
}

// String renders the span as (start, count, series-name).
func (sp SeriesSpan) String() string {
	name := "<nil>"
	if sp.Series != nil {
		name = sp.Series.Name
	}
	return fmt.Sprintf("(%d, %d, %s)", sp.Start, sp.Count, name)
}

// OpaqueID returns a stable string identity for reference values held in
// table cells. Series and electrodes resolve to their UID; spans resolve
// to start/count plus the series UID. Other values return empty.
// Used when comparing an in-memory table against one read back from a
// snapshot, where pointer identity is meaningless.
func OpaqueID(v interface{}) string {
	switch x := v.(type) {
	case *TimeSeries:
		if x == nil {
			return ""
		}
		return x.UID.String()
	case *Electrode:
		if x == nil {
			return ""
		}
		return x.UID.String()
	case SeriesSpan:
		series := ""
		if x.Series != nil {
			series = x.Series.UID.String()
		}
		return fmt.Sprintf("(%d, %d, %s)", x.Start, x.Count, series)
	default:
		return ""
	}
}
