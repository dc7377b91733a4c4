package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/icetab/icetab/pkg/types"
)

// Tuple is a frozen, fixed-length sequence of values. Variable-length
// cell values are converted to Tuples before they participate in a
// composite key, because lookup keys must be immutable and comparable
// by content. This is required for correctness, not an optimization:
// a ragged cell placed raw into an index tuple could never be matched
// again.
type Tuple []interface{}

// Fingerprint is a 128-bit content hash of a normalized value, used as
// the map key for index lookups.
type Fingerprint [2]uint64

// NormalizeValue freezes v for use inside a composite key. Slices of
// any supported element type become Tuples (recursively); scalars and
// reference values pass through unchanged.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = NormalizeValue(e)
		}
		return t
	case Tuple:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = NormalizeValue(e)
		}
		return t
	case []int:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = e
		}
		return t
	case []int64:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = e
		}
		return t
	case []float64:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = e
		}
		return t
	case []string:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = e
		}
		return t
	default:
		return v
	}
}

// NormalizeKey applies NormalizeValue to every element of a composite key.
func NormalizeKey(key []interface{}) []interface{} {
	out := make([]interface{}, len(key))
	for i, v := range key {
		out[i] = NormalizeValue(v)
	}
	return out
}

// FingerprintOf hashes the normalized form of v. Two values fingerprint
// equal iff their canonical encodings are identical.
func FingerprintOf(v interface{}) Fingerprint {
	h := murmur3.New128()
	encodeValue(h, NormalizeValue(v))
	var fp Fingerprint
	fp[0], fp[1] = h.Sum128()
	return fp
}

// Type tags for the canonical encoding. Distinct kinds must never
// encode to the same bytes.
const (
	tagNil byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagTuple
	tagSpan
	tagSeries
	tagElectrode
	tagOther
)

func encodeValue(h murmur3.Hash128, v interface{}) {
	var scratch [8]byte
	writeInt := func(tag byte, n int64) {
		h.Write([]byte{tag})
		binary.LittleEndian.PutUint64(scratch[:], uint64(n))
		h.Write(scratch[:])
	}
	switch x := v.(type) {
	case nil:
		h.Write([]byte{tagNil})
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		h.Write([]byte{tagBool, b})
	case int:
		writeInt(tagInt, int64(x))
	case int32:
		writeInt(tagInt, int64(x))
	case int64:
		writeInt(tagInt, x)
	case float64:
		writeInt(tagFloat, int64(math.Float64bits(x)))
	case float32:
		writeInt(tagFloat, int64(math.Float64bits(float64(x))))
	case string:
		writeInt(tagString, int64(len(x)))
		h.Write([]byte(x))
	case Tuple:
		writeInt(tagTuple, int64(len(x)))
		for _, e := range x {
			encodeValue(h, e)
		}
	case types.SeriesSpan:
		writeInt(tagSpan, int64(x.Start))
		writeInt(tagSpan, int64(x.Count))
		if x.Series != nil {
			h.Write([]byte{tagSeries})
			h.Write(x.Series.UID[:])
		} else {
			h.Write([]byte{tagNil})
		}
	case *types.TimeSeries:
		h.Write([]byte{tagSeries})
		if x != nil {
			h.Write(x.UID[:])
		}
	case *types.Electrode:
		h.Write([]byte{tagElectrode})
		if x != nil {
			h.Write(x.UID[:])
		}
	default:
		// Fall back to the printed form for unanticipated value types.
		s := fmt.Sprintf("%T:%v", v, v)
		writeInt(tagOther, int64(len(s)))
		h.Write([]byte(s))
	}
}
