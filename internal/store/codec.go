package store

import (
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/pkg/types"
)

// Cell envelope types.
const (
	cellNull      = "null"
	cellBool      = "bool"
	cellInt       = "int"
	cellFloat     = "float"
	cellString    = "string"
	cellList      = "list"
	cellGroup     = "group"
	cellSpan      = "span"
	cellSeries    = "series_ref"
	cellElectrode = "electrode_ref"
)

// cellEnvelope is the JSON wire form of one table cell. Every cell is
// marshaled, snappy-compressed and stored as a BLOB.
type cellEnvelope struct {
	Type      string         `json:"type"`
	Bool      *bool          `json:"bool,omitempty"`
	Int       *int64         `json:"int,omitempty"`
	Float     *float64       `json:"float,omitempty"`
	Str       *string        `json:"str,omitempty"`
	List      []cellEnvelope `json:"list,omitempty"`
	Positions []int          `json:"positions,omitempty"`
	Start     *int           `json:"start,omitempty"`
	Count     *int           `json:"count,omitempty"`
	UID       string         `json:"uid,omitempty"`
}

// objectSink collects the series and electrodes referenced by cells so
// they can be written to the objects table once each.
type objectSink struct {
	series     map[uuid.UUID]*types.TimeSeries
	electrodes map[uuid.UUID]*types.Electrode
}

func newObjectSink() *objectSink {
	return &objectSink{
		series:     make(map[uuid.UUID]*types.TimeSeries),
		electrodes: make(map[uuid.UUID]*types.Electrode),
	}
}

func (s *objectSink) addSeries(ts *types.TimeSeries) {
	if ts != nil {
		s.series[ts.UID] = ts
	}
}

func (s *objectSink) addElectrode(el *types.Electrode) {
	if el != nil {
		s.electrodes[el.UID] = el
	}
}

// encodeCell converts a cell value to its envelope, recording any
// referenced objects in the sink.
func encodeCell(v interface{}, sink *objectSink) (cellEnvelope, error) {
	switch c := v.(type) {
	case nil:
		return cellEnvelope{Type: cellNull}, nil
	case bool:
		return cellEnvelope{Type: cellBool, Bool: &c}, nil
	case int:
		n := int64(c)
		return cellEnvelope{Type: cellInt, Int: &n}, nil
	case int64:
		return cellEnvelope{Type: cellInt, Int: &c}, nil
	case float64:
		return cellEnvelope{Type: cellFloat, Float: &c}, nil
	case string:
		return cellEnvelope{Type: cellString, Str: &c}, nil
	case []int:
		if c == nil {
			c = []int{}
		}
		return cellEnvelope{Type: cellGroup, Positions: c}, nil
	case types.SeriesSpan:
		sink.addSeries(c.Series)
		start, count := c.Start, c.Count
		env := cellEnvelope{Type: cellSpan, Start: &start, Count: &count}
		if c.Series != nil {
			env.UID = c.Series.UID.String()
		}
		return env, nil
	case *types.TimeSeries:
		if c == nil {
			return cellEnvelope{Type: cellNull}, nil
		}
		sink.addSeries(c)
		return cellEnvelope{Type: cellSeries, UID: c.UID.String()}, nil
	case *types.Electrode:
		if c == nil {
			return cellEnvelope{Type: cellNull}, nil
		}
		sink.addElectrode(c)
		return cellEnvelope{Type: cellElectrode, UID: c.UID.String()}, nil
	case []interface{}:
		return encodeList(c, sink)
	case []string:
		vs := make([]interface{}, len(c))
		for i, e := range c {
			vs[i] = e
		}
		return encodeList(vs, sink)
	case []float64:
		vs := make([]interface{}, len(c))
		for i, e := range c {
			vs[i] = e
		}
		return encodeList(vs, sink)
	default:
		return cellEnvelope{}, errors.Newf(errors.ErrCategoryStore, errors.CodeWriteFailed,
			"cell value of type %T cannot be stored", v)
	}
}

func encodeList(vs []interface{}, sink *objectSink) (cellEnvelope, error) {
	list := make([]cellEnvelope, 0, len(vs))
	for _, e := range vs {
		env, err := encodeCell(e, sink)
		if err != nil {
			return cellEnvelope{}, err
		}
		list = append(list, env)
	}
	return cellEnvelope{Type: cellList, List: list}, nil
}

// objectPool resolves object references while decoding.
type objectPool struct {
	series     map[string]*types.TimeSeries
	electrodes map[string]*types.Electrode
}

func newObjectPool() *objectPool {
	return &objectPool{
		series:     make(map[string]*types.TimeSeries),
		electrodes: make(map[string]*types.Electrode),
	}
}

func (p *objectPool) lookupSeries(uid string) (*types.TimeSeries, error) {
	ts, ok := p.series[uid]
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
			"cell references unknown series %s", uid)
	}
	return ts, nil
}

func (p *objectPool) lookupElectrode(uid string) (*types.Electrode, error) {
	el, ok := p.electrodes[uid]
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
			"cell references unknown electrode %s", uid)
	}
	return el, nil
}

// decodeCell converts an envelope back to its in-memory cell value.
func decodeCell(env cellEnvelope, pool *objectPool) (interface{}, error) {
	switch env.Type {
	case cellNull:
		return nil, nil
	case cellBool:
		return *env.Bool, nil
	case cellInt:
		return int(*env.Int), nil
	case cellFloat:
		return *env.Float, nil
	case cellString:
		return *env.Str, nil
	case cellGroup:
		if env.Positions == nil {
			return []int{}, nil
		}
		return env.Positions, nil
	case cellSpan:
		var series *types.TimeSeries
		if env.UID != "" {
			var err error
			if series, err = pool.lookupSeries(env.UID); err != nil {
				return nil, err
			}
		}
		return types.SeriesSpan{Start: *env.Start, Count: *env.Count, Series: series}, nil
	case cellSeries:
		return pool.lookupSeries(env.UID)
	case cellElectrode:
		return pool.lookupElectrode(env.UID)
	case cellList:
		out := make([]interface{}, 0, len(env.List))
		for _, e := range env.List {
			v, err := decodeCell(e, pool)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
			"unknown cell envelope type %q", env.Type)
	}
}

// marshalCell produces the compressed BLOB stored in the cells table.
func marshalCell(v interface{}, sink *objectSink) ([]byte, error) {
	env, err := encodeCell(v, sink)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeWriteFailed, "marshal cell", err)
	}
	return snappy.Encode(nil, raw), nil
}

func unmarshalCell(blob []byte, pool *objectPool) (interface{}, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "decompress cell", err)
	}
	var env cellEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "unmarshal cell", err)
	}
	return decodeCell(env, pool)
}

// seriesPayload is the JSON wire form of a TimeSeries in the objects table.
type seriesPayload struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	ClampMode string    `json:"clamp_mode"`
	Data      []float64 `json:"data"`
	Rate      float64   `json:"rate"`
}

// electrodePayload is the JSON wire form of an Electrode.
type electrodePayload struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Device      string `json:"device"`
}

func marshalSeries(ts *types.TimeSeries) ([]byte, error) {
	raw, err := json.Marshal(seriesPayload{
		UID:       ts.UID.String(),
		Name:      ts.Name,
		Unit:      ts.Unit,
		ClampMode: ts.ClampMode.String(),
		Data:      ts.Data,
		Rate:      ts.Rate,
	})
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeWriteFailed, "marshal series", err)
	}
	return snappy.Encode(nil, raw), nil
}

func unmarshalSeries(blob []byte) (*types.TimeSeries, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "decompress series", err)
	}
	var p seriesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "unmarshal series", err)
	}
	uid, err := uuid.Parse(p.UID)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "parse series uid", err)
	}
	return &types.TimeSeries{
		UID:       uid,
		Name:      p.Name,
		Unit:      p.Unit,
		ClampMode: types.ParseClampMode(p.ClampMode),
		Data:      p.Data,
		Rate:      p.Rate,
	}, nil
}

func marshalElectrode(el *types.Electrode) ([]byte, error) {
	raw, err := json.Marshal(electrodePayload{
		UID:         el.UID.String(),
		Name:        el.Name,
		Description: el.Description,
		Device:      el.Device,
	})
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeWriteFailed, "marshal electrode", err)
	}
	return snappy.Encode(nil, raw), nil
}

func unmarshalElectrode(blob []byte) (*types.Electrode, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "decompress electrode", err)
	}
	var p electrodePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "unmarshal electrode", err)
	}
	uid, err := uuid.Parse(p.UID)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "parse electrode uid", err)
	}
	return &types.Electrode{UID: uid, Name: p.Name, Description: p.Description, Device: p.Device}, nil
}
