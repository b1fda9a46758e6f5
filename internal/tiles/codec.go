// Package tiles encodes vector-field tiles and fetches them from upstream
// stores for the field cache.
package tiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalsfoundry/drift-predictor/core"
)

// Document is the JSON wire form of a tile. U and V are time-major
// (time, lat, lon) flattened arrays; null marks an undefined sample.
type Document struct {
	Kind  string      `json:"kind,omitempty"`
	Lats  []float64   `json:"lats"`
	Lons  []float64   `json:"lons"`
	Times []time.Time `json:"times"`
	U     []*float64  `json:"u"`
	V     []*float64  `json:"v"`
}

// Encode serialises a field.
func Encode(kind string, f *core.VectorField) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("encode tile: nil field")
	}
	axes := f.Axes()
	nt, ny, nx := f.Dims()
	doc := Document{
		Kind:  kind,
		Lats:  axes.Lats,
		Lons:  axes.Lons,
		Times: axes.Times,
		U:     make([]*float64, 0, nt*ny*nx),
		V:     make([]*float64, 0, nt*ny*nx),
	}
	for k := 0; k < nt; k++ {
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				vec, ok := f.At(k, i, j).Vector()
				if !ok {
					doc.U = append(doc.U, nil)
					doc.V = append(doc.V, nil)
					continue
				}
				u, v := vec.U, vec.V
				doc.U = append(doc.U, &u)
				doc.V = append(doc.V, &v)
			}
		}
	}
	return json.Marshal(doc)
}

// Decode parses and validates a tile. A sample is undefined when either
// component is null.
func Decode(data []byte) (*core.VectorField, string, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("%w: decode tile: %v", core.ErrInvalidField, err)
	}
	n := len(doc.Lats) * len(doc.Lons) * len(doc.Times)
	if len(doc.U) != n || len(doc.V) != n {
		return nil, "", fmt.Errorf("%w: tile has %d/%d components, want %d", core.ErrInvalidField, len(doc.U), len(doc.V), n)
	}
	samples := make([]core.Sample, n)
	for idx := range samples {
		if doc.U[idx] == nil || doc.V[idx] == nil {
			samples[idx] = core.Undefined()
			continue
		}
		samples[idx] = core.Defined(*doc.U[idx], *doc.V[idx])
	}
	f, err := core.NewVectorField(core.Axes{Lats: doc.Lats, Lons: doc.Lons, Times: doc.Times}, samples)
	if err != nil {
		return nil, "", err
	}
	return f, doc.Kind, nil
}
