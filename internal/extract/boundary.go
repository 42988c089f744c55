package extract

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatBoundary = "boundary-geojson"

var (
	boundaryNameKeys     = []string{"ac_name", "AC_NAME", "name", "NAME", "constituency", "CONSTITUENCY"}
	boundaryNumberKeys   = []string{"ac_no", "AC_NO", "number", "NUMBER", "constituency_no", "CONSTITUENCY_NO"}
	boundaryDistrictKeys = []string{"district", "DIST_NAME", "dist_name"}
	boundaryNameTaKeys   = []string{"ac_name_ta", "name_ta", "NAME_TA"}
)

// BoundaryParser reads a GeoJSON FeatureCollection of constituency shapes
type BoundaryParser struct{}

func (BoundaryParser) Format() string { return formatBoundary }

func (BoundaryParser) Parse(in Input) iter.Seq2[model.Record, error] {
	fc, err := geojson.UnmarshalFeatureCollection(in.Data)
	if err != nil {
		return fatal(formatBoundary, errors.ParseDocument, "not a GeoJSON FeatureCollection", err)
	}

	maxNumber := int64(in.MaxConstituencyNumber)
	return func(yield func(model.Record, error) bool) {
		for i, f := range fc.Features {
			rec, err := boundaryFeature(in, f, i+1, maxNumber)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func boundaryFeature(in Input, f *geojson.Feature, idx int, maxNumber int64) (model.Record, error) {
	rec := &model.ConstituencyRecord{
		RecordMeta: model.RecordMeta{SourceID: in.SourceID, Row: idx},
		Properties: map[string]any(f.Properties),
	}

	if raw, ok := firstProperty(f.Properties, boundaryNumberKeys); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		switch {
		case err != nil:
			rec.Warn("number", raw, "not a number")
		case n < 1 || (maxNumber > 0 && n > maxNumber):
			rec.Warn("number", raw, fmt.Sprintf("outside 1..%d", maxNumber))
		default:
			rec.Number = model.Some(n)
		}
	}

	if raw, ok := firstProperty(f.Properties, boundaryNameKeys); ok && !normalize.IsBlank(raw) {
		name, reservation := normalize.Constituency(raw)
		rec.Name = name
		rec.NameNormalized = normalize.Name(name)
		rec.Reservation = model.Some(reservation)
	}
	if raw, ok := firstProperty(f.Properties, boundaryNameTaKeys); ok {
		rec.NameTa = normalize.Text(raw)
	}
	if raw, ok := firstProperty(f.Properties, boundaryDistrictKeys); ok {
		rec.District = normalize.Text(raw)
	}

	if rec.Name == "" && !rec.Number.IsKnown() {
		return nil, errors.NewRowError(formatBoundary, idx, "feature has no usable name or number", nil)
	}

	if f.Geometry == nil {
		rec.Warn("geometry", "", "feature has no geometry")
		return rec, nil
	}
	geom, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
	if err != nil {
		return nil, errors.NewRowError(formatBoundary, idx, "geometry cannot be encoded", err)
	}
	rec.Geometry = geom
	b := f.Geometry.Bound()
	rec.BBox = [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	return rec, nil
}

// firstProperty returns the first key that holds a scalar, as text.
func firstProperty(props geojson.Properties, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s, true
			}
		case float64:
			if t == math.Trunc(t) {
				return strconv.FormatInt(int64(t), 10), true
			}
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case int:
			return strconv.Itoa(t), true
		case int64:
			return strconv.FormatInt(t, 10), true
		}
	}
	return "", false
}
