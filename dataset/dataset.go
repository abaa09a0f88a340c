// Package dataset defines the tabular data model consumed by the pipeline:
// ordered records over a fixed numeric feature schema, plus the cleaning and
// feature-derivation stages that turn raw parsed rows into model-ready
// matrices.
//
// The package never reads files; it receives already-parsed records from an
// external collaborator and hands gonum matrices to the modeling stages.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// Field names for the raw columns the pipeline cares about beyond the
// numeric schema.
const (
	// TargetField is the stream count being predicted. It may arrive as
	// delimited text and is coerced during Derive.
	TargetField = "streams"

	// DeezerPlaylistsField and ShazamChartsField arrive as text that may
	// contain thousands separators.
	DeezerPlaylistsField = "in_deezer_playlists"
	ShazamChartsField    = "in_shazam_charts"

	// Release date parts used to derive DaysSinceReleaseField.
	ReleasedYearField  = "released_year"
	ReleasedMonthField = "released_month"
	ReleasedDayField   = "released_day"

	// DaysSinceReleaseField is computed by Derive; it is part of the
	// modeling schema but never arrives in raw input.
	DaysSinceReleaseField = "days_since_release"
)

// DefaultSchema is the ordered numeric feature schema used for matrix
// projection. Row values are laid out in exactly this column order.
func DefaultSchema() []string {
	return []string{
		"artist_count",
		ReleasedYearField,
		ReleasedMonthField,
		ReleasedDayField,
		"in_spotify_playlists",
		"in_spotify_charts",
		"in_apple_playlists",
		"in_apple_charts",
		DeezerPlaylistsField,
		"in_deezer_charts",
		ShazamChartsField,
		"bpm",
		"danceability_pct",
		"valence_pct",
		"energy_pct",
		"acousticness_pct",
		"instrumentalness_pct",
		"liveness_pct",
		"speechiness_pct",
		DaysSinceReleaseField,
	}
}

// Record is one catalog item. Features holds numeric fields by name; a
// missing key means a missing value until Clean fills it with the sentinel.
// Text holds fields that may arrive as delimited text and are coerced to
// numeric features during Derive. Identity is positional; records carry no
// natural key.
type Record struct {
	Features map[string]float64
	Text     map[string]string
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{
		Features: make(map[string]float64, len(r.Features)),
		Text:     make(map[string]string, len(r.Text)),
	}
	for k, v := range r.Features {
		out.Features[k] = v
	}
	for k, v := range r.Text {
		out.Text[k] = v
	}
	return out
}

// Dataset is an ordered sequence of records sharing one feature schema.
// Stages return new Datasets; rows removed by a stage are gone for the
// remainder of the pipeline, and surviving rows keep their relative order.
type Dataset struct {
	Schema  []string
	Records []Record
}

// New creates a Dataset over the default schema.
func New(records []Record) Dataset {
	return Dataset{Schema: DefaultSchema(), Records: records}
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Records)
}

// Matrix projects the dataset into a rows×features matrix following the
// schema column order. Every record must have a value for every schema
// field, which Clean and Derive together guarantee.
func (d Dataset) Matrix() (*mat.Dense, error) {
	if len(d.Records) == 0 {
		return nil, errors.NewModelError("Dataset.Matrix", "empty dataset", errors.ErrEmptyData)
	}

	X := mat.NewDense(len(d.Records), len(d.Schema), nil)
	for i, rec := range d.Records {
		for j, field := range d.Schema {
			X.Set(i, j, rec.Features[field])
		}
	}
	return X, nil
}

// TargetVec returns the target column as a vector, parallel to Matrix rows.
// It requires Derive to have coerced the target for every surviving row.
func (d Dataset) TargetVec() (*mat.VecDense, error) {
	if len(d.Records) == 0 {
		return nil, errors.NewModelError("Dataset.TargetVec", "empty dataset", errors.ErrEmptyData)
	}

	y := mat.NewVecDense(len(d.Records), nil)
	for i, rec := range d.Records {
		v, ok := rec.Features[TargetField]
		if !ok {
			return nil, errors.NewValueError("Dataset.TargetVec",
				"target not coerced; run Derive before projecting the target")
		}
		y.SetVec(i, v)
	}
	return y, nil
}

// Filter keeps the rows whose label is +1 and drops the rows labeled -1,
// preserving order. Labels follow the anomaly-detector convention
// (+1 inlier, -1 outlier) and must be parallel to the records.
func (d Dataset) Filter(labels []int) (Dataset, error) {
	if len(labels) != len(d.Records) {
		return Dataset{}, errors.NewDimensionError("Dataset.Filter", len(d.Records), len(labels), 0)
	}

	kept := make([]Record, 0, len(d.Records))
	for i, rec := range d.Records {
		if labels[i] == 1 {
			kept = append(kept, rec)
		}
	}
	return Dataset{Schema: d.Schema, Records: kept}, nil
}

// Select returns the subset of rows at the given indices, preserving the
// order of the index list.
func (d Dataset) Select(indices []int) Dataset {
	records := make([]Record, len(indices))
	for i, idx := range indices {
		records[i] = d.Records[idx]
	}
	return Dataset{Schema: d.Schema, Records: records}
}
