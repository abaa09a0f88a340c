package dataset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// MissingSentinel replaces missing feature values during cleaning. Zero is
// the published behavior even though it conflates "missing" with a valid
// domain zero.
const MissingSentinel = 0.0

// CleanReport counts what Clean changed.
type CleanReport struct {
	// Duplicates is the number of exact-duplicate rows removed.
	Duplicates int

	// Filled is the number of missing values replaced by the sentinel.
	Filled int
}

// Clean removes exact-duplicate rows and fills missing schema fields with
// the sentinel. A field that arrives in Text is not missing: Derive coerces
// it one stage later. Two rows are duplicates when every feature and text
// field is identical. The first occurrence wins; order of survivors is
// unchanged.
//
// Clean is deterministic and idempotent: a second pass over its own output
// removes nothing and fills nothing. It never fails.
func Clean(d Dataset) (Dataset, CleanReport) {
	logger := log.GetLoggerWithName("dataset")

	var report CleanReport
	seen := make(map[string]struct{}, len(d.Records))
	kept := make([]Record, 0, len(d.Records))

	for _, rec := range d.Records {
		key := fingerprint(rec)
		if _, dup := seen[key]; dup {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		out := rec.Clone()
		for _, field := range d.Schema {
			if field == DaysSinceReleaseField {
				// Derived later; absence here is not a missing value.
				continue
			}
			if _, ok := out.Features[field]; ok {
				continue
			}
			if _, ok := out.Text[field]; ok {
				// Arrives as text; Derive coerces it to a feature.
				continue
			}
			out.Features[field] = MissingSentinel
			report.Filled++
		}
		kept = append(kept, out)
	}

	logger.Debug("cleaning complete",
		log.SamplesKey, len(kept),
		log.DroppedRowsKey, report.Duplicates,
		"filled_values", report.Filled,
	)

	return Dataset{Schema: d.Schema, Records: kept}, report
}

// fingerprint serializes a record deterministically so exact duplicates hash
// to the same key regardless of map iteration order.
func fingerprint(rec Record) string {
	var sb strings.Builder

	featKeys := make([]string, 0, len(rec.Features))
	for k := range rec.Features {
		featKeys = append(featKeys, k)
	}
	sort.Strings(featKeys)
	for _, k := range featKeys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(rec.Features[k], 'g', -1, 64))
		sb.WriteByte(';')
	}

	textKeys := make([]string, 0, len(rec.Text))
	for k := range rec.Text {
		textKeys = append(textKeys, k)
	}
	sort.Strings(textKeys)
	for _, k := range textKeys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(rec.Text[k])
		sb.WriteByte(';')
	}

	return sb.String()
}
