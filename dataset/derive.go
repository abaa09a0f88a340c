package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
	"github.com/YuminosukeSato/streamforecast/pkg/log"
)

// DeriveReport counts the row-level data-quality defects Derive resolved.
// Defects never abort the run; offending rows are dropped or sanitized and
// counted here.
type DeriveReport struct {
	// InvalidDates is the number of rows dropped for an unconstructible
	// release date (e.g. day out of range for the month).
	InvalidDates int

	// NonNumericTargets is the number of rows dropped because the target
	// could not be coerced to a number.
	NonNumericTargets int

	// SanitizedCounts is the number of delimited count values that could not
	// be parsed and were replaced by the missing sentinel.
	SanitizedCounts int
}

// Derive computes the derived features each record needs before modeling:
//
//   - days_since_release, the number of whole days between the release date
//     (built from the year/month/day parts) and now;
//   - the deezer-playlist and shazam-chart counts, coerced from text that
//     may contain thousands separators;
//   - the numeric target, coerced from text.
//
// Rows with an invalid calendar date or a non-numeric target are dropped,
// not failed: they are row-level data defects, and target integrity is a
// precondition for every downstream model. now is injected so tests can pin
// the reference time.
func Derive(d Dataset, now time.Time) (Dataset, DeriveReport) {
	logger := log.GetLoggerWithName("dataset")

	var report DeriveReport
	kept := make([]Record, 0, len(d.Records))

	for _, rec := range d.Records {
		out := rec.Clone()

		days, ok := daysSinceRelease(out, now)
		if !ok {
			report.InvalidDates++
			continue
		}
		out.Features[DaysSinceReleaseField] = days

		for _, field := range []string{DeezerPlaylistsField, ShazamChartsField} {
			if raw, has := out.Text[field]; has {
				v, parsed := parseDelimitedCount(raw)
				if !parsed {
					v = MissingSentinel
					report.SanitizedCounts++
				}
				out.Features[field] = v
			}
		}

		if raw, has := out.Text[TargetField]; has {
			v, parsed := parseDelimitedCount(raw)
			if !parsed {
				report.NonNumericTargets++
				continue
			}
			out.Features[TargetField] = v
		} else if _, has := out.Features[TargetField]; !has {
			report.NonNumericTargets++
			continue
		}

		kept = append(kept, out)
	}

	if report.InvalidDates > 0 {
		errors.Warn(errors.NewDataQualityWarning("release date", report.InvalidDates, "dropped"))
	}
	if report.NonNumericTargets > 0 {
		errors.Warn(errors.NewDataQualityWarning(TargetField, report.NonNumericTargets, "dropped"))
	}
	if report.SanitizedCounts > 0 {
		errors.Warn(errors.NewDataQualityWarning("delimited counts", report.SanitizedCounts, "sanitized"))
	}

	logger.Debug("feature derivation complete",
		log.SamplesKey, len(kept),
		log.DroppedRowsKey, report.InvalidDates+report.NonNumericTargets,
	)

	return Dataset{Schema: d.Schema, Records: kept}, report
}

// daysSinceRelease builds the release date from the year/month/day parts and
// returns the number of whole days to now. ok is false when the parts do not
// form a real calendar date.
func daysSinceRelease(rec Record, now time.Time) (float64, bool) {
	year := int(rec.Features[ReleasedYearField])
	month := int(rec.Features[ReleasedMonthField])
	day := int(rec.Features[ReleasedDayField])

	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range parts (Feb 30 becomes Mar 1/2);
	// a round-trip mismatch means the original parts were not a real date.
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return 0, false
	}

	days := int(now.UTC().Sub(date).Hours() / 24)
	return float64(days), true
}

// parseDelimitedCount parses a count that may carry thousands separators,
// e.g. "1,021" -> 1021.
func parseDelimitedCount(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
