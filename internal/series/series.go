// Package series turns raw adapter records into a clean indicator series:
// unparseable periods and values are dropped, the remainder is ordered by
// reference date and collapsed to one observation per date.
package series

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"macrocollector/internal/model"
	"macrocollector/internal/period"
)

// Stats counts what Clean did with its input. It is informational only.
type Stats struct {
	Input         int
	InvalidPeriod int
	InvalidValue  int
	Duplicates    int
	Output        int
}

func (s Stats) Skipped() int {
	return s.InvalidPeriod + s.InvalidValue
}

var unavailable = map[string]struct{}{
	"...":  {},
	"..":   {},
	".":    {},
	"-":    {},
	"x":    {},
	"null": {},
	"none": {},
	"nan":  {},
	"n/a":  {},
}

// ParseValue coerces a raw value to a finite float. Statistical agencies mark
// missing data with placeholder tokens; those are rejected like empty input.
func ParseValue(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}
	if _, ok := unavailable[strings.ToLower(value)]; ok {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// Clean validates, orders and deduplicates records. When several records
// share a reference date the one appearing last in records wins.
func Clean(name string, records []model.RawRecord, format period.Format) (model.Series, Stats) {
	stats := Stats{Input: len(records)}
	observations := make([]model.Observation, 0, len(records))

	for _, record := range records {
		referenceDate, ok := format.Normalize(record.Period)
		if !ok {
			stats.InvalidPeriod++
			continue
		}
		value, ok := ParseValue(record.Value)
		if !ok {
			stats.InvalidValue++
			continue
		}
		observations = append(observations, model.Observation{ReferenceDate: referenceDate, Value: value})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ReferenceDate.Before(observations[j].ReferenceDate)
	})

	deduped := observations[:0]
	for _, observation := range observations {
		last := len(deduped) - 1
		if last >= 0 && deduped[last].ReferenceDate == observation.ReferenceDate {
			deduped[last] = observation
			stats.Duplicates++
			continue
		}
		deduped = append(deduped, observation)
	}

	stats.Output = len(deduped)
	return model.Series{Name: name, Observations: deduped}, stats
}

// Records converts a series back into raw records, so a stored or file-loaded
// series can be validated again with Clean.
func Records(s model.Series) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(s.Observations))
	for _, observation := range s.Observations {
		records = append(records, model.RawRecord{
			Period: observation.ReferenceDate.String(),
			Value:  strconv.FormatFloat(observation.Value, 'g', -1, 64),
		})
	}
	return records
}

// Window keeps the observations dated within [start, end]. A zero bound is
// open.
func Window(s model.Series, start, end civil.Date) model.Series {
	if start.IsZero() && end.IsZero() {
		return s
	}
	kept := make([]model.Observation, 0, len(s.Observations))
	for _, observation := range s.Observations {
		if !start.IsZero() && observation.ReferenceDate.Before(start) {
			continue
		}
		if !end.IsZero() && observation.ReferenceDate.After(end) {
			continue
		}
		kept = append(kept, observation)
	}
	return model.Series{Name: s.Name, Observations: kept}
}
