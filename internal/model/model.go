package model

import (
	"cloud.google.com/go/civil"
)

// RawRecord is one uninterpreted row produced by a source adapter.
// Missing or null values are carried as an empty Value.
type RawRecord struct {
	Period     string
	Value      string
	Attributes map[string]string
}

// Observation is a validated point of an indicator series.
type Observation struct {
	ReferenceDate civil.Date `json:"reference_date"`
	Value         float64    `json:"value"`
}

// Series is the ordered observation list of one indicator. Observations are
// ascending by ReferenceDate and no two share a date.
type Series struct {
	Name         string
	Observations []Observation
}

func (s Series) Len() int {
	return len(s.Observations)
}

// Span returns the first and last reference dates, or false for an empty series.
func (s Series) Span() (civil.Date, civil.Date, bool) {
	if len(s.Observations) == 0 {
		return civil.Date{}, civil.Date{}, false
	}
	return s.Observations[0].ReferenceDate, s.Observations[len(s.Observations)-1].ReferenceDate, true
}
