// Package period maps the period encodings used by statistical APIs onto a
// single reference date. Quarterly and annual periods resolve to the last
// calendar day they cover.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Format tells the normalizer how to read an ambiguous period code.
type Format string

const (
	FormatAuto    Format = "auto"
	FormatDate    Format = "date"
	FormatQuarter Format = "quarter"
	FormatMonth   Format = "month"
	FormatYear    Format = "year"
)

func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatAuto, FormatDate, FormatQuarter, FormatMonth, FormatYear:
		return format, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown period format: %s", value)
	}
}

// Normalize detects the shape of raw and returns its reference date.
// Six-digit codes are read as year+quarter; use FormatMonth for yyyymm codes.
func Normalize(raw string) (civil.Date, bool) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return civil.Date{}, false
	case strings.Contains(value, "/"), len(value) == 10 && strings.Count(value, "-") == 2:
		return parseDate(value)
	case len(value) == 4:
		return parseYear(value)
	default:
		return parseQuarter(value)
	}
}

func (f Format) Normalize(raw string) (civil.Date, bool) {
	value := strings.TrimSpace(raw)
	switch f {
	case FormatDate:
		return parseDate(value)
	case FormatQuarter:
		return parseQuarter(value)
	case FormatMonth:
		return parseMonth(value)
	case FormatYear:
		return parseYear(value)
	default:
		return Normalize(value)
	}
}

// QuarterEnd returns the last day of the given quarter.
func QuarterEnd(year, quarter int) (civil.Date, bool) {
	if quarter < 1 || quarter > 4 {
		return civil.Date{}, false
	}
	return MonthEnd(year, quarter*3)
}

func MonthEnd(year, month int) (civil.Date, bool) {
	if year < 1 || month < 1 || month > 12 {
		return civil.Date{}, false
	}
	return civil.DateOf(time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)), true
}

func YearEnd(year int) (civil.Date, bool) {
	if year < 1 {
		return civil.Date{}, false
	}
	return civil.Date{Year: year, Month: time.December, Day: 31}, true
}

func parseDate(value string) (civil.Date, bool) {
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return civil.DateOf(parsed), true
		}
	}
	return civil.Date{}, false
}

func parseYear(value string) (civil.Date, bool) {
	if len(value) != 4 || !isDigits(value) {
		return civil.Date{}, false
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return civil.Date{}, false
	}
	return YearEnd(year)
}

func parseQuarter(value string) (civil.Date, bool) {
	value = strings.ToUpper(value)
	var yearPart, quarterPart string
	switch {
	case strings.Contains(value, "-Q"):
		yearPart, quarterPart, _ = strings.Cut(value, "-Q")
	case strings.Contains(value, "Q"):
		yearPart, quarterPart, _ = strings.Cut(value, "Q")
	case (len(value) == 5 || len(value) == 6) && isDigits(value):
		yearPart, quarterPart = value[:4], value[4:]
	default:
		return civil.Date{}, false
	}
	if len(yearPart) != 4 || !isDigits(yearPart) || quarterPart == "" || len(quarterPart) > 2 || !isDigits(quarterPart) {
		return civil.Date{}, false
	}
	year, _ := strconv.Atoi(yearPart)
	quarter, _ := strconv.Atoi(quarterPart)
	return QuarterEnd(year, quarter)
}

func parseMonth(value string) (civil.Date, bool) {
	if len(value) == 6 && isDigits(value) {
		year, _ := strconv.Atoi(value[:4])
		month, _ := strconv.Atoi(value[4:])
		return MonthEnd(year, month)
	}

	yearPart, monthPart, ok := strings.Cut(value, "-")
	if !ok || len(yearPart) != 4 || !isDigits(yearPart) || len(monthPart) != 2 || !isDigits(monthPart) {
		return civil.Date{}, false
	}
	year, _ := strconv.Atoi(yearPart)
	month, _ := strconv.Atoi(monthPart)
	return MonthEnd(year, month)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
