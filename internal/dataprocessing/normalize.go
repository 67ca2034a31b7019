package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// suppressionMarkers are placeholder values the agency prints instead of a
// real count. Matching is case-sensitive.
var suppressionMarkers = map[string]struct{}{
	"*":   {},
	".":   {},
	"-":   {},
	"-1":  {},
	"<5":  {},
	"<10": {},
	"N/A": {},
	"NA":  {},
	"":    {},
	"n/a": {},
}

var (
	trailingZeroFraction = regexp.MustCompile(`\.0+$`)
	rangeYearPattern     = regexp.MustCompile(`(\d{4})\s*[-–/]\s*(\d{4}|\d{2})`)
	singleYearPattern    = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
)

// IsSuppressed reports whether a trimmed cell value is a suppression marker.
func IsSuppressed(text string) bool {
	_, ok := suppressionMarkers[strings.TrimSpace(text)]
	return ok
}

// NormalizeCount converts a raw cell into a non-negative count.
// Suppression markers, negative numbers and anything unparseable become
// nil; it never fails.
func NormalizeCount(text string) *int64 {
	s := strings.TrimSpace(text)
	if IsSuppressed(s) {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Round(f)
	if f < 0 || f > math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// CleanLabel trims a label and collapses internal whitespace runs to one
// space. Nil input, or input that is blank after trimming, yields nil.
func CleanLabel(text *string) *string {
	if text == nil {
		return nil
	}
	return cleanText(*text)
}

func cleanText(text string) *string {
	s := strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeDistrictID strips everything but digits and left-pads the
// result with zeros to three characters. A zero fraction left by Excel
// float cells is dropped first, so "1.0" is "001", not "010". An input
// with no digits yields nil, never "000". Longer ids are kept whole.
func NormalizeDistrictID(text string) *string {
	s := trailingZeroFraction.ReplaceAllString(strings.TrimSpace(text), "")
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return nil
	}
	if len(digits) < 3 {
		digits = strings.Repeat("0", 3-len(digits)) + digits
	}
	return &digits
}

// YearLabel formats an end year as the school-year label the agency uses,
// e.g. 2024 -> "2023-24".
func YearLabel(endYear int) string {
	return fmt.Sprintf("%d-%02d", endYear-1, ((endYear%100)+100)%100)
}

// ParseYearLabel recovers the end year from a school-year label. It
// accepts "2023-24", "2023-2024", "SY 2023-24" and a bare "2024" (taken as
// the end year).
func ParseYearLabel(label string) (int, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return 0, false
	}

	if m := rangeYearPattern.FindStringSubmatch(s); m != nil {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		end := start + 1
		if len(m[2]) == 4 {
			got, err := strconv.Atoi(m[2])
			if err != nil || got != end {
				return 0, false
			}
			return end, true
		}
		suffix, err := strconv.Atoi(m[2])
		if err != nil || suffix != end%100 {
			return 0, false
		}
		return end, true
	}

	if trailingZeroFraction.MatchString(s) {
		s = trailingZeroFraction.ReplaceAllString(s, "")
	}
	if m := singleYearPattern.FindStringSubmatch(s); m != nil {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return year, true
	}
	return 0, false
}

// foldHeader normalizes a column header for pattern matching.
func foldHeader(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(norm.NFKC.String(header)), " "))
}
