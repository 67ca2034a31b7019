package dataprocessing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"idschooldata/pkg/contracts/domain"
)

// ErrUnrecognizedSchema is returned when a raw table lacks the entity or
// year structure its reporting level needs. Callers treat it as a warning
// and continue with an empty level.
var ErrUnrecognizedSchema = errors.New("unrecognized schema")

var statewideTotalsLabel = regexp.MustCompile(
	`^(state of idaho(\s*[-:]?\s*totals?)?|state\s*totals?|statewide(\s*totals?)?|idaho\s*totals?|(grand\s*)?totals?)$`,
)

var defaultPatterns = DefaultPatterns()

// RecordBuilder turns raw tables into wide enrollment records.
type RecordBuilder struct {
	patterns PatternTable
}

// NewRecordBuilder creates a builder. A nil table selects DefaultPatterns.
func NewRecordBuilder(patterns PatternTable) *RecordBuilder {
	if patterns == nil {
		patterns = defaultPatterns
	}
	return &RecordBuilder{patterns: patterns}
}

// BuildLevelRecords builds District or Campus records with the default
// pattern table.
func BuildLevelRecords(table domain.RawTable, endYear int, level domain.ReportingLevel) ([]domain.EnrollmentRecord, error) {
	return NewRecordBuilder(nil).BuildLevelRecords(table, endYear, level)
}

// BuildLevelRecords builds one record per usable row of table for endYear.
// An empty table yields no records and no error.
func (b *RecordBuilder) BuildLevelRecords(table domain.RawTable, endYear int, level domain.ReportingLevel) ([]domain.EnrollmentRecord, error) {
	records, _, err := b.buildLevel(table, endYear, level)
	return records, err
}

// buildLevel also returns the total printed on the source's own statewide
// totals line, when the table has one.
func (b *RecordBuilder) buildLevel(table domain.RawTable, endYear int, level domain.ReportingLevel) ([]domain.EnrollmentRecord, *int64, error) {
	if table.Empty() {
		return nil, nil, nil
	}
	if level != domain.LevelDistrict && level != domain.LevelCampus {
		return nil, nil, fmt.Errorf("cannot build %s records from a raw table", level)
	}

	mapping := ReconcileColumns(table.Headers, b.patterns)
	if err := checkEntityColumns(mapping, level); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedSchema, table.Source, err)
	}

	rowYears := mapping.Has(domain.AttrSchoolYear) || anyRowYear(table.Rows)
	yearCol, hasYearCol := YearColumn(table.Headers, endYear)
	if !rowYears && !hasYearCol {
		return nil, nil, fmt.Errorf("%w: %s: no school year column and no %s column",
			ErrUnrecognizedSchema, table.Source, YearLabel(endYear))
	}

	rows := NewFillDownProcessor(level).FillDown(table.Rows, mapping)

	var quoted *int64
	records := make([]domain.EnrollmentRecord, 0, len(rows))
	for _, row := range rows {
		if rowYears {
			y, ok := ParseYearLabel(rowYear(row, mapping))
			if !ok || y != endYear {
				continue
			}
		}

		rec := b.buildRecord(row, mapping, endYear, level)
		if hasYearCol && !mapping.Has(domain.AttrRowTotal) {
			rec.RowTotal = NormalizeCount(row.Values[yearCol])
		}
		if isTotalsRow(rec) {
			if quoted == nil {
				quoted = rec.RowTotal
			}
			continue
		}
		if !keepRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, quoted, nil
}

func (b *RecordBuilder) buildRecord(row domain.RawRow, mapping ColumnMapping, endYear int, level domain.ReportingLevel) domain.EnrollmentRecord {
	rec := domain.EnrollmentRecord{EndYear: endYear, Type: level}

	if v, ok := mapping.Value(row, domain.AttrDistrictID); ok {
		rec.DistrictID = NormalizeDistrictID(v)
	}
	if v, ok := mapping.Value(row, domain.AttrDistrictName); ok {
		rec.DistrictName = cleanText(v)
	}
	if level == domain.LevelCampus {
		if v, ok := mapping.Value(row, domain.AttrCampusID); ok {
			rec.CampusID = cleanText(trailingZeroFraction.ReplaceAllString(strings.TrimSpace(v), ""))
		}
		if v, ok := mapping.Value(row, domain.AttrCampusName); ok {
			rec.CampusName = cleanText(v)
		}
	}

	charterCell, _ := mapping.Value(row, domain.AttrCharterFlag)
	rec.CharterFlag = charterFlag(charterCell, entityNames(rec)...)

	if v, ok := mapping.Value(row, domain.AttrRowTotal); ok {
		rec.RowTotal = NormalizeCount(v)
	}

	for _, attr := range mapping.Attributes() {
		if !attr.IsCount() {
			continue
		}
		if rec.Counts == nil {
			rec.Counts = make(map[domain.Attribute]*int64)
		}
		v, _ := mapping.Value(row, attr)
		rec.Counts[attr] = NormalizeCount(v)
	}
	return rec
}

func checkEntityColumns(mapping ColumnMapping, level domain.ReportingLevel) error {
	switch level {
	case domain.LevelCampus:
		if !mapping.Has(domain.AttrCampusID) && !mapping.Has(domain.AttrCampusName) {
			return errors.New("no school id or name column")
		}
	default:
		if !mapping.Has(domain.AttrDistrictID) && !mapping.Has(domain.AttrDistrictName) {
			return errors.New("no district id or name column")
		}
	}
	return nil
}

func anyRowYear(rows []domain.RawRow) bool {
	for _, r := range rows {
		if strings.TrimSpace(r.Year) != "" {
			return true
		}
	}
	return false
}

// entityNames lists the names checked when inferring charter status, most
// specific first.
func entityNames(rec domain.EnrollmentRecord) []*string {
	if rec.Type == domain.LevelCampus {
		return []*string{rec.CampusName, rec.DistrictName}
	}
	return []*string{rec.DistrictName}
}

func charterFlag(cell string, names ...*string) *string {
	yes, no := "Y", "N"
	v := strings.ToLower(strings.TrimSpace(cell))
	if v != "" {
		switch {
		case strings.Contains(v, "charter"), v == "c", v == "y", v == "yes":
			return &yes
		default:
			return &no
		}
	}
	for _, n := range names {
		if n != nil && strings.Contains(strings.ToLower(*n), "charter") {
			return &yes
		}
	}
	return &no
}

// IsStatewideTotalsLabel reports whether name is the label the agency uses
// for its own statewide totals line.
func IsStatewideTotalsLabel(name string) bool {
	return statewideTotalsLabel.MatchString(foldHeader(name))
}

func isTotalsRow(rec domain.EnrollmentRecord) bool {
	return rec.Type == domain.LevelDistrict &&
		rec.DistrictName != nil && IsStatewideTotalsLabel(*rec.DistrictName)
}

func keepRecord(rec domain.EnrollmentRecord) bool {
	switch rec.Type {
	case domain.LevelDistrict:
		if rec.DistrictName == nil && rec.RowTotal == nil {
			return false
		}
	case domain.LevelCampus:
		if rec.CampusName == nil && rec.RowTotal == nil {
			return false
		}
	}
	return true
}
