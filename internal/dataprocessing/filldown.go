package dataprocessing

import (
	"strings"

	"idschooldata/pkg/contracts/domain"
)

type fillState int

const (
	noEntity fillState = iota
	haveEntity
)

// FillDownProcessor carries entity identity down onto continuation rows.
// Older workbooks print a district's id and name once and list one line per
// school year beneath it with those cells blank.
type FillDownProcessor struct {
	entityAttrs []domain.Attribute
}

// NewFillDownProcessor creates a fill-down processor for the entity
// columns of level.
func NewFillDownProcessor(level domain.ReportingLevel) *FillDownProcessor {
	attrs := []domain.Attribute{domain.AttrDistrictID, domain.AttrDistrictName, domain.AttrCharterFlag}
	if level == domain.LevelCampus {
		attrs = append(attrs, domain.AttrCampusID, domain.AttrCampusName)
	}
	return &FillDownProcessor{entityAttrs: attrs}
}

// FillStatistics summarizes one fill-down pass
type FillStatistics struct {
	TotalRows    int
	EntityRows   int
	FilledRows   int
	OrphanedRows int
}

// FillDown returns a copy of rows where continuation rows inherit the
// entity columns of the row that introduced the entity. A row with blank
// entity columns and no year ends the current entity. rows is not modified.
func (f *FillDownProcessor) FillDown(rows []domain.RawRow, mapping ColumnMapping) []domain.RawRow {
	out, _ := f.FillDownWithStats(rows, mapping)
	return out
}

// FillDownWithStats performs FillDown and reports what it did
func (f *FillDownProcessor) FillDownWithStats(rows []domain.RawRow, mapping ColumnMapping) ([]domain.RawRow, FillStatistics) {
	stats := FillStatistics{TotalRows: len(rows)}
	if len(rows) == 0 {
		return rows, stats
	}

	headers := make([]string, 0, len(f.entityAttrs))
	identity := make([]string, 0, len(f.entityAttrs))
	for _, attr := range f.entityAttrs {
		// charter flag is carried along but never marks a row as an entity
		if h, ok := mapping.Header(attr); ok {
			headers = append(headers, h)
			if attr != domain.AttrCharterFlag {
				identity = append(identity, h)
			}
		}
	}

	state := noEntity
	current := make(map[string]string, len(headers))
	out := make([]domain.RawRow, len(rows))

	for i, row := range rows {
		values := make(map[string]string, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}
		out[i] = domain.RawRow{Source: row.Source, Year: row.Year, Values: values}

		if hasAny(values, identity) {
			state = haveEntity
			stats.EntityRows++
			for _, h := range headers {
				current[h] = values[h]
			}
			continue
		}

		if rowYear(row, mapping) == "" {
			state = noEntity
			stats.OrphanedRows++
			continue
		}

		if state == haveEntity {
			for _, h := range headers {
				if strings.TrimSpace(values[h]) == "" {
					values[h] = current[h]
				}
			}
			stats.FilledRows++
		} else {
			stats.OrphanedRows++
		}
	}
	return out, stats
}

func hasAny(values map[string]string, headers []string) bool {
	for _, h := range headers {
		if strings.TrimSpace(values[h]) != "" {
			return true
		}
	}
	return false
}

// rowYear is the school-year label for row: the tag set by the reader, else
// the school_year cell.
func rowYear(row domain.RawRow, mapping ColumnMapping) string {
	if y := strings.TrimSpace(row.Year); y != "" {
		return y
	}
	if v, ok := mapping.Value(row, domain.AttrSchoolYear); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
