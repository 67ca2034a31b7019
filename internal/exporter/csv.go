package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"idschooldata/pkg/contracts/domain"
)

// utf8BOM helps Excel recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// wideIdentityColumns lead every wide export, in this order
var wideIdentityColumns = []string{
	"end_year", "type", "district_id", "campus_id",
	"district_name", "campus_name", "charter_flag", "row_total",
}

// TidyColumns is the fixed column order of a tidy export
var TidyColumns = []string{
	"end_year", "type", "district_id", "campus_id",
	"district_name", "campus_name", "charter_flag",
	"is_state", "is_district", "is_campus",
	"subgroup", "grade_level", "n_students", "pct",
}

// CSVWriter renders enrollment tables as CSV
type CSVWriter struct {
	bom bool
}

// NewCSVWriter creates a CSV writer. bom prefixes the output with a UTF-8
// byte order mark.
func NewCSVWriter(bom bool) *CSVWriter {
	return &CSVWriter{bom: bom}
}

// WideColumns returns the header of a wide export: the identity columns
// followed by every count attribute reported by at least one record, in
// canonical order.
func WideColumns(records []domain.EnrollmentRecord) []string {
	reported := make(map[domain.Attribute]bool)
	for _, r := range records {
		for attr := range r.Counts {
			reported[attr] = true
		}
	}

	cols := append([]string(nil), wideIdentityColumns...)
	for _, attr := range domain.CountAttributes() {
		if reported[attr] {
			cols = append(cols, string(attr))
		}
	}
	return cols
}

// WriteTable writes the populated shape of table to w.
func (c *CSVWriter) WriteTable(w io.Writer, table *domain.EnrollmentTable) error {
	if table == nil {
		return fmt.Errorf("nil table")
	}
	if c.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	var err error
	if table.Shape == domain.ShapeTidy {
		err = writeTidyCSV(writer, table.Tidy)
	} else {
		err = writeWideCSV(writer, table.Wide)
	}
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func writeWideCSV(writer *csv.Writer, records []domain.EnrollmentRecord) error {
	cols := WideColumns(records)
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	attrs := cols[len(wideIdentityColumns):]
	for i, r := range records {
		row := []string{
			strconv.Itoa(r.EndYear),
			string(r.Type),
			formatLabel(r.DistrictID),
			formatLabel(r.CampusID),
			formatLabel(r.DistrictName),
			formatLabel(r.CampusName),
			formatLabel(r.CharterFlag),
			formatCount(r.RowTotal),
		}
		for _, a := range attrs {
			v, _ := r.Count(domain.Attribute(a))
			row = append(row, formatCount(v))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func writeTidyCSV(writer *csv.Writer, records []domain.TidyRecord) error {
	if err := writer.Write(TidyColumns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, r := range records {
		row := []string{
			strconv.Itoa(r.EndYear),
			string(r.Type),
			formatLabel(r.DistrictID),
			formatLabel(r.CampusID),
			formatLabel(r.DistrictName),
			formatLabel(r.CampusName),
			formatLabel(r.CharterFlag),
			formatBool(r.IsState),
			formatBool(r.IsDistrict),
			formatBool(r.IsCampus),
			r.Subgroup,
			r.GradeLevel,
			formatCount(r.NStudents),
			formatPct(r.Pct),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}
