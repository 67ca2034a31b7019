package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"idschooldata/pkg/contracts/domain"
)

// DistrictHeaders is the header row of the district fixtures.
var DistrictHeaders = []string{"District ID", "District Name", "School Year", "Charter", "Total Enrollment", "Male", "Female", "Kindergarten", "Grade 1"}

// BuildingHeaders is the header row of the building fixtures.
var BuildingHeaders = []string{"District ID", "District Name", "School ID", "School Name", "School Year", "Total Enrollment"}

// DistrictRows returns a small district table for the school year label,
// including the agency's statewide totals line.
func DistrictRows(label string) [][]string {
	return [][]string{
		{"1", "Boise Independent District", label, "N", "25,000", "12,800", "12,200", "1,700", "1,750"},
		{"2", "West Ada District", label, "N", "40,000", "20,500", "19,500", "2,600", "2,700"},
		{"451", "Victory Charter School", label, "", "<10", "*", "*", "*", "*"},
		{"", "STATE OF IDAHO - TOTALS", label, "", "65,009", "33,300", "31,700", "4,300", "4,450"},
	}
}

// BuildingRows returns a small building table matching DistrictRows.
func BuildingRows(label string) [][]string {
	return [][]string{
		{"1", "Boise Independent District", "0101", "Borah High School", label, "1,500"},
		{"1", "Boise Independent District", "0102", "Capital High School", label, "*"},
		{"2", "West Ada District", "0201", "Centennial High School", label, "1,900"},
	}
}

// RawTable converts header and string rows into a domain.RawTable.
func RawTable(source string, headers []string, rows [][]string) domain.RawTable {
	table := domain.RawTable{Source: source, Headers: headers}
	for _, r := range rows {
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(r) {
				values[h] = r[i]
			}
		}
		table.Rows = append(table.Rows, domain.RawRow{Source: source, Values: values})
	}
	return table
}

// RawData returns district and building fixtures for endYear.
func RawData(endYear int) *domain.RawData {
	label := yearLabel(endYear)
	return &domain.RawData{
		District: RawTable("district.xlsx", DistrictHeaders, DistrictRows(label)),
		Building: RawTable("building.xlsx", BuildingHeaders, BuildingRows(label)),
	}
}

// WorkbookSheet describes one worksheet for WriteSheets. Preamble rows are
// written above the header row, the way agency files carry a title block.
type WorkbookSheet struct {
	Name     string
	Preamble []string
	Headers  []string
	Rows     [][]string
}

// WriteWorkbook saves a single-sheet workbook under dir and returns its
// path.
func WriteWorkbook(t *testing.T, dir, name, sheet string, preamble []string, headers []string, rows [][]string) string {
	t.Helper()
	return WriteSheets(t, dir, name, WorkbookSheet{Name: sheet, Preamble: preamble, Headers: headers, Rows: rows})
}

// WriteSheets saves a workbook with the given sheets, in order, and returns
// its path.
func WriteSheets(t *testing.T, dir, name string, sheets ...WorkbookSheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}

		rowNum := 1
		for _, line := range sheet.Preamble {
			setRow(t, f, sheet.Name, rowNum, []string{line})
			rowNum++
		}
		setRow(t, f, sheet.Name, rowNum, sheet.Headers)
		rowNum++
		for _, r := range sheet.Rows {
			setRow(t, f, sheet.Name, rowNum, r)
			rowNum++
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func setRow(t *testing.T, f *excelize.File, sheet string, row int, values []string) {
	t.Helper()

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		t.Fatalf("set row %d: %v", row, err)
	}
}

func yearLabel(endYear int) string {
	return fmt.Sprintf("%d-%02d", endYear-1, endYear%100)
}
