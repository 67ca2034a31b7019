package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"idschooldata/internal/dataprocessing"
	"idschooldata/pkg/contracts/domain"
)

// ErrNoHeaderRow is returned when no sheet has a recognizable header row
var ErrNoHeaderRow = errors.New("no header row found")

// headerScanRows bounds how far down a sheet the header search looks
const headerScanRows = 25

var headerKeywords = []string{
	"district", "lea", "school", "building", "name", "number", "id",
	"total", "enrollment", "membership", "year", "grade", "kindergarten",
	"male", "female", "charter",
}

// Sheet is the table found on one worksheet
type Sheet struct {
	Name      string
	HeaderRow int
	Table     domain.RawTable
}

// ReadWorkbook reads the table for endYear from the workbook at path.
//
// A sheet named for the year ("2023-24", "2024", "SY 2023-24") wins and
// tags every row with that year. Otherwise the first sheet with a header
// row is used and rows are tagged from its school-year column. A workbook
// with year-named sheets but none for endYear yields an empty table.
func ReadWorkbook(path string, endYear int, source string) (domain.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	yearSheets := 0
	for _, name := range sheets {
		y, ok := sheetYear(name)
		if !ok {
			continue
		}
		yearSheets++
		if y != endYear {
			continue
		}
		sheet, err := readSheet(f, name, source)
		if err != nil {
			return domain.RawTable{}, err
		}
		label := dataprocessing.YearLabel(endYear)
		for i := range sheet.Table.Rows {
			if sheet.Table.Rows[i].Year == "" {
				sheet.Table.Rows[i].Year = label
			}
		}
		return sheet.Table, nil
	}

	if yearSheets > 0 {
		return domain.RawTable{Source: source}, nil
	}

	for _, name := range sheets {
		if _, ok := sheetYear(name); ok {
			continue
		}
		sheet, err := readSheet(f, name, source)
		if errors.Is(err, ErrNoHeaderRow) {
			continue
		}
		if err != nil {
			return domain.RawTable{}, err
		}
		tagRowYears(&sheet.Table)
		return sheet.Table, nil
	}
	return domain.RawTable{}, fmt.Errorf("%s: %w", source, ErrNoHeaderRow)
}

// sheetYear recognizes sheet names that are just a school-year label
func sheetYear(name string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "sy")
	s = strings.TrimPrefix(s, "fy")
	s = strings.TrimSpace(s)
	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '-' && r != '/' && r != ' ' && r != '–'
	}) >= 0 {
		return 0, false
	}
	return dataprocessing.ParseYearLabel(s)
}

func readSheet(f *excelize.File, name, source string) (*Sheet, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}

	headerRow := detectHeaderRow(rows)
	if headerRow < 0 {
		return nil, fmt.Errorf("sheet %s: %w", name, ErrNoHeaderRow)
	}

	headers := dedupeHeaders(rows[headerRow])
	table := domain.RawTable{Source: source, Headers: headers}
	for _, cells := range rows[headerRow+1:] {
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				values[h] = cells[i]
			} else {
				values[h] = ""
			}
		}
		table.Rows = append(table.Rows, domain.RawRow{Source: source, Values: values})
	}
	trimTrailingBlankRows(&table)

	return &Sheet{Name: name, HeaderRow: headerRow, Table: table}, nil
}

// detectHeaderRow picks the row among the first few with the most cells
// that look like column titles. Title banners above the table score low
// because they are a single merged cell.
func detectHeaderRow(rows [][]string) int {
	best, bestScore := -1, 1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if score := scoreHeaderRow(rows[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func scoreHeaderRow(cells []string) int {
	score := 0
	for _, cell := range cells {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		for _, kw := range headerKeywords {
			if strings.Contains(c, kw) {
				score++
				break
			}
		}
	}
	return score
}

// dedupeHeaders trims labels, names blank ones by position and suffixes
// repeats so every header is a unique map key.
func dedupeHeaders(cells []string) []string {
	seen := make(map[string]int, len(cells))
	out := make([]string, len(cells))
	for i, cell := range cells {
		h := strings.Join(strings.Fields(cell), " ")
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s (%d)", h, n)
		}
		out[i] = h
	}
	return out
}

// tagRowYears copies the school-year cell onto each row's Year
func tagRowYears(t *domain.RawTable) {
	mapping := dataprocessing.ReconcileColumns(t.Headers, dataprocessing.DefaultPatterns())
	header, ok := mapping.Header(domain.AttrSchoolYear)
	if !ok {
		return
	}
	for i := range t.Rows {
		t.Rows[i].Year = strings.TrimSpace(t.Rows[i].Values[header])
	}
}

func trimTrailingBlankRows(t *domain.RawTable) {
	n := len(t.Rows)
	for n > 0 && blankRow(t.Rows[n-1]) {
		n--
	}
	t.Rows = t.Rows[:n]
}

func blankRow(r domain.RawRow) bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
