package domain

// ReportingLevel is the granularity of an enrollment record
type ReportingLevel string

const (
	LevelState    ReportingLevel = "State"
	LevelDistrict ReportingLevel = "District"
	LevelCampus   ReportingLevel = "Campus"
)

// Shape selects between wide (one row per entity) and tidy (one row per
// entity, subgroup and grade) output.
type Shape string

const (
	ShapeWide Shape = "wide"
	ShapeTidy Shape = "tidy"
)

// Valid reports whether s is a known shape
func (s Shape) Valid() bool {
	return s == ShapeWide || s == ShapeTidy
}

// ShapeFor maps the tidy flag used by callers onto a Shape.
func ShapeFor(tidy bool) Shape {
	if tidy {
		return ShapeTidy
	}
	return ShapeWide
}

// RawRow is one source line item. Values is keyed by the source column
// label. Year is the school-year label discovered for the row, empty when
// the line carried none.
type RawRow struct {
	Source string            `json:"source"`
	Year   string            `json:"year,omitempty"`
	Values map[string]string `json:"values"`
}

// RawTable is a sequence of raw rows sharing one ordered header list.
type RawTable struct {
	Source  string   `json:"source"`
	Headers []string `json:"headers"`
	Rows    []RawRow `json:"rows"`
}

// Empty reports whether the table carries no rows
func (t RawTable) Empty() bool {
	return len(t.Rows) == 0
}

// RawData is what the raw fetch adapter returns for one end year.
// Building may be empty when no building-level source exists.
type RawData struct {
	District RawTable `json:"district"`
	Building RawTable `json:"building"`
}

// EnrollmentRecord is the wide form: one row per end year, reporting level
// and entity.
//
// A key present in Counts means the source era reported that column; a nil
// value under a present key means the cell was suppressed or missing.
type EnrollmentRecord struct {
	EndYear      int                  `json:"end_year"`
	Type         ReportingLevel       `json:"type"`
	DistrictID   *string              `json:"district_id"`
	CampusID     *string              `json:"campus_id"`
	DistrictName *string              `json:"district_name"`
	CampusName   *string              `json:"campus_name"`
	CharterFlag  *string              `json:"charter_flag"`
	RowTotal     *int64               `json:"row_total"`
	Counts       map[Attribute]*int64 `json:"counts,omitempty"`
}

// Count returns the value for attr and whether the column was reported.
func (r EnrollmentRecord) Count(attr Attribute) (*int64, bool) {
	v, ok := r.Counts[attr]
	return v, ok
}

// TidyRecord is the long form: one row per entity, subgroup and grade.
type TidyRecord struct {
	EndYear      int            `json:"end_year"`
	Type         ReportingLevel `json:"type"`
	DistrictID   *string        `json:"district_id"`
	CampusID     *string        `json:"campus_id"`
	DistrictName *string        `json:"district_name"`
	CampusName   *string        `json:"campus_name"`
	CharterFlag  *string        `json:"charter_flag"`
	IsState      bool           `json:"is_state"`
	IsDistrict   bool           `json:"is_district"`
	IsCampus     bool           `json:"is_campus"`
	Subgroup     string         `json:"subgroup"`
	GradeLevel   string         `json:"grade_level"`
	NStudents    *int64         `json:"n_students"`
	Pct          *float64       `json:"pct"`
}

// EnrollmentTable is the result of a pipeline run and the unit the cache
// stores. Only the slice matching Shape is populated.
type EnrollmentTable struct {
	Shape    Shape              `json:"shape"`
	Wide     []EnrollmentRecord `json:"wide,omitempty"`
	Tidy     []TidyRecord       `json:"tidy,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Len returns the number of rows in the populated shape
func (t *EnrollmentTable) Len() int {
	if t == nil {
		return 0
	}
	if t.Shape == ShapeTidy {
		return len(t.Tidy)
	}
	return len(t.Wide)
}

// Append concatenates other onto t. Shapes must match.
func (t *EnrollmentTable) Append(other *EnrollmentTable) {
	if other == nil {
		return
	}
	t.Wide = append(t.Wide, other.Wide...)
	t.Tidy = append(t.Tidy, other.Tidy...)
	t.Warnings = append(t.Warnings, other.Warnings...)
}

// YearRange is the inclusive span of end years a source publishes
type YearRange struct {
	Min int `json:"min_year"`
	Max int `json:"max_year"`
}

// Contains reports whether endYear lies within the range
func (r YearRange) Contains(endYear int) bool {
	return endYear >= r.Min && endYear <= r.Max
}

// Years lists every end year in the range, ascending
func (r YearRange) Years() []int {
	if r.Max < r.Min {
		return nil
	}
	out := make([]int, 0, r.Max-r.Min+1)
	for y := r.Min; y <= r.Max; y++ {
		out = append(out, y)
	}
	return out
}
