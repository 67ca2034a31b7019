package domain

import "fmt"

// Attribute is a canonical column name the pipeline understands regardless
// of how a source spreadsheet spells it.
type Attribute string

// Identity attributes
const (
	AttrDistrictID   Attribute = "district_id"
	AttrCampusID     Attribute = "campus_id"
	AttrDistrictName Attribute = "district_name"
	AttrCampusName   Attribute = "campus_name"
	AttrCharterFlag  Attribute = "charter_flag"
	AttrSchoolYear   Attribute = "school_year"
	AttrRowTotal     Attribute = "row_total"
)

// Demographic and special-population attributes
const (
	AttrMale            Attribute = "male"
	AttrFemale          Attribute = "female"
	AttrWhite           Attribute = "white"
	AttrBlack           Attribute = "black"
	AttrHispanic        Attribute = "hispanic"
	AttrAsian           Attribute = "asian"
	AttrNativeAmerican  Attribute = "native_american"
	AttrPacificIslander Attribute = "pacific_islander"
	AttrMultiracial     Attribute = "multiracial"
	AttrSpecialEd       Attribute = "special_ed"
	AttrLEP             Attribute = "lep"
	AttrEconDisadv      Attribute = "econ_disadv"
)

// Grade attributes
const (
	AttrGradePK Attribute = "grade_pk"
	AttrGradeK  Attribute = "grade_k"
	AttrGrade01 Attribute = "grade_01"
	AttrGrade02 Attribute = "grade_02"
	AttrGrade03 Attribute = "grade_03"
	AttrGrade04 Attribute = "grade_04"
	AttrGrade05 Attribute = "grade_05"
	AttrGrade06 Attribute = "grade_06"
	AttrGrade07 Attribute = "grade_07"
	AttrGrade08 Attribute = "grade_08"
	AttrGrade09 Attribute = "grade_09"
	AttrGrade10 Attribute = "grade_10"
	AttrGrade11 Attribute = "grade_11"
	AttrGrade12 Attribute = "grade_12"
)

// SubgroupTotal is the tidy subgroup used for grade rows and for the
// synthetic row carrying the entity total.
const SubgroupTotal = "total_enrollment"

// GradeTotal is the tidy grade level for rows not broken out by grade.
const GradeTotal = "TOTAL"

var demographicAttributes = []Attribute{
	AttrMale, AttrFemale,
	AttrWhite, AttrBlack, AttrHispanic, AttrAsian,
	AttrNativeAmerican, AttrPacificIslander, AttrMultiracial,
	AttrSpecialEd, AttrLEP, AttrEconDisadv,
}

var gradeAttributes = []Attribute{
	AttrGradePK, AttrGradeK,
	AttrGrade01, AttrGrade02, AttrGrade03, AttrGrade04,
	AttrGrade05, AttrGrade06, AttrGrade07, AttrGrade08,
	AttrGrade09, AttrGrade10, AttrGrade11, AttrGrade12,
}

var gradeLevels = map[Attribute]string{
	AttrGradePK: "PK",
	AttrGradeK:  "K",
	AttrGrade01: "01",
	AttrGrade02: "02",
	AttrGrade03: "03",
	AttrGrade04: "04",
	AttrGrade05: "05",
	AttrGrade06: "06",
	AttrGrade07: "07",
	AttrGrade08: "08",
	AttrGrade09: "09",
	AttrGrade10: "10",
	AttrGrade11: "11",
	AttrGrade12: "12",
}

// CountAttributes returns the demographic and grade attributes in canonical
// order. The slice is a copy.
func CountAttributes() []Attribute {
	out := make([]Attribute, 0, len(demographicAttributes)+len(gradeAttributes))
	out = append(out, demographicAttributes...)
	return append(out, gradeAttributes...)
}

// IsCount reports whether a is a demographic or grade count attribute.
func (a Attribute) IsCount() bool {
	return a.IsDemographic() || a.IsGrade()
}

// IsDemographic reports whether a is a demographic or special-population
// attribute.
func (a Attribute) IsDemographic() bool {
	for _, d := range demographicAttributes {
		if d == a {
			return true
		}
	}
	return false
}

// IsGrade reports whether a is a grade-level attribute.
func (a Attribute) IsGrade() bool {
	_, ok := gradeLevels[a]
	return ok
}

// TidyKey returns the (subgroup, grade level) pair a count attribute
// reshapes to.
func (a Attribute) TidyKey() (subgroup, grade string, err error) {
	if level, ok := gradeLevels[a]; ok {
		return SubgroupTotal, level, nil
	}
	if a.IsDemographic() {
		return string(a), GradeTotal, nil
	}
	return "", "", fmt.Errorf("attribute %q has no tidy mapping", a)
}
