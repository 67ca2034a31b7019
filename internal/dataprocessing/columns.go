package dataprocessing

import (
	"fmt"
	"regexp"

	"idschooldata/pkg/contracts/domain"
)

// AttributePatterns pairs a canonical attribute with its header patterns in
// priority order.
type AttributePatterns struct {
	Attribute domain.Attribute
	Patterns  []*regexp.Regexp
}

// PatternTable is evaluated in slice order. That order is the tie-break
// for a header that matches patterns of more than one attribute.
type PatternTable []AttributePatterns

// ColumnMapping is the result of reconciling one table's headers.
type ColumnMapping struct {
	byAttr map[domain.Attribute]string
	order  []domain.Attribute
}

// Header returns the source header mapped to attr
func (m ColumnMapping) Header(attr domain.Attribute) (string, bool) {
	h, ok := m.byAttr[attr]
	return h, ok
}

// Has reports whether attr was mapped
func (m ColumnMapping) Has(attr domain.Attribute) bool {
	_, ok := m.byAttr[attr]
	return ok
}

// Attributes lists mapped attributes in pattern-table order
func (m ColumnMapping) Attributes() []domain.Attribute {
	out := make([]domain.Attribute, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of mapped attributes
func (m ColumnMapping) Len() int {
	return len(m.order)
}

// Value returns the raw cell for attr in row, and whether the column exists.
func (m ColumnMapping) Value(row domain.RawRow, attr domain.Attribute) (string, bool) {
	h, ok := m.byAttr[attr]
	if !ok {
		return "", false
	}
	return row.Values[h], true
}

// ReconcileColumns maps headers onto canonical attributes.
//
// For each attribute in table order, patterns are tried in priority order;
// the first header (in source order) matching the first pattern with any
// match claims the attribute. A claimed header is never offered to a later
// attribute, so each header maps to at most one attribute.
func ReconcileColumns(headers []string, table PatternTable) ColumnMapping {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = foldHeader(h)
	}

	claimed := make([]bool, len(headers))
	mapping := ColumnMapping{byAttr: make(map[domain.Attribute]string)}

	for _, entry := range table {
		if _, done := mapping.byAttr[entry.Attribute]; done {
			continue
		}
	patterns:
		for _, p := range entry.Patterns {
			for i, h := range folded {
				if claimed[i] || h == "" {
					continue
				}
				if p.MatchString(h) {
					claimed[i] = true
					mapping.byAttr[entry.Attribute] = headers[i]
					mapping.order = append(mapping.order, entry.Attribute)
					break patterns
				}
			}
		}
	}
	return mapping
}

// YearColumn finds a wide-layout column whose header is the school-year
// label for endYear ("2023-24", "2023-2024" or "2024").
func YearColumn(headers []string, endYear int) (string, bool) {
	for _, h := range headers {
		folded := foldHeader(h)
		if !yearHeaderPattern.MatchString(folded) {
			continue
		}
		if y, ok := ParseYearLabel(folded); ok && y == endYear {
			return h, true
		}
	}
	return "", false
}

var yearHeaderPattern = regexp.MustCompile(`^(sy\s*|fy\s*)?\d{4}(\s*[-–/]\s*(\d{2}|\d{4}))?$`)

func mustPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func gradePatterns(n int) []*regexp.Regexp {
	return mustPatterns(
		fmt.Sprintf(`^(grade|gr\.?)?\s*0?%d(st|nd|rd|th)?(\s*grade)?$`, n),
		fmt.Sprintf(`^(grade|gr\.?)\s*0?%d\b`, n),
	)
}

// DefaultPatterns is the header vocabulary seen across the agency's
// enrollment workbooks. Patterns run against lower-cased, whitespace
// collapsed headers.
//
// Order: identifiers, names, charter, year, totals, demographics, grades.
func DefaultPatterns() PatternTable {
	return PatternTable{
		{domain.AttrDistrictID, mustPatterns(
			`^(lea|district|dist\.?)\s*(#|no\.?|num(ber)?|id|code)$`,
			`^(lea|district)\s*/\s*charter\s*(#|no\.?|num(ber)?|id|code)$`,
			`^id$`,
			`^lea$`,
			`^(lea|district).*\b(number|id|code)\b`,
		)},
		{domain.AttrCampusID, mustPatterns(
			`^(school|building|campus|sch\.?|bldg\.?)\s*(#|no\.?|num(ber)?|id|code)$`,
			`^(school|building|campus).*\b(number|id|code)\b`,
		)},
		{domain.AttrDistrictName, mustPatterns(
			`^(lea|district)\s*name$`,
			`^(lea|district)\s*/\s*charter(\s*name)?$`,
			`^district$`,
			`^name$`,
			`^(lea|district).*name`,
		)},
		{domain.AttrCampusName, mustPatterns(
			`^(school|building|campus)\s*name$`,
			`^(school|building|campus)$`,
			`^(school|building|campus).*name`,
		)},
		{domain.AttrCharterFlag, mustPatterns(
			`^charter(\s*(flag|status|school|y/?n))?\??$`,
			`^(lea|district|school)\s*type$`,
			`charter`,
		)},
		{domain.AttrSchoolYear, mustPatterns(
			`^(school\s*)?year$`,
			`^(sy|fy|fiscal\s*year)$`,
			`^(school|academic)\s*year\b`,
		)},
		{domain.AttrRowTotal, mustPatterns(
			`^(total\s*)?membership$`,
			`^total\b.*\bmembership$`,
			`^total\s*enroll(ment|ed)?$`,
			`^enroll(ment|ed)$`,
			`^(grand\s*)?totals?$`,
			`^(k-12|pk-12|k12)\s*total$`,
		)},
		{domain.AttrMale, mustPatterns(`^males?$`, `\bmales?\b`)},
		{domain.AttrFemale, mustPatterns(`^females?$`, `\bfemales?\b`)},
		{domain.AttrWhite, mustPatterns(`^white$`, `\bwhite\b`)},
		{domain.AttrBlack, mustPatterns(`^black$`, `\bblack\b`, `african`)},
		{domain.AttrHispanic, mustPatterns(`^hispanic$`, `hispanic|latino`)},
		{domain.AttrAsian, mustPatterns(`^asian$`, `\basian\b`)},
		{domain.AttrNativeAmerican, mustPatterns(
			`american indian|native american|alaska(n)? native`,
		)},
		{domain.AttrPacificIslander, mustPatterns(`pacific islander|hawaiian`, `pacific`)},
		{domain.AttrMultiracial, mustPatterns(`two or more|multi-?racial|multiple races`)},
		{domain.AttrSpecialEd, mustPatterns(`special ed`, `\bsped\b`, `disabilit|\biep\b`)},
		{domain.AttrLEP, mustPatterns(`\blep\b|\bell\b|english learner|limited english`)},
		{domain.AttrEconDisadv, mustPatterns(`econ(omically)?\s*disadv`, `low income|\bfrl\b|free.*reduced`)},
		{domain.AttrGradePK, mustPatterns(
			`^(grade\s*)?(pk|pre-?k|pre-?school|pre-?kindergarten)$`,
		)},
		{domain.AttrGradeK, mustPatterns(
			`^(grade\s*)?(k|kg|kdg|kind\.?|kindergarten)$`,
		)},
		{domain.AttrGrade01, gradePatterns(1)},
		{domain.AttrGrade02, gradePatterns(2)},
		{domain.AttrGrade03, gradePatterns(3)},
		{domain.AttrGrade04, gradePatterns(4)},
		{domain.AttrGrade05, gradePatterns(5)},
		{domain.AttrGrade06, gradePatterns(6)},
		{domain.AttrGrade07, gradePatterns(7)},
		{domain.AttrGrade08, gradePatterns(8)},
		{domain.AttrGrade09, gradePatterns(9)},
		{domain.AttrGrade10, gradePatterns(10)},
		{domain.AttrGrade11, gradePatterns(11)},
		{domain.AttrGrade12, gradePatterns(12)},
	}
}
