package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAttributesOrder(t *testing.T) {
	attrs := CountAttributes()
	require.Len(t, attrs, 26)
	assert.Equal(t, AttrMale, attrs[0])
	assert.Equal(t, AttrEconDisadv, attrs[11])
	assert.Equal(t, AttrGradePK, attrs[12])
	assert.Equal(t, AttrGrade12, attrs[25])

	// callers get a copy
	attrs[0] = AttrRowTotal
	assert.Equal(t, AttrMale, CountAttributes()[0])
}

func TestAttributeClassification(t *testing.T) {
	tests := []struct {
		attr        Attribute
		count       bool
		demographic bool
		grade       bool
	}{
		{AttrDistrictID, false, false, false},
		{AttrRowTotal, false, false, false},
		{AttrSchoolYear, false, false, false},
		{AttrHispanic, true, true, false},
		{AttrLEP, true, true, false},
		{AttrGradeK, true, false, true},
		{AttrGrade09, true, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.attr), func(t *testing.T) {
			assert.Equal(t, tt.count, tt.attr.IsCount())
			assert.Equal(t, tt.demographic, tt.attr.IsDemographic())
			assert.Equal(t, tt.grade, tt.attr.IsGrade())
		})
	}
}

func TestTidyKey(t *testing.T) {
	tests := []struct {
		attr         Attribute
		wantSubgroup string
		wantGrade    string
		wantErr      bool
	}{
		{AttrMale, "male", "TOTAL", false},
		{AttrNativeAmerican, "native_american", "TOTAL", false},
		{AttrGradePK, "total_enrollment", "PK", false},
		{AttrGrade01, "total_enrollment", "01", false},
		{AttrGrade12, "total_enrollment", "12", false},
		{AttrDistrictName, "", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.attr), func(t *testing.T) {
			sub, grade, err := tt.attr.TidyKey()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubgroup, sub)
			assert.Equal(t, tt.wantGrade, grade)
		})
	}
}

func TestShape(t *testing.T) {
	assert.True(t, ShapeWide.Valid())
	assert.True(t, ShapeTidy.Valid())
	assert.False(t, Shape("long").Valid())
	assert.Equal(t, ShapeTidy, ShapeFor(true))
	assert.Equal(t, ShapeWide, ShapeFor(false))
}

func TestYearRange(t *testing.T) {
	r := YearRange{Min: 2020, Max: 2023}
	assert.True(t, r.Contains(2020))
	assert.True(t, r.Contains(2023))
	assert.False(t, r.Contains(2019))
	assert.False(t, r.Contains(2024))
	assert.Equal(t, []int{2020, 2021, 2022, 2023}, r.Years())
	assert.Nil(t, YearRange{Min: 5, Max: 1}.Years())
}

func TestEnrollmentTableLenAndAppend(t *testing.T) {
	var nilTable *EnrollmentTable
	assert.Equal(t, 0, nilTable.Len())

	wide := &EnrollmentTable{Shape: ShapeWide, Wide: []EnrollmentRecord{{EndYear: 2023}}}
	wide.Append(&EnrollmentTable{Shape: ShapeWide, Wide: []EnrollmentRecord{{EndYear: 2024}}, Warnings: []string{"w"}})
	wide.Append(nil)
	assert.Equal(t, 2, wide.Len())
	assert.Equal(t, []string{"w"}, wide.Warnings)

	tidy := &EnrollmentTable{Shape: ShapeTidy, Tidy: []TidyRecord{{}, {}, {}}}
	assert.Equal(t, 3, tidy.Len())
}

func TestEnrollmentRecordJSONKeepsSuppressedCounts(t *testing.T) {
	n := int64(12)
	rec := EnrollmentRecord{
		EndYear: 2024,
		Type:    LevelDistrict,
		Counts:  map[Attribute]*int64{AttrMale: nil, AttrFemale: &n},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"male":null`)

	var back EnrollmentRecord
	require.NoError(t, json.Unmarshal(data, &back))
	v, ok := back.Count(AttrMale)
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, rec, back)
}
