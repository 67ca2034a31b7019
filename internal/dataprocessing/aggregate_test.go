package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"idschooldata/pkg/contracts/domain"
)

func district(total *int64, counts map[domain.Attribute]*int64) domain.EnrollmentRecord {
	return domain.EnrollmentRecord{
		EndYear:    2024,
		Type:       domain.LevelDistrict,
		DistrictID: str("001"),
		RowTotal:   total,
		Counts:     counts,
	}
}

func TestCreateStateAggregate(t *testing.T) {
	tests := []struct {
		name       string
		districts  []domain.EnrollmentRecord
		wantTotal  *int64
		wantCounts map[domain.Attribute]*int64
	}{
		{
			name:      "no districts",
			districts: nil,
		},
		{
			name: "sums ignoring nil",
			districts: []domain.EnrollmentRecord{
				district(i64(100), map[domain.Attribute]*int64{domain.AttrMale: i64(40)}),
				district(nil, map[domain.Attribute]*int64{domain.AttrMale: nil}),
				district(i64(50), map[domain.Attribute]*int64{domain.AttrMale: i64(20)}),
			},
			wantTotal:  i64(150),
			wantCounts: map[domain.Attribute]*int64{domain.AttrMale: i64(60)},
		},
		{
			name: "nothing reported",
			districts: []domain.EnrollmentRecord{
				district(nil, map[domain.Attribute]*int64{domain.AttrGradeK: nil}),
				district(nil, nil),
			},
			wantTotal:  nil,
			wantCounts: map[domain.Attribute]*int64{domain.AttrGradeK: nil},
		},
		{
			name: "attribute present on one district",
			districts: []domain.EnrollmentRecord{
				district(i64(10), nil),
				district(i64(20), map[domain.Attribute]*int64{domain.AttrLEP: i64(3)}),
			},
			wantTotal:  i64(30),
			wantCounts: map[domain.Attribute]*int64{domain.AttrLEP: i64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := CreateStateAggregate(tt.districts, 2024)

			assert.Equal(t, domain.LevelState, state.Type)
			assert.Equal(t, 2024, state.EndYear)
			assert.Nil(t, state.DistrictID)
			assert.Nil(t, state.CampusID)
			assert.Nil(t, state.DistrictName)
			assert.Nil(t, state.CampusName)
			assert.Nil(t, state.CharterFlag)
			assert.Equal(t, tt.wantTotal, state.RowTotal)
			assert.Equal(t, tt.wantCounts, state.Counts)
		})
	}
}

func TestCreateStateAggregateDoesNotAliasDistricts(t *testing.T) {
	districts := []domain.EnrollmentRecord{district(i64(5), nil)}
	state := CreateStateAggregate(districts, 2024)

	*state.RowTotal = 99
	assert.Equal(t, int64(5), *districts[0].RowTotal)
}
