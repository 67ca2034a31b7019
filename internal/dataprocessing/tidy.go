package dataprocessing

import (
	"idschooldata/pkg/contracts/domain"
)

// Tidy reshapes wide records into one row per entity, subgroup and grade.
//
// Each record yields the synthetic total_enrollment/TOTAL row first, then
// one row per count attribute present on the record in canonical order.
// Attributes absent from a record produce no row.
func Tidy(records []domain.EnrollmentRecord) []domain.TidyRecord {
	attrs := domain.CountAttributes()
	out := make([]domain.TidyRecord, 0, len(records)*(1+len(attrs)))

	for _, rec := range records {
		out = append(out, tidyRow(rec, domain.SubgroupTotal, domain.GradeTotal, rec.RowTotal))
		for _, attr := range attrs {
			v, ok := rec.Count(attr)
			if !ok {
				continue
			}
			subgroup, grade, err := attr.TidyKey()
			if err != nil {
				continue
			}
			out = append(out, tidyRow(rec, subgroup, grade, v))
		}
	}
	return out
}

func tidyRow(rec domain.EnrollmentRecord, subgroup, grade string, n *int64) domain.TidyRecord {
	return domain.TidyRecord{
		EndYear:      rec.EndYear,
		Type:         rec.Type,
		DistrictID:   rec.DistrictID,
		CampusID:     rec.CampusID,
		DistrictName: rec.DistrictName,
		CampusName:   rec.CampusName,
		CharterFlag:  rec.CharterFlag,
		IsState:      rec.Type == domain.LevelState,
		IsDistrict:   rec.Type == domain.LevelDistrict,
		IsCampus:     rec.Type == domain.LevelCampus,
		Subgroup:     subgroup,
		GradeLevel:   grade,
		NStudents:    copyCount(n),
		Pct:          share(n, rec.RowTotal),
	}
}

// share is n/total, nil when either side is missing or total is zero.
func share(n, total *int64) *float64 {
	if n == nil || total == nil || *total == 0 {
		return nil
	}
	p := float64(*n) / float64(*total)
	return &p
}

func copyCount(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
