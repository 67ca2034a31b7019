package dataprocessing

import (
	"errors"
	"fmt"

	"idschooldata/pkg/contracts/domain"
)

// ProcessResult holds the records of one end year split by level.
type ProcessResult struct {
	EndYear   int
	State     domain.EnrollmentRecord
	Districts []domain.EnrollmentRecord
	Campuses  []domain.EnrollmentRecord
	// QuotedStateTotal is the total printed on the source's statewide
	// totals line, nil when the district table had none.
	QuotedStateTotal *int64
	// Warnings lists tables that were skipped because their layout was not
	// recognized.
	Warnings []string
}

// Records returns the State row followed by District rows and then Campus
// rows. Consumers rely on the first row being the statewide summary.
func (r *ProcessResult) Records() []domain.EnrollmentRecord {
	out := make([]domain.EnrollmentRecord, 0, 1+len(r.Districts)+len(r.Campuses))
	out = append(out, r.State)
	out = append(out, r.Districts...)
	return append(out, r.Campuses...)
}

// Empty reports whether neither level produced a record
func (r *ProcessResult) Empty() bool {
	return len(r.Districts) == 0 && len(r.Campuses) == 0
}

// ProcessEnr builds the district and campus records of raw for endYear and
// the state aggregate over the districts. An unrecognized table becomes a
// warning and an empty level.
func ProcessEnr(raw *domain.RawData, endYear int) (*ProcessResult, error) {
	return NewRecordBuilder(nil).ProcessEnr(raw, endYear)
}

// ProcessEnr is ProcessEnr using b's pattern table
func (b *RecordBuilder) ProcessEnr(raw *domain.RawData, endYear int) (*ProcessResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("no raw data for %d", endYear)
	}

	result := &ProcessResult{EndYear: endYear}

	districts, quoted, err := b.buildLevel(raw.District, endYear, domain.LevelDistrict)
	if err != nil {
		if !errors.Is(err, ErrUnrecognizedSchema) {
			return nil, fmt.Errorf("district records: %w", err)
		}
		result.Warnings = append(result.Warnings, "district: "+err.Error())
	}

	campuses, err := b.BuildLevelRecords(raw.Building, endYear, domain.LevelCampus)
	if err != nil {
		if !errors.Is(err, ErrUnrecognizedSchema) {
			return nil, fmt.Errorf("campus records: %w", err)
		}
		result.Warnings = append(result.Warnings, "campus: "+err.Error())
	}

	result.QuotedStateTotal = quoted
	result.Districts = districts
	result.Campuses = campuses
	result.State = CreateStateAggregate(districts, endYear)
	return result, nil
}
