package dataprocessing

import (
	"idschooldata/pkg/contracts/domain"
)

// CreateStateAggregate derives the single State row for endYear by summing
// district records.
//
// Nil values are skipped. A column stays nil only when no district reported
// a value for it, and a count column appears on the State row when it is
// present on at least one district. With no districts the result carries a
// nil total and no counts.
func CreateStateAggregate(districts []domain.EnrollmentRecord, endYear int) domain.EnrollmentRecord {
	state := domain.EnrollmentRecord{EndYear: endYear, Type: domain.LevelState}
	if len(districts) == 0 {
		return state
	}

	var total sumAccumulator
	counts := make(map[domain.Attribute]*sumAccumulator)
	for _, d := range districts {
		total.add(d.RowTotal)
		for attr, v := range d.Counts {
			acc, ok := counts[attr]
			if !ok {
				acc = &sumAccumulator{}
				counts[attr] = acc
			}
			acc.add(v)
		}
	}

	state.RowTotal = total.result()
	if len(counts) > 0 {
		state.Counts = make(map[domain.Attribute]*int64, len(counts))
		for attr, acc := range counts {
			state.Counts[attr] = acc.result()
		}
	}
	return state
}

type sumAccumulator struct {
	sum      int64
	reported bool
}

func (a *sumAccumulator) add(v *int64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.reported = true
}

func (a *sumAccumulator) result() *int64 {
	if !a.reported {
		return nil
	}
	s := a.sum
	return &s
}
