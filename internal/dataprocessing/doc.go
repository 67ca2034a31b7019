// Package dataprocessing turns raw enrollment spreadsheets into canonical
// records.
//
// # Architecture
//
// The package is organized leaf first:
//
// 1. Normalizers: NormalizeCount, CleanLabel, NormalizeDistrictID, YearLabel
// 2. Reconciler: ReconcileColumns maps source headers onto domain.Attribute
// 3. Builders: fill-down, year filtering, District and Campus records
// 4. Aggregate: CreateStateAggregate sums districts into the State row
// 5. Reshaper: Tidy converts wide records into long records
//
// # Usage
//
//	result, err := dataprocessing.ProcessEnr(raw, 2024)
//	if err != nil {
//	    return err
//	}
//	wide := result.Records()
//	long := dataprocessing.Tidy(wide)
//
// # Data Flow
//
//	RawTable → ReconcileColumns → FillDown → year filter → records → State aggregate → Tidy
//
// # Error Handling
//
// A single cell never produces an error; malformed or suppressed values
// become nil. A table whose layout cannot be recognized yields
// ErrUnrecognizedSchema, which ProcessEnr turns into a warning and an
// empty level.
//
// # Column Priority
//
// Header ambiguity is resolved by the order of the PatternTable:
// identifiers, then names, then charter and year, then totals, then counts.
// DefaultPatterns documents the vocabulary.
package dataprocessing
