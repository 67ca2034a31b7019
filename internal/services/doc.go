// Package services implements the business logic layer of idschooldata.
// It sits between the HTTP handlers and CLI commands on one side and the
// source adapter, record builders and cache on the other.
//
// # Enrollment pipeline
//
// EnrollmentService.FetchEnr runs one end year through the pipeline:
//
//	1. Reject an end year outside the configured range before any I/O
//	2. Serve the (year, shape) entry from the cache when allowed
//	3. Fetch the raw district and building tables
//	4. Build District and Campus records and the State aggregate
//	5. Fail with ErrNoDataForYear when both levels are empty
//	6. Reshape to tidy form when requested and store the result
//
// FetchEnrMulti repeats this for several years, strictly in order, and
// concatenates the results. The first failing year fails the call.
//
// # Error Handling
//
// Errors are returned as errors.AppError values from internal/errors,
// wrapping the package sentinels, so callers can use errors.Is and the
// HTTP layer can map them to problem details:
//
//	- ErrInvalidYear: INVALID_YEAR, 400
//	- ErrNoDataForYear: NO_DATA, 404
//	- source failures: SOURCE, 502
//	- cache failures: STORAGE, 500
//
// # Testing
//
// The service is tested with a stub RawFetcher and cache.MemoryStore:
//
//	svc := NewEnrollmentService(&stubFetcher{}, cache.NewMemoryStore(),
//	    EnrollmentServiceOptions{Years: domain.YearRange{Min: 1996, Max: 2026}}, logger)
//	table, err := svc.FetchEnr(ctx, 2024, DefaultFetchOptions())
package services
