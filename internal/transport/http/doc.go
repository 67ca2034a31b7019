// Package http implements the HTTP handlers of the enrollment service.
// Handlers parse and validate query parameters, delegate to the service
// layer and render either JSON or an exported file.
//
// # Routes
//
//	GET    /api/v1/years
//	GET    /api/v1/enrollment/{year}?tidy=&cache=&refresh=&format=
//	GET    /api/v1/enrollment?years=2023,2024&tidy=&cache=&format=
//	GET    /api/v1/cache
//	DELETE /api/v1/cache?year=&shape=
//	GET    /health
//	GET    /health/ready
//	GET    /version
//	GET    /metrics
//
// # Errors
//
// Every failure is written as an RFC 7807 problem document by
// errors.ErrorHandler, so an invalid year answers 400, a year the source
// has no rows for answers 404 and an unreachable source answers 502.
package http
