// Package api contains the request contracts of the enrollment HTTP API.
// Version v1 represents the current stable API version.
package api

import (
	"idschooldata/pkg/contracts/domain"
)

// EnrollmentRequest selects one end year.
type EnrollmentRequest struct {
	EndYear int  `json:"end_year" param:"year" validate:"required,min=1900,max=2200"`
	Tidy    bool `json:"tidy" query:"tidy"`
	// UseCache defaults to true when the query parameter is absent
	UseCache bool `json:"cache" query:"cache"`
	Refresh  bool `json:"refresh" query:"refresh"`
	// Format selects the response body: json (default), csv or parquet
	Format string `json:"format" query:"format" validate:"omitempty,oneof=json csv parquet"`
}

// EnrollmentMultiRequest selects several end years, fetched in order.
type EnrollmentMultiRequest struct {
	EndYears []int  `json:"end_years" query:"years" validate:"required,min=1,max=50,dive,min=1900,max=2200"`
	Tidy     bool   `json:"tidy" query:"tidy"`
	UseCache bool   `json:"cache" query:"cache"`
	Format   string `json:"format" query:"format" validate:"omitempty,oneof=json csv parquet"`
}

// CacheClearRequest removes cache entries. Nil fields match every value.
type CacheClearRequest struct {
	EndYear *int          `json:"end_year,omitempty" query:"year" validate:"omitempty,min=1900,max=2200"`
	Shape   *domain.Shape `json:"shape,omitempty" query:"shape" validate:"omitempty,oneof=wide tidy"`
}

// EnrollmentResponse wraps a table with the years it covers.
type EnrollmentResponse struct {
	EndYears []int                  `json:"end_years"`
	Table    *domain.EnrollmentTable `json:"table"`
	RowCount int                    `json:"row_count"`
}

// YearsResponse is the body of the available-years endpoint.
type YearsResponse struct {
	MinYear int   `json:"min_year"`
	MaxYear int   `json:"max_year"`
	Years   []int `json:"years"`
}

// CacheEntry describes one cached table.
type CacheEntry struct {
	EndYear int          `json:"end_year"`
	Shape   domain.Shape `json:"shape"`
}

// CacheStatusResponse lists the cached tables.
type CacheStatusResponse struct {
	Backend string       `json:"backend"`
	Entries []CacheEntry `json:"entries"`
}

// CacheClearResponse reports how many entries were removed.
type CacheClearResponse struct {
	Removed int `json:"removed"`
}
