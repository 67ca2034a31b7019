package http

import (
	"context"

	"idschooldata/internal/cache"
	"idschooldata/internal/services"
	"idschooldata/pkg/contracts/domain"
)

// EnrollmentServiceInterface defines the enrollment operations the API
// exposes
type EnrollmentServiceInterface interface {
	FetchEnr(ctx context.Context, endYear int, opts services.FetchOptions) (*domain.EnrollmentTable, error)
	FetchEnrMulti(ctx context.Context, years []int, opts services.FetchOptions) (*domain.EnrollmentTable, error)
	AvailableYears() domain.YearRange
	CacheStatus(ctx context.Context) ([]cache.Key, error)
	ClearCache(ctx context.Context, endYear *int, shape *domain.Shape) ([]cache.Key, error)
}
