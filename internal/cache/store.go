package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"idschooldata/pkg/contracts/domain"
)

// ErrNotFound is returned by Read for a key with no entry
var ErrNotFound = errors.New("cache entry not found")

// Key identifies one cache entry
type Key struct {
	EndYear int          `json:"end_year"`
	Shape   domain.Shape `json:"shape"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Shape, k.EndYear)
}

// Store persists enrollment tables keyed by end year and shape.
//
// Write replaces any existing entry wholesale and is atomic: a concurrent
// or later Read sees either the old entry or the new one. Entries are never
// evicted.
type Store interface {
	Exists(ctx context.Context, endYear int, shape domain.Shape) (bool, error)
	Read(ctx context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error)
	Write(ctx context.Context, table *domain.EnrollmentTable, endYear int, shape domain.Shape) error
	Delete(ctx context.Context, endYear int, shape domain.Shape) error
	Keys(ctx context.Context) ([]Key, error)
	Close() error
}

// Filter selects keys for Clear. Nil fields match everything.
type Filter struct {
	EndYear *int
	Shape   *domain.Shape
}

// Match reports whether k passes the filter
func (f Filter) Match(k Key) bool {
	if f.EndYear != nil && *f.EndYear != k.EndYear {
		return false
	}
	if f.Shape != nil && *f.Shape != k.Shape {
		return false
	}
	return true
}

// Clear deletes every entry matching f and returns the removed keys
func Clear(ctx context.Context, s Store, f Filter) ([]Key, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}

	var removed []Key
	for _, k := range keys {
		if !f.Match(k) {
			continue
		}
		if err := s.Delete(ctx, k.EndYear, k.Shape); err != nil {
			return removed, fmt.Errorf("delete %s: %w", k, err)
		}
		removed = append(removed, k)
	}
	return removed, nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EndYear != keys[j].EndYear {
			return keys[i].EndYear < keys[j].EndYear
		}
		return keys[i].Shape < keys[j].Shape
	})
}

func checkKey(endYear int, shape domain.Shape) error {
	if !shape.Valid() {
		return fmt.Errorf("invalid shape %q", shape)
	}
	if endYear <= 0 {
		return fmt.Errorf("invalid end year %d", endYear)
	}
	return nil
}
