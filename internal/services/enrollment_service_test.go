package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idschooldata/internal/cache"
	apperrors "idschooldata/internal/errors"
	"idschooldata/internal/shared/testutil"
	"idschooldata/pkg/contracts/domain"
)

type stubFetcher struct {
	mu       sync.Mutex
	calls    map[int]int
	refresh  []bool
	data     func(endYear int) *domain.RawData
	failYear int
	err      error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: make(map[int]int), data: testutil.RawData}
}

func (f *stubFetcher) FetchRaw(_ context.Context, endYear int, refresh bool) (*domain.RawData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endYear]++
	f.refresh = append(f.refresh, refresh)
	if f.err != nil && (f.failYear == 0 || f.failYear == endYear) {
		return nil, f.err
	}
	return f.data(endYear), nil
}

func (f *stubFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func newTestService(t *testing.T, fetcher RawFetcher, store cache.Store) (*EnrollmentService, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	svc := NewEnrollmentService(fetcher, store, EnrollmentServiceOptions{
		Years: domain.YearRange{Min: 1996, Max: 2026},
	}, logger)
	return svc, handler
}

func TestFetchEnrRejectsOutOfRangeYear(t *testing.T) {
	tests := []struct {
		name    string
		endYear int
	}{
		{"before range", 1995},
		{"after range", 2027},
		{"zero", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			store := cache.NewMemoryStore()
			svc, _ := newTestService(t, fetcher, store)

			table, err := svc.FetchEnr(context.Background(), tt.endYear, DefaultFetchOptions())
			require.Error(t, err)
			assert.Nil(t, table)
			assert.ErrorIs(t, err, ErrInvalidYear)
			assert.Equal(t, apperrors.ErrTypeInvalidYear, apperrors.TypeOf(err))
			assert.Zero(t, fetcher.total(), "no I/O before validation")

			keys, err := store.Keys(context.Background())
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestFetchEnrWide(t *testing.T) {
	svc, _ := newTestService(t, newStubFetcher(), cache.NewMemoryStore())

	table, err := svc.FetchEnr(context.Background(), 2024, DefaultFetchOptions())
	require.NoError(t, err)

	assert.Equal(t, domain.ShapeWide, table.Shape)
	assert.Nil(t, table.Tidy)
	assert.Nil(t, table.Warnings)
	require.Len(t, table.Wide, 7)

	state := table.Wide[0]
	assert.Equal(t, domain.LevelState, state.Type)
	require.NotNil(t, state.RowTotal)
	assert.Equal(t, int64(65000), *state.RowTotal)

	levels := make([]domain.ReportingLevel, 0, len(table.Wide))
	for _, r := range table.Wide {
		assert.Equal(t, 2024, r.EndYear)
		levels = append(levels, r.Type)
	}
	assert.Equal(t, []domain.ReportingLevel{
		domain.LevelState,
		domain.LevelDistrict, domain.LevelDistrict, domain.LevelDistrict,
		domain.LevelCampus, domain.LevelCampus, domain.LevelCampus,
	}, levels)

	for _, r := range table.Wide {
		if r.DistrictName != nil {
			assert.NotEqual(t, "STATE OF IDAHO - TOTALS", *r.DistrictName)
		}
	}
}

func TestFetchEnrTidy(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, _ := newTestService(t, newStubFetcher(), store)

	table, err := svc.FetchEnr(context.Background(), 2024, FetchOptions{Tidy: true, UseCache: true})
	require.NoError(t, err)

	assert.Equal(t, domain.ShapeTidy, table.Shape)
	assert.Nil(t, table.Wide)
	require.NotEmpty(t, table.Tidy)
	assert.True(t, table.Tidy[0].IsState)

	exists, err := store.Exists(context.Background(), 2024, domain.ShapeTidy)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(context.Background(), 2024, domain.ShapeWide)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFetchEnrCaching(t *testing.T) {
	tests := []struct {
		name        string
		second      FetchOptions
		wantFetches int
		wantRefresh bool
	}{
		{"cache hit", FetchOptions{UseCache: true}, 1, false},
		{"force refresh", FetchOptions{UseCache: true, ForceRefresh: true}, 2, true},
		{"cache disabled", FetchOptions{}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())
			ctx := context.Background()

			first, err := svc.FetchEnr(ctx, 2024, DefaultFetchOptions())
			require.NoError(t, err)

			second, err := svc.FetchEnr(ctx, 2024, tt.second)
			require.NoError(t, err)

			assert.Equal(t, tt.wantFetches, fetcher.total())
			assert.Equal(t, tt.wantRefresh, fetcher.refresh[len(fetcher.refresh)-1])
			assert.Equal(t, first, second)
		})
	}
}

func TestFetchEnrWithoutCacheLeavesStoreUntouched(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, _ := newTestService(t, newStubFetcher(), store)

	_, err := svc.FetchEnr(context.Background(), 2024, FetchOptions{})
	require.NoError(t, err)

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFetchEnrReturnsCachedEntryUnchanged(t *testing.T) {
	store := cache.NewMemoryStore()
	total := int64(7)
	cached := &domain.EnrollmentTable{
		Shape: domain.ShapeWide,
		Wide:  []domain.EnrollmentRecord{{EndYear: 2010, Type: domain.LevelState, RowTotal: &total}},
	}
	require.NoError(t, store.Write(context.Background(), cached, 2010, domain.ShapeWide))

	fetcher := newStubFetcher()
	svc, _ := newTestService(t, fetcher, store)

	table, err := svc.FetchEnr(context.Background(), 2010, DefaultFetchOptions())
	require.NoError(t, err)
	assert.Equal(t, cached, table)
	assert.Zero(t, fetcher.total())
}

func TestFetchEnrNoData(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.data = func(int) *domain.RawData { return &domain.RawData{} }
	store := cache.NewMemoryStore()
	svc, _ := newTestService(t, fetcher, store)

	table, err := svc.FetchEnr(context.Background(), 2024, DefaultFetchOptions())
	require.Error(t, err)
	assert.Nil(t, table)
	assert.ErrorIs(t, err, ErrNoDataForYear)
	assert.Equal(t, apperrors.ErrTypeNoData, apperrors.TypeOf(err))

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys, "failed years are not cached")
}

func TestFetchEnrUnrecognizedDistrictLayout(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.data = func(endYear int) *domain.RawData {
		raw := testutil.RawData(endYear)
		raw.District = testutil.RawTable("district.xlsx",
			[]string{"Region", "Notes"},
			[][]string{{"North", "n/a"}, {"South", "n/a"}})
		return raw
	}
	svc, logs := newTestService(t, fetcher, cache.NewMemoryStore())

	table, err := svc.FetchEnr(context.Background(), 2024, DefaultFetchOptions())
	require.NoError(t, err)

	require.Len(t, table.Warnings, 1)
	assert.Contains(t, table.Warnings[0], "district")
	require.Len(t, table.Wide, 4)
	assert.Equal(t, domain.LevelState, table.Wide[0].Type)
	assert.Nil(t, table.Wide[0].RowTotal)
	assert.True(t, logs.ContainsMessage("reporting level skipped"))
}

func TestFetchEnrSourceFailure(t *testing.T) {
	upstream := errors.New("connection refused")
	fetcher := newStubFetcher()
	fetcher.err = upstream
	svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())

	_, err := svc.FetchEnr(context.Background(), 2024, DefaultFetchOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, apperrors.ErrTypeSource, apperrors.TypeOf(err))
}

func TestFetchEnrCancelledContext(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.err = context.Canceled
	svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FetchEnr(ctx, 2024, FetchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchEnrCollapsesConcurrentCallers(t *testing.T) {
	fetcher := newStubFetcher()
	svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())

	const callers = 8
	var wg sync.WaitGroup
	tables := make([]*domain.EnrollmentTable, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], errs[i] = svc.FetchEnr(context.Background(), 2024, DefaultFetchOptions())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tables[0], tables[i])
	}
	assert.Equal(t, 1, fetcher.total())
}

// blockingStore holds every Read until release is closed
type blockingStore struct {
	cache.Store
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Store:   cache.NewMemoryStore(),
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingStore) Read(ctx context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Store.Read(ctx, endYear, shape)
}

type fetchResult struct {
	table *domain.EnrollmentTable
	err   error
}

func fetchAsync(ctx context.Context, svc *EnrollmentService, opts FetchOptions) <-chan fetchResult {
	out := make(chan fetchResult, 1)
	go func() {
		table, err := svc.FetchEnr(ctx, 2024, opts)
		out <- fetchResult{table, err}
	}()
	return out
}

func TestFetchEnrForceRefreshDoesNotJoinCachedRun(t *testing.T) {
	fetcher := newStubFetcher()
	store := newBlockingStore()
	svc, _ := newTestService(t, fetcher, store)

	stale := &domain.EnrollmentTable{
		Shape: domain.ShapeWide,
		Wide:  []domain.EnrollmentRecord{{EndYear: 2024, Type: domain.LevelState}},
	}
	require.NoError(t, store.Write(context.Background(), stale, 2024, domain.ShapeWide))

	cached := fetchAsync(context.Background(), svc, DefaultFetchOptions())
	<-store.entered

	forced, err := svc.FetchEnr(context.Background(), 2024, FetchOptions{UseCache: true, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.total())
	assert.Equal(t, []bool{true}, fetcher.refresh)
	assert.Len(t, forced.Wide, 7)

	close(store.release)
	res := <-cached
	require.NoError(t, res.err)

	got, err := store.Store.Read(context.Background(), 2024, domain.ShapeWide)
	require.NoError(t, err)
	assert.Len(t, got.Wide, 7)
}

func TestFetchEnrUncachedDoesNotJoinCachedRun(t *testing.T) {
	fetcher := newStubFetcher()
	store := newBlockingStore()
	svc, _ := newTestService(t, fetcher, store)

	cached := fetchAsync(context.Background(), svc, DefaultFetchOptions())
	<-store.entered

	table, err := svc.FetchEnr(context.Background(), 2024, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, table.Wide, 7)
	assert.Equal(t, 1, fetcher.total())

	close(store.release)
	res := <-cached
	require.NoError(t, res.err)
}

func TestFetchEnrCallerCancellationDoesNotFailSharedRun(t *testing.T) {
	fetcher := newStubFetcher()
	store := newBlockingStore()
	svc, _ := newTestService(t, fetcher, store)

	ctx, cancel := context.WithCancel(context.Background())
	first := fetchAsync(ctx, svc, DefaultFetchOptions())
	<-store.entered

	cancel()
	select {
	case res := <-first:
		assert.ErrorIs(t, res.err, context.Canceled)
		assert.Nil(t, res.table)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller still waiting on the shared run")
	}

	second := fetchAsync(context.Background(), svc, DefaultFetchOptions())
	close(store.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.table.Wide, 7)
	assert.Equal(t, 1, fetcher.total())
}

func TestFetchEnrMulti(t *testing.T) {
	fetcher := newStubFetcher()
	svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())

	table, err := svc.FetchEnrMulti(context.Background(), []int{2023, 2024}, DefaultFetchOptions())
	require.NoError(t, err)

	assert.Equal(t, domain.ShapeWide, table.Shape)
	require.Len(t, table.Wide, 14)
	assert.Equal(t, 2023, table.Wide[0].EndYear)
	assert.Equal(t, domain.LevelState, table.Wide[0].Type)
	assert.Equal(t, 2024, table.Wide[7].EndYear)
	assert.Equal(t, domain.LevelState, table.Wide[7].Type)
}

func TestFetchEnrMultiFailures(t *testing.T) {
	tests := []struct {
		name        string
		years       []int
		failYear    int
		wantErr     error
		wantType    apperrors.ErrorType
		wantFetches int
	}{
		{"no years", nil, 0, ErrNoYearsRequested, apperrors.ErrTypeValidation, 0},
		{"invalid year checked first", []int{2023, 1990}, 0, ErrInvalidYear, apperrors.ErrTypeInvalidYear, 0},
		{"first failure stops", []int{2022, 2023, 2024}, 2023, nil, apperrors.ErrTypeSource, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			if tt.failYear != 0 {
				fetcher.failYear = tt.failYear
				fetcher.err = errors.New("boom")
			}
			svc, _ := newTestService(t, fetcher, cache.NewMemoryStore())

			table, err := svc.FetchEnrMulti(context.Background(), tt.years, DefaultFetchOptions())
			require.Error(t, err)
			assert.Nil(t, table)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.failYear != 0 {
				assert.Contains(t, err.Error(), fmt.Sprintf("end year %d", tt.failYear))
			}
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			assert.Equal(t, tt.wantFetches, fetcher.total())
		})
	}
}

func TestAvailableYears(t *testing.T) {
	svc, _ := newTestService(t, newStubFetcher(), nil)
	assert.Equal(t, domain.YearRange{Min: 1996, Max: 2026}, svc.AvailableYears())
}

func TestCacheStatusAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newStubFetcher(), cache.NewMemoryStore())

	for _, y := range []int{2023, 2024} {
		_, err := svc.FetchEnr(ctx, y, DefaultFetchOptions())
		require.NoError(t, err)
		_, err = svc.FetchEnr(ctx, y, FetchOptions{Tidy: true, UseCache: true})
		require.NoError(t, err)
	}

	keys, err := svc.CacheStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{
		{EndYear: 2023, Shape: domain.ShapeTidy},
		{EndYear: 2023, Shape: domain.ShapeWide},
		{EndYear: 2024, Shape: domain.ShapeTidy},
		{EndYear: 2024, Shape: domain.ShapeWide},
	}, keys)

	tidy := domain.ShapeTidy
	removed, err := svc.ClearCache(ctx, nil, &tidy)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	year := 2023
	removed, err = svc.ClearCache(ctx, &year, nil)
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{{EndYear: 2023, Shape: domain.ShapeWide}}, removed)

	keys, err = svc.CacheStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{{EndYear: 2024, Shape: domain.ShapeWide}}, keys)
}

func TestClearCacheRejectsUnknownShape(t *testing.T) {
	svc, _ := newTestService(t, newStubFetcher(), cache.NewMemoryStore())

	bad := domain.Shape("long")
	_, err := svc.ClearCache(context.Background(), nil, &bad)
	assert.ErrorIs(t, err, ErrInvalidShape)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func TestNewEnrollmentServiceNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		svc := NewEnrollmentService(newStubFetcher(), nil, EnrollmentServiceOptions{}, nil)
		assert.NotNil(t, svc)
	})
}
