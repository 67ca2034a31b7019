package cache

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idschooldata/internal/config"
	"idschooldata/pkg/contracts/domain"
)

func i64(v int64) *int64 { return &v }
func str(v string) *string { return &v }
func f64(v float64) *float64 { return &v }

func wideTable() *domain.EnrollmentTable {
	return &domain.EnrollmentTable{
		Shape: domain.ShapeWide,
		Wide: []domain.EnrollmentRecord{
			{EndYear: 2024, Type: domain.LevelState, RowTotal: i64(65000),
				Counts: map[domain.Attribute]*int64{domain.AttrMale: i64(33000), domain.AttrFemale: nil}},
			{EndYear: 2024, Type: domain.LevelDistrict, DistrictID: str("001"), DistrictName: str("Boise Independent District"),
				CharterFlag: str("N"), RowTotal: i64(25000),
				Counts: map[domain.Attribute]*int64{domain.AttrMale: i64(12800), domain.AttrFemale: nil}},
			{EndYear: 2024, Type: domain.LevelCampus, DistrictID: str("001"), CampusID: str("0123"),
				CampusName: str("Capital High"), CharterFlag: str("N")},
		},
	}
}

func tidyTable() *domain.EnrollmentTable {
	return &domain.EnrollmentTable{
		Shape: domain.ShapeTidy,
		Tidy: []domain.TidyRecord{
			{EndYear: 2024, Type: domain.LevelState, IsState: true, Subgroup: "total_enrollment",
				GradeLevel: "TOTAL", NStudents: i64(65000), Pct: f64(1)},
			{EndYear: 2024, Type: domain.LevelState, IsState: true, Subgroup: "male",
				GradeLevel: "TOTAL", NStudents: i64(33000), Pct: f64(33000.0 / 65000.0)},
		},
		Warnings: []string{"campus: unrecognized schema"},
	}
}

type fakeObjectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: make(map[string][]byte)}
}

func (c *fakeObjectClient) PutObject(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = append([]byte(nil), data...)
	return nil
}

func (c *fakeObjectClient) GetObject(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (c *fakeObjectClient) ObjectExists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[key]
	return ok, nil
}

func (c *fakeObjectClient) RemoveObject(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

func (c *fakeObjectClient) ListKeys(_ context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for k := range c.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "files"), nil)
	require.NoError(t, err)
	boltStore, err := OpenBoltStore(filepath.Join(dir, "bolt", "enr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"bolt":   boltStore,
		"object": NewObjectStore(newFakeObjectClient(), "enr"),
	}
}

func TestStoreRoundTripIsBitIdentical(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, table := range []*domain.EnrollmentTable{wideTable(), tidyTable()} {
				want, err := Encode(table)
				require.NoError(t, err)

				require.NoError(t, store.Write(ctx, table, 2024, table.Shape))
				got, err := store.Read(ctx, 2024, table.Shape)
				require.NoError(t, err)

				assert.Equal(t, table, got)
				gotBytes, err := Encode(got)
				require.NoError(t, err)
				assert.Equal(t, string(want), string(gotBytes))
			}
		})
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Exists(ctx, 2024, domain.ShapeWide)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = store.Read(ctx, 2024, domain.ShapeWide)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Write(ctx, wideTable(), 2024, domain.ShapeWide))
			require.NoError(t, store.Write(ctx, tidyTable(), 2024, domain.ShapeTidy))
			require.NoError(t, store.Write(ctx, wideTable(), 2003, domain.ShapeWide))

			ok, err = store.Exists(ctx, 2024, domain.ShapeWide)
			require.NoError(t, err)
			assert.True(t, ok)

			// shapes are independent entries
			ok, err = store.Exists(ctx, 2003, domain.ShapeTidy)
			require.NoError(t, err)
			assert.False(t, ok)

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Key{
				{EndYear: 2003, Shape: domain.ShapeWide},
				{EndYear: 2024, Shape: domain.ShapeTidy},
				{EndYear: 2024, Shape: domain.ShapeWide},
			}, keys)

			// overwrite replaces wholesale
			replacement := &domain.EnrollmentTable{Shape: domain.ShapeWide,
				Wide: []domain.EnrollmentRecord{{EndYear: 2024, Type: domain.LevelState}}}
			require.NoError(t, store.Write(ctx, replacement, 2024, domain.ShapeWide))
			got, err := store.Read(ctx, 2024, domain.ShapeWide)
			require.NoError(t, err)
			assert.Equal(t, replacement, got)

			require.NoError(t, store.Delete(ctx, 2024, domain.ShapeWide))
			require.NoError(t, store.Delete(ctx, 2024, domain.ShapeWide))
			ok, err = store.Exists(ctx, 2024, domain.ShapeWide)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Write(ctx, wideTable(), 2024, domain.Shape("long")))
			assert.Error(t, store.Write(ctx, wideTable(), 0, domain.ShapeWide))
			assert.Error(t, store.Write(ctx, nil, 2024, domain.ShapeWide))
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	year := 2024
	tidy := domain.ShapeTidy

	tests := []struct {
		name    string
		filter  Filter
		removed []Key
		left    int
	}{
		{"everything", Filter{}, []Key{{2023, domain.ShapeWide}, {2024, domain.ShapeTidy}, {2024, domain.ShapeWide}}, 0},
		{"one year", Filter{EndYear: &year}, []Key{{2024, domain.ShapeTidy}, {2024, domain.ShapeWide}}, 1},
		{"one shape", Filter{Shape: &tidy}, []Key{{2024, domain.ShapeTidy}}, 2},
		{"year and shape", Filter{EndYear: &year, Shape: &tidy}, []Key{{2024, domain.ShapeTidy}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			require.NoError(t, store.Write(ctx, wideTable(), 2023, domain.ShapeWide))
			require.NoError(t, store.Write(ctx, wideTable(), 2024, domain.ShapeWide))
			require.NoError(t, store.Write(ctx, tidyTable(), 2024, domain.ShapeTidy))

			removed, err := Clear(ctx, store, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.removed, removed)

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, tt.left)
		})
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	table := wideTable()
	require.NoError(t, store.Write(ctx, table, 2024, domain.ShapeWide))

	table.Wide[0].RowTotal = i64(1)
	got, err := store.Read(ctx, 2024, domain.ShapeWide)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), *got.Wide[0].RowTotal)

	got.Wide[0].RowTotal = i64(2)
	again, err := store.Read(ctx, 2024, domain.ShapeWide)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), *again.Wide[0].RowTotal)
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, tidyTable(), 2019, domain.ShapeTidy))
	assert.Equal(t, filepath.Join(dir, "enr_tidy_2019.json"), store.Path(2019, domain.ShapeTidy))
	assert.True(t, config.FileExists(store.Path(2019, domain.ShapeTidy)))

	// stray files and leftover temp files are ignored
	matches, err := filepath.Glob(filepath.Join(dir, ".enr-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStoreCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Write(ctx, wideTable(), 2024, domain.ShapeWide), context.Canceled)
}

func TestObjectStoreKeys(t *testing.T) {
	client := newFakeObjectClient()
	store := NewObjectStore(client, "/enr/")
	assert.Equal(t, "enr/tidy/2024.json", store.ObjectKey(2024, domain.ShapeTidy))

	ctx := context.Background()
	require.NoError(t, client.PutObject(ctx, "enr/notes.txt", []byte("x")))
	require.NoError(t, client.PutObject(ctx, "other/wide/2020.json", []byte("{}")))
	require.NoError(t, store.Write(ctx, wideTable(), 2021, domain.ShapeWide))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Key{{EndYear: 2021, Shape: domain.ShapeWide}}, keys)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	for backend, want := range map[string]any{
		config.CacheBackendFile:   &FileStore{},
		config.CacheBackendMemory: &MemoryStore{},
		config.CacheBackendBolt:   &BoltStore{},
	} {
		t.Run(backend, func(t *testing.T) {
			cfg.Cache.Backend = backend
			store, err := New(ctx, cfg.Cache, paths, nil)
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, want, store)
		})
	}

	cfg.Cache.Backend = "redis"
	_, err = New(ctx, cfg.Cache, paths, nil)
	assert.Error(t, err)
}
