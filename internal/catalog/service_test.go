package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/constants"
	"fipeline/internal/logger"
	pkgerrors "fipeline/pkg/errors"
)

type memoryCache struct {
	entries map[string][]byte
	getErr  error
	puts    int
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	data, ok := m.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	m.puts++
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
		m.deletes = append(m.deletes, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

type stubBrandRepo struct {
	brands []Brand
	calls  int
	err    error
}

func (s *stubBrandRepo) Upsert(ctx context.Context, brand *Brand) error {
	s.brands = append(s.brands, *brand)
	return nil
}

func (s *stubBrandRepo) FindByCode(ctx context.Context, code string) (*Brand, error) {
	for i := range s.brands {
		if s.brands[i].Code == code {
			return &s.brands[i], nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (s *stubBrandRepo) FindByName(ctx context.Context, name string) (*Brand, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.brands {
		if s.brands[i].Name == name {
			return &s.brands[i], nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (s *stubBrandRepo) FindAllOrderedByName(ctx context.Context) ([]Brand, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.brands, nil
}

type stubVehicleRepo struct {
	vehicles map[string][]Vehicle
	byID     map[int64]*Vehicle
	calls    int
	updates  int
}

func newStubVehicleRepo() *stubVehicleRepo {
	return &stubVehicleRepo{
		vehicles: make(map[string][]Vehicle),
		byID:     make(map[int64]*Vehicle),
	}
}

func (s *stubVehicleRepo) Save(ctx context.Context, vehicle *Vehicle) error { return nil }

func (s *stubVehicleRepo) Update(ctx context.Context, vehicle *Vehicle) error {
	s.updates++
	return nil
}

func (s *stubVehicleRepo) ExistsByCodeAndBrandCode(ctx context.Context, code, brandCode string) (bool, error) {
	return false, nil
}

func (s *stubVehicleRepo) FindByID(ctx context.Context, id int64) (*Vehicle, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	clone := *v
	return &clone, nil
}

func (s *stubVehicleRepo) FindByBrandCode(ctx context.Context, brandCode string) ([]Vehicle, error) {
	s.calls++
	return s.vehicles[brandCode], nil
}

func newTestService(brands *stubBrandRepo, vehicles *stubVehicleRepo, cache *memoryCache) *Service {
	return NewService(brands, vehicles, cache, time.Hour, 30*time.Minute, logger.NopLogger())
}

func TestListBrandsCachesAfterFirstRead(t *testing.T) {
	brands := &stubBrandRepo{brands: []Brand{NewBrand("1", "Acura"), NewBrand("2", "Ford")}}
	cache := newMemoryCache()
	svc := newTestService(brands, newStubVehicleRepo(), cache)

	first, err := svc.ListBrands(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, brands.calls)

	second, err := svc.ListBrands(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, brands.calls, "second read must be served from cache")
}

func TestListBrandsFallsBackOnCacheError(t *testing.T) {
	brands := &stubBrandRepo{brands: []Brand{NewBrand("1", "Acura")}}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	svc := newTestService(brands, newStubVehicleRepo(), cache)

	result, err := svc.ListBrands(context.Background())
	require.NoError(t, err, "cache outage must not take reads down")
	assert.Len(t, result, 1)
	assert.Equal(t, 1, brands.calls)
}

func TestListVehiclesByBrandName(t *testing.T) {
	brands := &stubBrandRepo{brands: []Brand{NewBrand("21", "Ford")}}
	vehicles := newStubVehicleRepo()
	vehicles.vehicles["21"] = []Vehicle{NewVehicle("V1", "21", "Ka 1.0")}
	cache := newMemoryCache()
	svc := newTestService(brands, vehicles, cache)

	result, err := svc.ListVehiclesByBrandName(context.Background(), "Ford")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Ka 1.0", result[0].Model)

	// Cached under the normalized name.
	assert.Contains(t, cache.entries, constants.CacheKeyPrefixVehicles+"ford")

	_, err = svc.ListVehiclesByBrandName(context.Background(), "Ford")
	require.NoError(t, err)
	assert.Equal(t, 1, vehicles.calls, "second read served from cache")
}

func TestListVehiclesUnknownBrand(t *testing.T) {
	svc := newTestService(&stubBrandRepo{}, newStubVehicleRepo(), newMemoryCache())

	_, err := svc.ListVehiclesByBrandName(context.Background(), "Nonexistent")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestListVehiclesRejectsEmptyName(t *testing.T) {
	svc := newTestService(&stubBrandRepo{}, newStubVehicleRepo(), newMemoryCache())

	_, err := svc.ListVehiclesByBrandName(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpdateVehicleInvalidatesListings(t *testing.T) {
	vehicles := newStubVehicleRepo()
	existing := NewVehicle("V1", "21", "Ka 1.0")
	existing.ID = 7
	vehicles.byID[7] = &existing

	cache := newMemoryCache()
	cache.entries[constants.CacheKeyPrefixVehicles+"ford"] = []byte(`[]`)
	svc := newTestService(&stubBrandRepo{}, vehicles, cache)

	updated, err := svc.UpdateVehicle(context.Background(), 7, "Ka 1.5", "facelift")
	require.NoError(t, err)
	assert.Equal(t, "Ka 1.5", updated.Model)
	assert.Equal(t, "facelift", updated.Observations)
	assert.Equal(t, 1, vehicles.updates)
	assert.Contains(t, cache.deletes, constants.CacheKeyPrefixVehicles+"*")
	assert.Empty(t, cache.entries, "stale listings must be dropped")
}

func TestUpdateVehicleKeepsModelWhenBlank(t *testing.T) {
	vehicles := newStubVehicleRepo()
	existing := NewVehicle("V1", "21", "Ka 1.0")
	existing.ID = 3
	vehicles.byID[3] = &existing

	svc := newTestService(&stubBrandRepo{}, vehicles, newMemoryCache())

	updated, err := svc.UpdateVehicle(context.Background(), 3, "", "notes only")
	require.NoError(t, err)
	assert.Equal(t, "Ka 1.0", updated.Model, "blank model keeps the current one")
	assert.Equal(t, "notes only", updated.Observations)
}

func TestUpdateVehicleNotFound(t *testing.T) {
	svc := newTestService(&stubBrandRepo{}, newStubVehicleRepo(), newMemoryCache())

	_, err := svc.UpdateVehicle(context.Background(), 999, "Model", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
