package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/catalog"
	"fipeline/internal/logger"
	pkgerrors "fipeline/pkg/errors"
)

type nullCache struct{}

func (nullCache) Get(ctx context.Context, key string, dest interface{}) error {
	return catalog.ErrCacheMiss
}
func (nullCache) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (nullCache) Delete(ctx context.Context, keys ...string) error          { return nil }
func (nullCache) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

type stubBrandRepo struct {
	brands []catalog.Brand
}

func (s *stubBrandRepo) Upsert(ctx context.Context, brand *catalog.Brand) error { return nil }

func (s *stubBrandRepo) FindByCode(ctx context.Context, code string) (*catalog.Brand, error) {
	return nil, pkgerrors.ErrNotFound
}

func (s *stubBrandRepo) FindByName(ctx context.Context, name string) (*catalog.Brand, error) {
	for i := range s.brands {
		if strings.EqualFold(s.brands[i].Name, name) {
			return &s.brands[i], nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (s *stubBrandRepo) FindAllOrderedByName(ctx context.Context) ([]catalog.Brand, error) {
	return s.brands, nil
}

type stubVehicleRepo struct {
	vehicles map[string][]catalog.Vehicle
	byID     map[int64]catalog.Vehicle
}

func (s *stubVehicleRepo) Save(ctx context.Context, vehicle *catalog.Vehicle) error { return nil }
func (s *stubVehicleRepo) Update(ctx context.Context, vehicle *catalog.Vehicle) error {
	return nil
}
func (s *stubVehicleRepo) ExistsByCodeAndBrandCode(ctx context.Context, code, brandCode string) (bool, error) {
	return false, nil
}
func (s *stubVehicleRepo) FindByID(ctx context.Context, id int64) (*catalog.Vehicle, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return &v, nil
}
func (s *stubVehicleRepo) FindByBrandCode(ctx context.Context, brandCode string) ([]catalog.Vehicle, error) {
	return s.vehicles[brandCode], nil
}

func newTestRouter(brands *stubBrandRepo, vehicles *stubVehicleRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := catalog.NewService(brands, vehicles, nullCache{}, time.Hour, time.Hour, logger.NopLogger())
	handler := NewHandler(svc, logger.NopLogger())
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func TestListBrandsEndpoint(t *testing.T) {
	brands := &stubBrandRepo{brands: []catalog.Brand{
		catalog.NewBrand("1", "Acura"),
		catalog.NewBrand("21", "Ford"),
	}}
	router := newTestRouter(brands, &stubVehicleRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/brands", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Acura")
	assert.Contains(t, w.Body.String(), "Ford")
}

func TestListVehiclesEndpoint(t *testing.T) {
	brands := &stubBrandRepo{brands: []catalog.Brand{catalog.NewBrand("21", "Ford")}}
	vehicles := &stubVehicleRepo{vehicles: map[string][]catalog.Vehicle{
		"21": {catalog.NewVehicle("V1", "21", "Ka 1.0")},
	}}
	router := newTestRouter(brands, vehicles)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/brands/Ford/vehicles", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ka 1.0")
}

func TestListVehiclesUnknownBrandReturns404(t *testing.T) {
	router := newTestRouter(&stubBrandRepo{}, &stubVehicleRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/brands/Nonexistent/vehicles", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestUpdateVehicleEndpoint(t *testing.T) {
	existing := catalog.NewVehicle("V1", "21", "Ka 1.0")
	existing.ID = 7
	vehicles := &stubVehicleRepo{byID: map[int64]catalog.Vehicle{7: existing}}
	router := newTestRouter(&stubBrandRepo{}, vehicles)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"model":"Ka 1.5","observations":"facelift"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/vehicles/7", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ka 1.5")
}

func TestUpdateVehicleRejectsNonNumericID(t *testing.T) {
	router := newTestRouter(&stubBrandRepo{}, &stubVehicleRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/vehicles/abc", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateVehicleNotFound(t *testing.T) {
	router := newTestRouter(&stubBrandRepo{}, &stubVehicleRepo{})

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"model":"Anything"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/vehicles/999", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
