package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"fipeline/internal/constants"
	"fipeline/internal/logger"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/metrics"
)

// Service serves catalog reads through a cache-aside path and handles vehicle
// corrections. Cache failures other than a miss degrade to the database.
type Service struct {
	brands      BrandRepository
	vehicles    VehicleRepository
	cache       CacheStore
	brandsTTL   time.Duration
	vehiclesTTL time.Duration
	logger      logger.Logger
}

func NewService(brands BrandRepository, vehicles VehicleRepository, cache CacheStore, brandsTTL, vehiclesTTL time.Duration, log logger.Logger) *Service {
	if brandsTTL <= 0 {
		brandsTTL = constants.DefaultBrandsCacheTTL
	}
	if vehiclesTTL <= 0 {
		vehiclesTTL = constants.DefaultVehiclesCacheTTL
	}
	return &Service{
		brands:      brands,
		vehicles:    vehicles,
		cache:       cache,
		brandsTTL:   brandsTTL,
		vehiclesTTL: vehiclesTTL,
		logger:      log,
	}
}

func (s *Service) ListBrands(ctx context.Context) ([]Brand, error) {
	var cached []Brand
	err := s.cache.Get(ctx, constants.CacheKeyBrands, &cached)
	if err == nil {
		metrics.CacheRequestsTotal.WithLabelValues("brands", "hit").Inc()
		return cached, nil
	}
	s.recordCacheMiss(ctx, "brands", constants.CacheKeyBrands, err)

	brands, err := s.brands.FindAllOrderedByName(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, constants.CacheKeyBrands, brands, s.brandsTTL); err != nil {
		s.logger.WarnwCtx(ctx, "failed to cache brands", "error", err)
	}

	return brands, nil
}

func (s *Service) ListVehiclesByBrandName(ctx context.Context, brandName string) ([]Vehicle, error) {
	brandName = strings.TrimSpace(brandName)
	if brandName == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "brand name must not be empty")
	}

	key := constants.CacheKeyPrefixVehicles + strings.ToLower(brandName)

	var cached []Vehicle
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		metrics.CacheRequestsTotal.WithLabelValues("vehicles", "hit").Inc()
		return cached, nil
	}
	s.recordCacheMiss(ctx, "vehicles", key, err)

	brand, err := s.brands.FindByName(ctx, brandName)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.vehicles.FindByBrandCode(ctx, brand.Code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, key, vehicles, s.vehiclesTTL); err != nil {
		s.logger.WarnwCtx(ctx, "failed to cache vehicles", "brand", brandName, "error", err)
	}

	return vehicles, nil
}

func (s *Service) ListVehiclesByBrandCode(ctx context.Context, brandCode string) ([]Vehicle, error) {
	brandCode = strings.TrimSpace(brandCode)
	if brandCode == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "brand code must not be empty")
	}

	if _, err := s.brands.FindByCode(ctx, brandCode); err != nil {
		return nil, err
	}

	return s.vehicles.FindByBrandCode(ctx, brandCode)
}

// UpdateVehicle applies a model/observations correction and drops every cached
// vehicle listing, since the vehicle may appear under any brand key.
func (s *Service) UpdateVehicle(ctx context.Context, id int64, model, observations string) (*Vehicle, error) {
	vehicle, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	vehicle.Update(model, observations)
	if !vehicle.IsValid() {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "vehicle model must not be empty")
	}

	if err := s.vehicles.Update(ctx, vehicle); err != nil {
		return nil, err
	}

	if err := s.cache.DeleteByPattern(ctx, constants.CacheKeyPrefixVehicles+"*"); err != nil {
		s.logger.WarnwCtx(ctx, "failed to invalidate vehicle cache", "error", err)
	}

	return vehicle, nil
}

func (s *Service) recordCacheMiss(ctx context.Context, resource, key string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		metrics.CacheRequestsTotal.WithLabelValues(resource, "miss").Inc()
		return
	}
	metrics.CacheRequestsTotal.WithLabelValues(resource, "error").Inc()
	s.logger.WarnwCtx(ctx, "cache lookup failed, falling back to database", "key", key, "error", err)
}
