package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/catalog"
	pkgerrors "fipeline/pkg/errors"
)

func TestBrandRepositoryUpsert(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := catalog.NewBrandRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Ford")
	require.NoError(t, repo.Upsert(ctx, &brand))
	assert.NotZero(t, brand.ID)

	// Upserting the same code updates the name instead of conflicting.
	renamed := brand
	renamed.Name = "Ford Motor Company"
	require.NoError(t, repo.Upsert(ctx, &renamed))
	assert.Equal(t, brand.ID, renamed.ID)

	found, err := repo.FindByCode(ctx, brand.Code)
	require.NoError(t, err)
	assert.Equal(t, "Ford Motor Company", found.Name)
}

func TestBrandRepositoryFindByName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := catalog.NewBrandRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Chevrolet")
	require.NoError(t, repo.Upsert(ctx, &brand))

	found, err := repo.FindByName(ctx, "chevrolet")
	require.NoError(t, err)
	assert.Equal(t, brand.Code, found.Code)

	_, err = repo.FindByName(ctx, "does-not-exist")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestVehicleRepositorySaveAndExists(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	brands := catalog.NewBrandRepository(infra.PostgresDB)
	vehicles := catalog.NewVehicleRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Fiat")
	require.NoError(t, brands.Upsert(ctx, &brand))

	vehicle := createTestVehicle(brand.Code, "Uno 1.0")
	require.NoError(t, vehicles.Save(ctx, &vehicle))
	assert.NotZero(t, vehicle.ID)

	exists, err := vehicles.ExistsByCodeAndBrandCode(ctx, vehicle.Code, brand.Code)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = vehicles.ExistsByCodeAndBrandCode(ctx, "unknown", brand.Code)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVehicleRepositoryUniqueConstraint(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	brands := catalog.NewBrandRepository(infra.PostgresDB)
	vehicles := catalog.NewVehicleRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Honda")
	require.NoError(t, brands.Upsert(ctx, &brand))

	vehicle := createTestVehicle(brand.Code, "Civic 2.0")
	require.NoError(t, vehicles.Save(ctx, &vehicle))

	duplicate := catalog.NewVehicle(vehicle.Code, brand.Code, "Civic 2.0 copy")
	err := vehicles.Save(ctx, &duplicate)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err), "duplicate (code, brand_code) must surface as conflict")
}

func TestVehicleRepositorySameCodeDifferentBrand(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	brands := catalog.NewBrandRepository(infra.PostgresDB)
	vehicles := catalog.NewVehicleRepository(infra.PostgresDB)
	ctx := context.Background()

	first := createTestBrand("Toyota")
	second := createTestBrand("Nissan")
	require.NoError(t, brands.Upsert(ctx, &first))
	require.NoError(t, brands.Upsert(ctx, &second))

	vehicle := createTestVehicle(first.Code, "Shared Code Model")
	require.NoError(t, vehicles.Save(ctx, &vehicle))

	other := catalog.NewVehicle(vehicle.Code, second.Code, "Shared Code Model")
	require.NoError(t, vehicles.Save(ctx, &other), "the same code under another brand is a distinct vehicle")
}

func TestVehicleRepositoryUpdate(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	brands := catalog.NewBrandRepository(infra.PostgresDB)
	vehicles := catalog.NewVehicleRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Renault")
	require.NoError(t, brands.Upsert(ctx, &brand))

	vehicle := createTestVehicle(brand.Code, "Clio 1.0")
	require.NoError(t, vehicles.Save(ctx, &vehicle))

	vehicle.Model = "Clio 1.6"
	vehicle.Observations = "corrected trim"
	require.NoError(t, vehicles.Update(ctx, &vehicle))

	found, err := vehicles.FindByID(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clio 1.6", found.Model)
	assert.Equal(t, "corrected trim", found.Observations)

	missing := catalog.NewVehicle("x", brand.Code, "ghost")
	missing.ID = 9_999_999
	err = vehicles.Update(ctx, &missing)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestVehicleRepositoryFindByBrandCode(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	brands := catalog.NewBrandRepository(infra.PostgresDB)
	vehicles := catalog.NewVehicleRepository(infra.PostgresDB)
	ctx := context.Background()

	brand := createTestBrand("Peugeot")
	require.NoError(t, brands.Upsert(ctx, &brand))

	first := createTestVehicle(brand.Code, "208 Turbo")
	second := createTestVehicle(brand.Code, "2008 Allure")
	require.NoError(t, vehicles.Save(ctx, &first))
	require.NoError(t, vehicles.Save(ctx, &second))

	listed, err := vehicles.FindByBrandCode(ctx, brand.Code)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "2008 Allure", listed[0].Model, "listing is ordered by model")
}
