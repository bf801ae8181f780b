package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/catalog"
	"fipeline/internal/logger"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/models"
)

type fakeUpstream struct {
	vehicles map[string][]catalog.Vehicle
	err      error
	calls    int
}

func (f *fakeUpstream) FetchBrands(ctx context.Context) ([]catalog.Brand, error) {
	return nil, nil
}

func (f *fakeUpstream) FetchVehiclesByBrand(ctx context.Context, brandCode string) ([]catalog.Vehicle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vehicles[brandCode], nil
}

type fakeVehicleRepo struct {
	existing  map[string]bool
	saved     []catalog.Vehicle
	saveErr   error
	existsErr error
}

func newFakeVehicleRepo() *fakeVehicleRepo {
	return &fakeVehicleRepo{existing: make(map[string]bool)}
}

func (f *fakeVehicleRepo) key(code, brandCode string) string {
	return brandCode + "/" + code
}

func (f *fakeVehicleRepo) Save(ctx context.Context, vehicle *catalog.Vehicle) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.existing[f.key(vehicle.Code, vehicle.BrandCode)] {
		return pkgerrors.ErrConflict
	}
	f.existing[f.key(vehicle.Code, vehicle.BrandCode)] = true
	f.saved = append(f.saved, *vehicle)
	return nil
}

func (f *fakeVehicleRepo) Update(ctx context.Context, vehicle *catalog.Vehicle) error {
	return nil
}

func (f *fakeVehicleRepo) ExistsByCodeAndBrandCode(ctx context.Context, code, brandCode string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[f.key(code, brandCode)], nil
}

func (f *fakeVehicleRepo) FindByID(ctx context.Context, id int64) (*catalog.Vehicle, error) {
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeVehicleRepo) FindByBrandCode(ctx context.Context, brandCode string) ([]catalog.Vehicle, error) {
	return nil, nil
}

func TestProcessPersistsNewVehicles(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{
		"B1": {
			catalog.NewVehicle("V1", "B1", "Ka 1.0"),
			catalog.NewVehicle("V2", "B1", "Fiesta 1.6"),
		},
	}}
	repo := newFakeVehicleRepo()
	proc := NewProcessor(up, repo, logger.NopLogger())

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1", Name: "Ford"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, repo.saved, 2)
	assert.Equal(t, "B1", repo.saved[0].BrandCode)
}

func TestProcessSkipsExistingVehicles(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{
		"B1": {
			catalog.NewVehicle("V1", "B1", "Ka 1.0"),
			catalog.NewVehicle("V2", "B1", "Fiesta 1.6"),
		},
	}}
	repo := newFakeVehicleRepo()
	repo.existing["B1/V1"] = true
	proc := NewProcessor(up, repo, logger.NopLogger())

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1", Name: "Ford"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "V2", repo.saved[0].Code)
}

func TestProcessRerunIsIdempotent(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{
		"B1": {catalog.NewVehicle("V1", "B1", "Ka 1.0")},
	}}
	repo := newFakeVehicleRepo()
	proc := NewProcessor(up, repo, logger.NopLogger())

	_, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1"})
	require.NoError(t, err)

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Persisted)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, repo.saved, 1)
}

func TestProcessEmptyBrand(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{}}
	repo := newFakeVehicleRepo()
	proc := NewProcessor(up, repo, logger.NopLogger())

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B9", Name: "Empty"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Fetched)
	assert.Empty(t, repo.saved)
}

func TestProcessFetchErrorAborts(t *testing.T) {
	up := &fakeUpstream{err: pkgerrors.ErrUpstream.AsRetryable()}
	repo := newFakeVehicleRepo()
	proc := NewProcessor(up, repo, logger.NopLogger())

	_, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Empty(t, repo.saved)
}

func TestProcessSaveErrorAbortsBatch(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{
		"B1": {
			catalog.NewVehicle("V1", "B1", "Ka 1.0"),
			catalog.NewVehicle("V2", "B1", "Fiesta 1.6"),
		},
	}}
	repo := newFakeVehicleRepo()
	repo.saveErr = pkgerrors.ErrInternal
	proc := NewProcessor(up, repo, logger.NopLogger())

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1"})
	require.Error(t, err)
	assert.Equal(t, 0, res.Persisted)
	assert.Empty(t, repo.saved)
}

func TestProcessConcurrentInsertConflictCountsAsSkip(t *testing.T) {
	up := &fakeUpstream{vehicles: map[string][]catalog.Vehicle{
		"B1": {catalog.NewVehicle("V1", "B1", "Ka 1.0")},
	}}
	repo := newFakeVehicleRepo()
	// exists says no, save says conflict: another writer won the race.
	repo.saveErr = pkgerrors.ErrConflict
	proc := NewProcessor(up, repo, logger.NopLogger())

	res, err := proc.Process(context.Background(), models.BrandMessage{Code: "B1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Persisted)
}

func TestProcessRejectsEmptyCode(t *testing.T) {
	proc := NewProcessor(&fakeUpstream{}, newFakeVehicleRepo(), logger.NopLogger())

	_, err := proc.Process(context.Background(), models.BrandMessage{Name: "NoCode"})
	require.Error(t, err)
	assert.False(t, pkgerrors.IsRetryable(err), "a message without a code can never succeed")
}
