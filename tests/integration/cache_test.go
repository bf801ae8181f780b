package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/catalog"
)

func TestRedisCacheStoreRoundtrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	store := catalog.NewRedisCacheStore(infra.RedisClient)
	ctx := context.Background()

	brands := []catalog.Brand{
		catalog.NewBrand("1", "Acura"),
		catalog.NewBrand("21", "Ford"),
	}
	require.NoError(t, store.Put(ctx, "brands:all", brands, time.Minute))

	var cached []catalog.Brand
	require.NoError(t, store.Get(ctx, "brands:all", &cached))
	require.Len(t, cached, 2)
	assert.Equal(t, "Ford", cached[1].Name)
}

func TestRedisCacheStoreMiss(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	store := catalog.NewRedisCacheStore(infra.RedisClient)

	var out []catalog.Brand
	err := store.Get(context.Background(), "missing:key", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrCacheMiss))
}

func TestRedisCacheStoreTTLExpiry(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	store := catalog.NewRedisCacheStore(infra.RedisClient)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "short:lived", "value", 100*time.Millisecond))

	var out string
	require.NoError(t, store.Get(ctx, "short:lived", &out))

	time.Sleep(200 * time.Millisecond)

	err := store.Get(ctx, "short:lived", &out)
	assert.True(t, errors.Is(err, catalog.ErrCacheMiss))
}

func TestRedisCacheStoreDeleteByPattern(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	store := catalog.NewRedisCacheStore(infra.RedisClient)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "vehicles:brand:ford", []string{"a"}, time.Minute))
	require.NoError(t, store.Put(ctx, "vehicles:brand:fiat", []string{"b"}, time.Minute))
	require.NoError(t, store.Put(ctx, "brands:all", []string{"c"}, time.Minute))

	require.NoError(t, store.DeleteByPattern(ctx, "vehicles:brand:*"))

	var out []string
	assert.True(t, errors.Is(store.Get(ctx, "vehicles:brand:ford", &out), catalog.ErrCacheMiss))
	assert.True(t, errors.Is(store.Get(ctx, "vehicles:brand:fiat", &out), catalog.ErrCacheMiss))
	assert.NoError(t, store.Get(ctx, "brands:all", &out), "unrelated keys survive invalidation")
}
