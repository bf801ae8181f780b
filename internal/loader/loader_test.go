package loader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/pkg/models"
)

type stubUpstream struct {
	brands []catalog.Brand
	err    error
}

func (s *stubUpstream) FetchBrands(ctx context.Context) ([]catalog.Brand, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.brands, nil
}

func (s *stubUpstream) FetchVehiclesByBrand(ctx context.Context, brandCode string) ([]catalog.Vehicle, error) {
	return nil, nil
}

type stubBrandRepo struct {
	upserted []catalog.Brand
	err      error
}

func (s *stubBrandRepo) Upsert(ctx context.Context, brand *catalog.Brand) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, *brand)
	return nil
}

func (s *stubBrandRepo) FindByCode(ctx context.Context, code string) (*catalog.Brand, error) {
	return nil, nil
}

func (s *stubBrandRepo) FindByName(ctx context.Context, name string) (*catalog.Brand, error) {
	return nil, nil
}

func (s *stubBrandRepo) FindAllOrderedByName(ctx context.Context) ([]catalog.Brand, error) {
	return nil, nil
}

type stubProducer struct {
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	Topic string
	Key   string
	Value []byte
}

func (s *stubProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, publishedMessage{Topic: topic, Key: key, Value: value})
	return nil
}

func (s *stubProducer) Close() error { return nil }

func newTestLoader(up *stubUpstream, repo *stubBrandRepo, producer *stubProducer) *Loader {
	return NewLoader(up, repo, nil, producer, config.KafkaConfig{BrandsTopic: "brands"}, logger.NopLogger())
}

func TestLoadStoresAndPublishesEachBrand(t *testing.T) {
	up := &stubUpstream{brands: []catalog.Brand{
		catalog.NewBrand("1", "Acura"),
		catalog.NewBrand("21", "Ford"),
	}}
	repo := &stubBrandRepo{}
	producer := &stubProducer{}
	l := newTestLoader(up, repo, producer)

	summary, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, 2, summary.Published)

	require.Len(t, producer.published, 2)
	assert.Equal(t, "brands", producer.published[0].Topic)
	assert.Equal(t, "1", producer.published[0].Key, "message key is the brand code")

	var msg models.BrandMessage
	require.NoError(t, json.Unmarshal(producer.published[1].Value, &msg))
	assert.Equal(t, "21", msg.Code)
	assert.Equal(t, "Ford", msg.Name)
}

func TestLoadSkipsInvalidBrands(t *testing.T) {
	up := &stubUpstream{brands: []catalog.Brand{
		catalog.NewBrand("1", "Acura"),
		catalog.NewBrand("", ""),
	}}
	repo := &stubBrandRepo{}
	producer := &stubProducer{}
	l := newTestLoader(up, repo, producer)

	summary, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.Published)
}

func TestLoadFetchErrorAborts(t *testing.T) {
	up := &stubUpstream{err: errors.New("upstream down")}
	l := newTestLoader(up, &stubBrandRepo{}, &stubProducer{})

	_, err := l.Load(context.Background())
	require.Error(t, err)
}

func TestLoadStoreErrorAborts(t *testing.T) {
	up := &stubUpstream{brands: []catalog.Brand{catalog.NewBrand("1", "Acura")}}
	repo := &stubBrandRepo{err: errors.New("db down")}
	producer := &stubProducer{}
	l := newTestLoader(up, repo, producer)

	summary, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, summary.Stored)
	assert.Empty(t, producer.published, "nothing published for unstored brands")
}

func TestLoadInvalidatesBrandsCache(t *testing.T) {
	up := &stubUpstream{brands: []catalog.Brand{catalog.NewBrand("1", "Acura")}}
	cache := &recordingCache{}
	l := NewLoader(up, &stubBrandRepo{}, cache, &stubProducer{}, config.KafkaConfig{}, logger.NopLogger())

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cache.deleted, constants.CacheKeyBrands)
}

type recordingCache struct {
	deleted []string
}

func (r *recordingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return catalog.ErrCacheMiss
}

func (r *recordingCache) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (r *recordingCache) Delete(ctx context.Context, keys ...string) error {
	r.deleted = append(r.deleted, keys...)
	return nil
}

func (r *recordingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}
