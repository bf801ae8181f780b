package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"fipeline/internal/broker"
	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/internal/upstream"
	"fipeline/pkg/metrics"
	"fipeline/pkg/models"
)

// Loader seeds the pipeline: it pulls the brand list from the upstream
// catalog, stores it, and emits one event per brand for the vehicle
// processors to pick up. Rerunning it republishes every brand; downstream
// processing is idempotent so this is safe.
type Loader struct {
	upstream upstream.Catalog
	brands   catalog.BrandRepository
	cache    catalog.CacheStore
	producer broker.Producer
	topic    string
	logger   logger.Logger
}

func NewLoader(up upstream.Catalog, brands catalog.BrandRepository, cache catalog.CacheStore, producer broker.Producer, cfg config.KafkaConfig, log logger.Logger) *Loader {
	topic := cfg.BrandsTopic
	if topic == "" {
		topic = constants.DefaultBrandsTopic
	}
	return &Loader{
		upstream: up,
		brands:   brands,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   log,
	}
}

// Summary reports one load run.
type Summary struct {
	Fetched   int `json:"fetched"`
	Stored    int `json:"stored"`
	Published int `json:"published"`
}

func (l *Loader) Load(ctx context.Context) (Summary, error) {
	var summary Summary

	brands, err := l.upstream.FetchBrands(ctx)
	if err != nil {
		metrics.BrandsLoadedTotal.WithLabelValues("fetch_error").Inc()
		return summary, fmt.Errorf("failed to fetch brands: %w", err)
	}
	summary.Fetched = len(brands)

	for i := range brands {
		brand := &brands[i]
		if !brand.IsValid() {
			l.logger.WarnwCtx(ctx, "Skipping invalid brand from upstream",
				"brand_code", brand.Code,
				"brand_name", brand.Name,
			)
			metrics.BrandsLoadedTotal.WithLabelValues("invalid").Inc()
			continue
		}

		if err := l.brands.Upsert(ctx, brand); err != nil {
			metrics.BrandsLoadedTotal.WithLabelValues("store_error").Inc()
			return summary, fmt.Errorf("failed to store brand %s: %w", brand.Code, err)
		}
		summary.Stored++

		if err := l.publish(ctx, brand); err != nil {
			metrics.BrandsLoadedTotal.WithLabelValues("publish_error").Inc()
			return summary, err
		}
		summary.Published++
		metrics.BrandsLoadedTotal.WithLabelValues("published").Inc()
	}

	if l.cache != nil {
		if err := l.cache.Delete(ctx, constants.CacheKeyBrands); err != nil {
			l.logger.WarnwCtx(ctx, "Failed to invalidate brands cache after load",
				"error", err,
			)
		}
	}

	l.logger.InfowCtx(ctx, "Brand load complete",
		"fetched", summary.Fetched,
		"stored", summary.Stored,
		"published", summary.Published,
	)

	return summary, nil
}

func (l *Loader) publish(ctx context.Context, brand *catalog.Brand) error {
	msg := models.BrandMessage{
		Code:      brand.Code,
		Name:      brand.Name,
		CreatedAt: brand.CreatedAt,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal brand message %s: %w", brand.Code, err)
	}

	if err := l.producer.Publish(ctx, l.topic, brand.Code, body); err != nil {
		return fmt.Errorf("failed to publish brand %s: %w", brand.Code, err)
	}

	return nil
}
