package processor

import (
	"context"

	"fipeline/internal/catalog"
	"fipeline/internal/logger"
	"fipeline/internal/upstream"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/metrics"
	"fipeline/pkg/models"
)

// Processor turns one brand event into persisted vehicle rows. It fetches the
// brand's current model list from the upstream catalog and inserts what is not
// already stored. The first hard failure aborts the brand; the exists checks
// and the unique constraint make a rerun of the same brand a no-op for rows
// that already landed.
type Processor struct {
	upstream upstream.Catalog
	vehicles catalog.VehicleRepository
	logger   logger.Logger
}

func NewProcessor(up upstream.Catalog, vehicles catalog.VehicleRepository, log logger.Logger) *Processor {
	return &Processor{
		upstream: up,
		vehicles: vehicles,
		logger:   log,
	}
}

// Result summarizes one brand run.
type Result struct {
	Fetched   int
	Persisted int
	Skipped   int
}

func (p *Processor) Process(ctx context.Context, msg models.BrandMessage) (Result, error) {
	var res Result

	if msg.Code == "" {
		return res, pkgerrors.ErrValidation.
			WithDetail("message", "brand message has no code").
			AsFatal()
	}

	vehicles, err := p.upstream.FetchVehiclesByBrand(ctx, msg.Code)
	if err != nil {
		return res, err
	}
	res.Fetched = len(vehicles)

	if len(vehicles) == 0 {
		p.logger.InfowCtx(ctx, "Brand has no vehicles upstream",
			"brand_code", msg.Code,
			"brand_name", msg.Name,
		)
		return res, nil
	}

	for i := range vehicles {
		vehicle := &vehicles[i]

		exists, err := p.vehicles.ExistsByCodeAndBrandCode(ctx, vehicle.Code, vehicle.BrandCode)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			metrics.VehiclesSkippedTotal.Inc()
			continue
		}

		if err := p.vehicles.Save(ctx, vehicle); err != nil {
			// A concurrent insert won the race; the row is there either way.
			if pkgerrors.IsConflict(err) {
				res.Skipped++
				metrics.VehiclesSkippedTotal.Inc()
				continue
			}
			return res, err
		}

		res.Persisted++
		metrics.VehiclesPersistedTotal.Inc()
	}

	p.logger.InfowCtx(ctx, "Brand processed",
		"brand_code", msg.Code,
		"fetched", res.Fetched,
		"persisted", res.Persisted,
		"skipped", res.Skipped,
	)

	return res, nil
}
