package integration

import (
	"fmt"

	"github.com/google/uuid"

	"fipeline/internal/catalog"
	"fipeline/internal/logger"
	"fipeline/pkg/models"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

// uniqueCode keeps rows from colliding when tests share one database.
func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func createTestBrand(name string) catalog.Brand {
	return catalog.NewBrand(uniqueCode("brand"), name)
}

func createTestVehicle(brandCode, model string) catalog.Vehicle {
	return catalog.NewVehicle(uniqueCode("vehicle"), brandCode, model)
}

func createTestBrandMessage(code, name string) models.BrandMessage {
	brand := catalog.NewBrand(code, name)
	return models.BrandMessage{
		Code:      brand.Code,
		Name:      brand.Name,
		CreatedAt: brand.CreatedAt,
	}
}
