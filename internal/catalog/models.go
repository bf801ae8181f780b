package catalog

import (
	"strings"
	"time"
)

// Brand is a vehicle manufacturer from the upstream pricing catalog. Code is
// the natural key used for dedup and message keys.
type Brand struct {
	ID        int64     `json:"id,omitempty"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBrand(code, name string) Brand {
	return Brand{
		Code:      code,
		Name:      name,
		CreatedAt: time.Now(),
	}
}

func (b Brand) IsValid() bool {
	return strings.TrimSpace(b.Code) != "" && strings.TrimSpace(b.Name) != ""
}

// Vehicle is one model belonging to a brand. The natural key is
// (Code, BrandCode); ID is assigned by storage.
type Vehicle struct {
	ID           int64     `json:"id,omitempty"`
	Code         string    `json:"code"`
	BrandCode    string    `json:"brand_code"`
	Model        string    `json:"model"`
	Observations string    `json:"observations,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewVehicle(code, brandCode, model string) Vehicle {
	now := time.Now()
	return Vehicle{
		Code:      code,
		BrandCode: brandCode,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update replaces the model name when non-blank and always replaces the
// observations.
func (v *Vehicle) Update(newModel, newObservations string) {
	if strings.TrimSpace(newModel) != "" {
		v.Model = newModel
	}
	v.Observations = newObservations
	v.UpdatedAt = time.Now()
}

func (v Vehicle) IsValid() bool {
	return v.ID != 0 &&
		strings.TrimSpace(v.Code) != "" &&
		strings.TrimSpace(v.BrandCode) != "" &&
		strings.TrimSpace(v.Model) != ""
}
