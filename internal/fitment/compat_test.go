package fitment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/partfit/internal/models"
)

func axioProduct(years ...int) models.Product {
	p := models.Product{ID: "p-axio", Title: "Front brake pads", Category: "Brakes"}
	for _, y := range years {
		p.CompatibleVehicles = append(p.CompatibleVehicles, models.CompatibleVariant{
			VehicleID: "a", Make: "Toyota", Model: "Axio", Year: y, SearchKey: SearchKey("a", y),
		})
	}
	return p
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name    string
		product models.Product
		vehicle *models.SelectedVehicle
		want    bool
	}{
		{
			name:    "year-agnostic selection matches 2015",
			product: axioProduct(2015),
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Axio"},
			want:    true,
		},
		{
			name:    "year-agnostic selection matches 2019",
			product: axioProduct(2019),
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Axio"},
			want:    true,
		},
		{
			name:    "year-bound selection rejects other year",
			product: axioProduct(2019),
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015)},
			want:    false,
		},
		{
			name:    "year-bound selection matches exact year",
			product: axioProduct(2013, 2015),
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015)},
			want:    true,
		},
		{
			name:    "make and model compared case-insensitively",
			product: axioProduct(2015),
			vehicle: &models.SelectedVehicle{Make: "TOYOTA", Model: "axio", Year: models.IntPtr(2015)},
			want:    true,
		},
		{
			name:    "different model",
			product: axioProduct(2015),
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Allion"},
			want:    false,
		},
		{
			name:    "no compatibility list",
			product: models.Product{ID: "bare"},
			vehicle: &models.SelectedVehicle{Make: "Toyota", Model: "Axio"},
			want:    false,
		},
		{
			name:    "no vehicle",
			product: axioProduct(2015),
			vehicle: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatible(&tt.product, tt.vehicle))
		})
	}
}

func TestFilterAndCount(t *testing.T) {
	products := []models.Product{
		axioProduct(2015),
		{ID: "p-fit", Title: "Oil filter", Category: "Engine", CompatibleVehicles: models.CompatibleVariants{
			{VehicleID: "d", Make: "Honda", Model: "Fit", Year: 2016, SearchKey: "d_2016"},
		}},
		{ID: "p-axio-oil", Title: "Oil filter", Category: "Engine", CompatibleVehicles: models.CompatibleVariants{
			{VehicleID: "a", Make: "Toyota", Model: "Axio", Year: 2015, SearchKey: "a_2015"},
		}},
	}
	axio := &models.SelectedVehicle{Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015)}

	filtered := FilterCompatible(products, axio)
	require.Len(t, filtered, 2)
	assert.Equal(t, "p-axio", filtered[0].ID)

	assert.Len(t, FilterCompatible(products, nil), 3)
	assert.Equal(t, map[string]int{"Brakes": 1, "Engine": 1}, CategoryCounts(products, axio))
	assert.Equal(t, map[string]int{"Brakes": 1, "Engine": 2}, CategoryCounts(products, nil))

	found := SearchProducts(products, "oil", "", axio)
	require.Len(t, found, 1)
	assert.Equal(t, "p-axio-oil", found[0].ID)

	assert.Len(t, SearchProducts(products, "", "engine", nil), 2)
}

func TestMergeVariantsKeepsSearchKeyUnique(t *testing.T) {
	rec := models.VehicleRecord{ID: "v4", Make: "Honda", Model: "Fit"}
	existing := []models.CompatibleVariant{NewCompatibleVariant(rec, 2016)}

	merged := MergeVariants(existing,
		NewCompatibleVariant(rec, 2016),
		NewCompatibleVariant(rec, 2017),
		models.CompatibleVariant{VehicleID: "v4", Make: "Honda", Model: "Fit", Year: 2017},
	)
	require.Len(t, merged, 2)
	assert.Equal(t, "v4_2016", merged[0].SearchKey)
	assert.Equal(t, "v4_2017", merged[1].SearchKey)
}

func TestVariantsForRecords(t *testing.T) {
	variants := VariantsForRecords([]models.VehicleRecord{
		{ID: "v4", Make: "Honda", Model: "Fit", YearStart: models.IntPtr(2019), YearEnd: models.IntPtr(2020)},
		{ID: "v4", Make: "Honda", Model: "Fit", Year: models.IntPtr(2020)},
	}, 2024)
	require.Len(t, variants, 2)
	assert.Equal(t, "v4_2020", variants[0].SearchKey)
	assert.Equal(t, "v4_2019", variants[1].SearchKey)
}
