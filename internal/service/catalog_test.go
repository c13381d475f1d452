package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/partfit/internal/events"
	"github.com/langchou/partfit/internal/models"
)

func seedRecords() []models.VehicleRecord {
	return []models.VehicleRecord{
		{ID: "v4", Make: "Honda", Model: "Fit", YearStart: models.IntPtr(2013), YearEnd: models.IntPtr(2020)},
		{ID: "a", Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015), ChassisCode: "NKE165"},
		{ID: "b", Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015), ChassisCode: "NZE161"},
	}
}

func seedProducts() []models.Product {
	return []models.Product{
		{ID: "p1", VendorID: "vendor-1", Title: "Brake pads", Category: "Brakes", PriceCents: 2500,
			CompatibleVehicles: models.CompatibleVariants{{VehicleID: "b", Make: "Toyota", Model: "Axio", Year: 2015, SearchKey: "b_2015"}}},
		{ID: "p2", VendorID: "vendor-2", Title: "Oil filter", Category: "Engine", PriceCents: 900,
			CompatibleVehicles: models.CompatibleVariants{{VehicleID: "v4", Make: "Honda", Model: "Fit", Year: 2016, SearchKey: "v4_2016"}}},
	}
}

func newTestCatalog(t *testing.T, sg Suggester) (*CatalogService, *fakeVehicles, *events.Bus) {
	t.Helper()
	vehicles := newFakeVehicles(seedRecords()...)
	products := &fakeProducts{products: seedProducts()}
	bus := events.NewBus(nil, zap.NewNop())
	c := NewCatalogService(zap.NewNop(), vehicles, products, sg, nil, bus, time.Second)
	require.NoError(t, c.Load(context.Background()))
	return c, vehicles, bus
}

func TestCatalogLoadBuildsHierarchy(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)

	brands := c.Hierarchy()
	require.Len(t, brands, 2)
	assert.Equal(t, "Honda", brands[0].Name)
	assert.Equal(t, "Toyota", brands[1].Name)
	assert.Len(t, c.Products(), 2)
}

func TestCatalogRebuildsOnUpsertAndPublishes(t *testing.T) {
	c, _, bus := newTestCatalog(t, nil)

	var got []events.CatalogEvent
	unsubscribe, err := events.Subscribe(bus, events.SubjectCatalogChanged, func(_ context.Context, e events.CatalogEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)
	defer unsubscribe()

	err = c.UpsertVehicle(context.Background(), &models.VehicleRecord{ID: "n1", Make: "Nissan", Model: "Note", Year: models.IntPtr(2017)})
	require.NoError(t, err)
	assert.Len(t, c.Hierarchy(), 3)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Records)
	assert.Equal(t, 3, got[0].Brands)

	err = c.UpsertVehicle(context.Background(), &models.VehicleRecord{ID: "bad", Make: "", Model: "X"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = c.UpsertVehicle(context.Background(), &models.VehicleRecord{
		ID: "inverted", Make: "Nissan", Model: "Leaf", YearStart: models.IntPtr(2020), YearEnd: models.IntPtr(2011),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	err = c.UpsertVehicle(context.Background(), &models.VehicleRecord{
		ID: "huge", Make: "Nissan", Model: "Leaf", YearStart: models.IntPtr(2011), YearEnd: models.IntPtr(2000000000),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, c.Hierarchy(), 3)
}

func TestCatalogDeleteVehicle(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)

	require.NoError(t, c.DeleteVehicle(context.Background(), "v4"))
	brands := c.Hierarchy()
	require.Len(t, brands, 1)
	assert.Equal(t, "Toyota", brands[0].Name)

	_, err := c.SavedVehicle("honda-fit-2016")
	assert.ErrorIs(t, err, ErrNotFound)

	err = c.DeleteVehicle(context.Background(), "v4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavedVehicleReResolves(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)

	v, err := c.SavedVehicle("honda-fit-2016")
	require.NoError(t, err)
	assert.Equal(t, "v4_2016", v.ID)
	assert.Equal(t, "v4", v.RecordID)
	assert.Equal(t, 2016, *v.Year)

	// 两个配置共享年份时只还原到 make/model/year
	v, err = c.SavedVehicle("toyota-axio-2015")
	require.NoError(t, err)
	assert.Equal(t, "toyota-axio-2015", v.ID)
	assert.Empty(t, v.RecordID)

	_, err = c.SavedVehicle("honda-fit-2021")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = c.SavedVariant("toyota-axio-2015", "a")
	require.NoError(t, err)
	assert.Equal(t, "a_2015", v.ID)
	assert.Equal(t, "NKE165", v.ChassisCode)

	_, err = c.SavedVariant("toyota-axio-2015", "v4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogSearchAndCounts(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)
	axio := &models.SelectedVehicle{Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015)}

	found := c.SearchProducts("", "", axio)
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].ID)

	fits, err := c.Fits("p2", axio)
	require.NoError(t, err)
	assert.False(t, fits)
	_, err = c.Fits("missing", axio)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, map[string]int{"Brakes": 1}, c.CategoryCounts(axio))
	assert.Equal(t, map[string]int{"Brakes": 1, "Engine": 1}, c.CategoryCounts(nil))
}

func TestProductListIsCopyOnWrite(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)
	vendor := models.Actor{ID: "vendor-1", Role: models.RoleVendor}
	ctx := context.Background()

	before := c.Products()
	require.NoError(t, c.UpsertProduct(ctx, vendor, &models.Product{ID: "p1", Title: "Ceramic brake pads", Category: "Brakes"}))
	assert.Equal(t, "Brake pads", before[0].Title)

	p, err := c.Product("p1")
	require.NoError(t, err)
	assert.Equal(t, "Ceramic brake pads", p.Title)
}

func TestConcurrentProductUpsertAndSearch(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)
	vendor := models.Actor{ID: "vendor-1", Role: models.RoleVendor}
	axio := &models.SelectedVehicle{Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015)}
	ctx := context.Background()
	const rounds = 200

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			p := models.Product{
				ID:       "p1",
				Title:    fmt.Sprintf("Brake pads %d", i),
				Category: "Brakes",
				CompatibleVehicles: models.CompatibleVariants{
					{VehicleID: "b", Make: "Toyota", Model: "Axio", Year: 2015, SearchKey: "b_2015"},
				},
			}
			if err := c.UpsertProduct(ctx, vendor, &p); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			for _, p := range c.Products() {
				_ = p.Title
			}
			if found := c.SearchProducts("brake", "", axio); len(found) != 1 {
				return fmt.Errorf("round %d: found %d products", i, len(found))
			}
			c.CategoryCounts(axio)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	p, err := c.Product("p1")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Brake pads %d", rounds-1), p.Title)
}

func TestUpsertProductOwnership(t *testing.T) {
	c, _, _ := newTestCatalog(t, nil)
	ctx := context.Background()

	p := &models.Product{ID: "p1", Title: "Brake pads v2", Category: "Brakes"}
	err := c.UpsertProduct(ctx, models.Actor{ID: "vendor-2", Role: models.RoleVendor}, p)
	assert.ErrorIs(t, err, ErrForbidden)

	err = c.UpsertProduct(ctx, models.Actor{ID: "buyer", Role: models.RoleBuyer}, &models.Product{ID: "p9", Title: "x", Category: "y"})
	assert.ErrorIs(t, err, ErrForbidden)

	p = &models.Product{ID: "p3", Title: "Wiper", Category: "Body", CompatibleVehicles: models.CompatibleVariants{
		{VehicleID: "v4", Make: "Honda", Model: "Fit", Year: 2016},
		{VehicleID: "v4", Make: "Honda", Model: "Fit", Year: 2016, SearchKey: "v4_2016"},
	}}
	require.NoError(t, c.UpsertProduct(ctx, models.Actor{ID: "vendor-1", Role: models.RoleVendor}, p))
	got, err := c.Product("p3")
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", got.VendorID)
	assert.Len(t, got.CompatibleVehicles, 1)
}

func TestSuggestCompatibilityIsBestEffort(t *testing.T) {
	sg := &fakeSuggester{ids: []string{"b_2015", "unknown_1"}}
	c, _, _ := newTestCatalog(t, sg)

	got := c.SuggestCompatibility(context.Background(), "Brake pads", "Brakes")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].VehicleID)
	assert.NotEmpty(t, sg.got)

	sg.err = errStoreDown
	got = c.SuggestCompatibility(context.Background(), "Brake pads", "Brakes")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	none, _, _ := newTestCatalog(t, nil)
	assert.Empty(t, none.SuggestCompatibility(context.Background(), "x", "y"))
}

func TestSuggestCompatibilityCapsCandidates(t *testing.T) {
	records := make([]models.VehicleRecord, 0, 30)
	for i := range 30 {
		records = append(records, models.VehicleRecord{
			ID: fmt.Sprintf("r%d", i), Make: "Toyota", Model: fmt.Sprintf("Model %d", i),
			YearStart: models.IntPtr(2011), YearEnd: models.IntPtr(2020),
		})
	}
	core, logs := observer.New(zap.InfoLevel)
	sg := &fakeSuggester{}
	c := NewCatalogService(zap.New(core), newFakeVehicles(records...), &fakeProducts{}, sg, nil, events.NewBus(nil, zap.NewNop()), time.Second)
	require.NoError(t, c.Load(context.Background()))

	c.SuggestCompatibility(context.Background(), "Brake pads", "Brakes")
	assert.Len(t, sg.got, maxSuggestCandidates)

	truncated := logs.FilterMessage("Truncating suggestion candidates").All()
	require.Len(t, truncated, 1)
	assert.EqualValues(t, 300, truncated[0].ContextMap()["total"])
}
