package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/models"
)

func newTestGarage(t *testing.T) (*GarageService, *fakeProfiles) {
	t.Helper()
	catalog, _, _ := newTestCatalog(t, nil)
	profiles := newFakeProfiles()
	return NewGarageService(zap.NewNop(), profiles, catalog), profiles
}

func fit2016() models.SelectedVehicle {
	return models.SelectedVehicle{ID: "v4_2016", RecordID: "v4", Make: "Honda", Model: "Fit", Year: models.IntPtr(2016)}
}

func TestAddToGarageIsIdempotent(t *testing.T) {
	g, _ := newTestGarage(t)
	ctx := context.Background()

	p, added, err := g.AddToGarage(ctx, "u1", fit2016())
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, p.Garage, 1)

	p, added, err = g.AddToGarage(ctx, "u1", fit2016())
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, p.Garage, 1)

	_, _, err = g.AddToGarage(ctx, "u1", models.SelectedVehicle{Make: "Honda"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestActivateAndRemoveGarageVehicle(t *testing.T) {
	g, _ := newTestGarage(t)
	ctx := context.Background()

	_, _, err := g.AddToGarage(ctx, "u1", fit2016())
	require.NoError(t, err)

	_, err = g.ActivateGarageVehicle(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := g.ActivateGarageVehicle(ctx, "u1", "v4_2016")
	require.NoError(t, err)
	require.NotNil(t, p.ActiveVehicle)
	assert.Equal(t, "v4_2016", p.ActiveVehicle.ID)
	assert.Len(t, p.Garage, 1)

	p, err = g.RemoveFromGarage(ctx, "u1", "v4_2016")
	require.NoError(t, err)
	assert.Empty(t, p.Garage)
	assert.Nil(t, p.ActiveVehicle)

	p, err = g.RemoveFromGarage(ctx, "u1", "v4_2016")
	require.NoError(t, err)
	assert.Empty(t, p.Garage)
}

func TestActiveVehicleReResolvesSavedID(t *testing.T) {
	g, profiles := newTestGarage(t)
	ctx := context.Background()

	profiles.profiles["u1"] = models.Profile{UserID: "u1", SavedVehicleID: "honda-fit-2016"}
	v, err := g.ActiveVehicle(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v4_2016", v.ID)

	profiles.profiles["u2"] = models.Profile{UserID: "u2", SavedVehicleID: "honda-civic-1999"}
	v, err = g.ActiveVehicle(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = g.SetActiveVehicle(ctx, "u3", fit2016(), "honda-fit-2016")
	require.NoError(t, err)
	p, err := g.ClearActiveVehicle(ctx, "u3")
	require.NoError(t, err)
	assert.Nil(t, p.ActiveVehicle)
	assert.Empty(t, p.SavedVehicleID)
}

func TestActiveVehicleFollowsCatalogChanges(t *testing.T) {
	catalog, _, _ := newTestCatalog(t, nil)
	g := NewGarageService(zap.NewNop(), newFakeProfiles(), catalog)
	ctx := context.Background()

	_, err := g.SetActiveVehicle(ctx, "u1", fit2016(), "honda-fit-2016")
	require.NoError(t, err)
	axio := models.SelectedVehicle{ID: "b_2015", RecordID: "b", Make: "Toyota", Model: "Axio", Year: models.IntPtr(2015), ChassisCode: "NZE161"}
	_, err = g.SetActiveVehicle(ctx, "u2", axio, "toyota-axio-2015")
	require.NoError(t, err)
	byVIN := models.SelectedVehicle{ID: "vin_1HGCM82633A004352", Make: "Honda", Model: "Accord", VIN: "1HGCM82633A004352"}
	_, err = g.SetActiveVehicle(ctx, "u3", byVIN, "")
	require.NoError(t, err)

	// 共享年份的多个配置时保留所选配置
	v, err := g.ActiveVehicle(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "b_2015", v.ID)
	assert.Equal(t, "NZE161", v.ChassisCode)

	require.NoError(t, catalog.DeleteVehicle(ctx, "v4"))
	v, err = g.ActiveVehicle(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, v)

	// 同年份的其他配置仍在，但所选配置已删除
	require.NoError(t, catalog.DeleteVehicle(ctx, "b"))
	v, err = g.ActiveVehicle(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = g.ActiveVehicle(ctx, "u3")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, byVIN.ID, v.ID)
}

func TestGarageSaveFailure(t *testing.T) {
	g, profiles := newTestGarage(t)
	profiles.saveErr = errStoreDown

	_, _, err := g.AddToGarage(context.Background(), "u1", fit2016())
	assert.ErrorIs(t, err, errStoreDown)
}
