package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/api/suggester"
	"github.com/langchou/partfit/internal/models"
)

type fakeVehicles struct {
	mu      sync.Mutex
	records map[string]models.VehicleRecord
}

func newFakeVehicles(records ...models.VehicleRecord) *fakeVehicles {
	f := &fakeVehicles{records: make(map[string]models.VehicleRecord)}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeVehicles) List(context.Context) ([]models.VehicleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.VehicleRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeVehicles) Upsert(_ context.Context, rec *models.VehicleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = *rec
	return nil
}

func (f *fakeVehicles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeVehicles) Subscribe(ctx context.Context, _ *zap.Logger, _ func([]models.VehicleRecord)) error {
	<-ctx.Done()
	return nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products []models.Product
}

func (f *fakeProducts) List(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Product(nil), f.products...), nil
}

func (f *fakeProducts) Upsert(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == p.ID {
			f.products[i] = *p
			return nil
		}
	}
	f.products = append(f.products, *p)
	return nil
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	updateErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*models.Order)}
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o.Clone()
	return nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (f *fakeOrders) Update(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.orders[o.ID]; !ok {
		return ErrNotFound
	}
	f.orders[o.ID] = o.Clone()
	return nil
}

func (f *fakeOrders) filter(keep func(*models.Order) bool) []*models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeOrders) ListByBuyer(_ context.Context, buyerID string) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (f *fakeOrders) ListByVendor(_ context.Context, vendorID string) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool { return o.HasVendor(vendorID) }), nil
}

func (f *fakeOrders) ListAll(context.Context) ([]*models.Order, error) {
	return f.filter(func(*models.Order) bool { return true }), nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	saveErr  error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]models.Profile)}
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return &models.Profile{UserID: userID, Garage: []models.SelectedVehicle{}}, nil
	}
	p.Garage = append([]models.SelectedVehicle(nil), p.Garage...)
	return &p, nil
}

func (f *fakeProfiles) Save(_ context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *p
	cp.Garage = append([]models.SelectedVehicle(nil), p.Garage...)
	f.profiles[p.UserID] = cp
	return nil
}

type fakeSuggester struct {
	ids []string
	err error
	got []suggester.Candidate
}

func (f *fakeSuggester) Suggest(_ context.Context, _, _ string, candidates []suggester.Candidate) ([]string, error) {
	f.got = candidates
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

var errStoreDown = errors.New("store unavailable")
