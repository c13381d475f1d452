package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/api/suggester"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/repository"
)

var (
	ErrNotFound     = repository.ErrNotFound
	ErrForbidden    = errors.New("action not permitted for this user")
	ErrInvalidInput = errors.New("invalid input")
)

// VehicleStore 车辆记录存储
type VehicleStore interface {
	List(ctx context.Context) ([]models.VehicleRecord, error)
	Upsert(ctx context.Context, rec *models.VehicleRecord) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, logger *zap.Logger, onChange func([]models.VehicleRecord)) error
}

// ProductStore 商品存储
type ProductStore interface {
	List(ctx context.Context) ([]models.Product, error)
	Upsert(ctx context.Context, p *models.Product) error
}

// OrderStore 订单存储
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	ListByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]*models.Order, error)
	ListAll(ctx context.Context) ([]*models.Order, error)
}

// ProfileStore 用户资料存储
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) error
}

// Suggester AI 兼容车型建议
type Suggester interface {
	Suggest(ctx context.Context, title, category string, candidates []suggester.Candidate) ([]string, error)
}

var (
	_ VehicleStore = (*repository.VehicleRepository)(nil)
	_ ProductStore = (*repository.ProductRepository)(nil)
	_ OrderStore   = (*repository.OrderRepository)(nil)
	_ ProfileStore = (*repository.ProfileRepository)(nil)
	_ Suggester    = (*suggester.Client)(nil)
)
