package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/partfit/internal/models"
)

// OrderRepository 订单仓库
type OrderRepository struct {
	db *DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, buyer_id, vendor_ids, items, total_cents, status, payment_status,
	vehicle_details, COALESCE(cancellation_reason, ''), cancellation_details,
	shipped_at, delivered_at, refunded_at, COALESCE(refunded_by, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.VendorIDs,
		&o.Items,
		&o.TotalCents,
		&o.Status,
		&o.PaymentStatus,
		&o.VehicleDetails,
		&o.CancellationReason,
		&o.CancellationDetails,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.RefundedAt,
		&o.RefundedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) list(ctx context.Context, where string, args ...any) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (id, buyer_id, vendor_ids, items, total_cents, status, payment_status,
			vehicle_details, cancellation_reason, cancellation_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		o.ID,
		o.BuyerID,
		o.VendorIDs,
		o.Items,
		o.TotalCents,
		o.Status,
		o.PaymentStatus,
		o.VehicleDetails,
		o.CancellationReason,
		o.CancellationDetails,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get 通过 ID 获取订单
func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get order: %w", notFound(err))
	}
	return o, nil
}

// Update 写回状态转换后的订单（后写覆盖）
func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	query := `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			vehicle_details = $4,
			cancellation_reason = NULLIF($5, ''),
			cancellation_details = $6,
			shipped_at = $7,
			delivered_at = $8,
			refunded_at = $9,
			refunded_by = NULLIF($10, ''),
			updated_at = $11
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		o.ID,
		o.Status,
		o.PaymentStatus,
		o.VehicleDetails,
		o.CancellationReason,
		o.CancellationDetails,
		o.ShippedAt,
		o.DeliveredAt,
		o.RefundedAt,
		o.RefundedBy,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order: %w", ErrNotFound)
	}
	return nil
}

// ListByBuyer 买家的订单
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error) {
	return r.list(ctx, `WHERE buyer_id = $1`, buyerID)
}

// ListByVendor 供应商参与的订单：vendor_ids 包含，或任一订单行属于该供应商
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]*models.Order, error) {
	return r.list(ctx,
		`WHERE $1 = ANY(vendor_ids) OR items @> jsonb_build_array(jsonb_build_object('vendorId', $1::text))`,
		vendorID)
}

// ListAll 全部订单（管理员）
func (r *OrderRepository) ListAll(ctx context.Context) ([]*models.Order, error) {
	return r.list(ctx, "")
}
