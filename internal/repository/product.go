package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/partfit/internal/models"
)

// ProductRepository 配件商品仓库
type ProductRepository struct {
	db *DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, vendor_id, title, category, COALESCE(description, ''), price_cents, stock,
	COALESCE(image_url, ''), compatible_vehicles, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID,
		&p.VendorID,
		&p.Title,
		&p.Category,
		&p.Description,
		&p.PriceCents,
		&p.Stock,
		&p.ImageURL,
		&p.CompatibleVehicles,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List 获取全部商品
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// Upsert 创建或更新商品
func (r *ProductRepository) Upsert(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, vendor_id, title, category, description, price_cents, stock,
			image_url, compatible_vehicles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			stock = EXCLUDED.stock,
			image_url = EXCLUDED.image_url,
			compatible_vehicles = EXCLUDED.compatible_vehicles,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		p.ID,
		p.VendorID,
		p.Title,
		p.Category,
		p.Description,
		p.PriceCents,
		p.Stock,
		p.ImageURL,
		p.CompatibleVehicles,
		now,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	p.UpdatedAt = now
	return nil
}
