package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/partfit/internal/models"
)

// ProfileRepository 用户车辆资料仓库
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository 创建资料仓库
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get 获取用户资料；不存在时返回空资料
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, COALESCE(saved_vehicle_id, ''), active_vehicle, garage, updated_at
		FROM profiles WHERE user_id = $1
	`
	p := &models.Profile{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.SavedVehicleID,
		&p.ActiveVehicle,
		&p.Garage,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.Profile{UserID: userID, Garage: []models.SelectedVehicle{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Save 写入用户资料
func (r *ProfileRepository) Save(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, saved_vehicle_id, active_vehicle, garage, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			saved_vehicle_id = EXCLUDED.saved_vehicle_id,
			active_vehicle = EXCLUDED.active_vehicle,
			garage = EXCLUDED.garage,
			updated_at = EXCLUDED.updated_at
	`
	garage := p.Garage
	if garage == nil {
		garage = []models.SelectedVehicle{}
	}
	now := time.Now()
	_, err := r.db.Pool.Exec(ctx, query, p.UserID, p.SavedVehicleID, p.ActiveVehicle, garage, now)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	p.UpdatedAt = now
	return nil
}
