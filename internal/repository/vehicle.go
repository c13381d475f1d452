package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/models"
)

// VehicleRepository 车辆记录仓库
type VehicleRepository struct {
	db *DB
}

// NewVehicleRepository 创建车辆记录仓库
func NewVehicleRepository(db *DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

const vehicleColumns = `id, make, model, COALESCE(body_type, ''), COALESCE(chassis_code, ''),
	COALESCE(engine_code, ''), COALESCE(fuel_type, ''), year, years, year_start, year_end,
	COALESCE(image_url, ''), created_at, updated_at`

func scanVehicle(row pgx.Row) (*models.VehicleRecord, error) {
	rec := &models.VehicleRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.Make,
		&rec.Model,
		&rec.BodyType,
		&rec.ChassisCode,
		&rec.EngineCode,
		&rec.FuelType,
		&rec.Year,
		&rec.Years,
		&rec.YearStart,
		&rec.YearEnd,
		&rec.ImageURL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List 获取全部车辆记录
func (r *VehicleRepository) List(ctx context.Context) ([]models.VehicleRecord, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var records []models.VehicleRecord
	for rows.Next() {
		rec, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Upsert 创建或更新车辆记录，写入后触发 vehicles_changed 通知
func (r *VehicleRepository) Upsert(ctx context.Context, rec *models.VehicleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO vehicles (id, make, model, body_type, chassis_code, engine_code, fuel_type,
			year, years, year_start, year_end, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, $11, NULLIF($12, ''), $13, $13)
		ON CONFLICT (id) DO UPDATE SET
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			body_type = EXCLUDED.body_type,
			chassis_code = EXCLUDED.chassis_code,
			engine_code = EXCLUDED.engine_code,
			fuel_type = EXCLUDED.fuel_type,
			year = EXCLUDED.year,
			years = EXCLUDED.years,
			year_start = EXCLUDED.year_start,
			year_end = EXCLUDED.year_end,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		rec.ID,
		rec.Make,
		rec.Model,
		rec.BodyType,
		rec.ChassisCode,
		rec.EngineCode,
		rec.FuelType,
		rec.Year,
		rec.Years,
		rec.YearStart,
		rec.YearEnd,
		rec.ImageURL,
		now,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert vehicle: %w", err)
	}
	rec.UpdatedAt = now
	return nil
}

// Delete 删除车辆记录
func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe 监听 vehicles_changed，每次变更后重新读取全量记录回调 onChange
// 阻塞直到 ctx 取消
func (r *VehicleRepository) Subscribe(ctx context.Context, logger *zap.Logger, onChange func([]models.VehicleRecord)) error {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+VehiclesChannel); err != nil {
		return fmt.Errorf("listen %s: %w", VehiclesChannel, err)
	}
	logger.Info("Listening for vehicle changes", zap.String("channel", VehiclesChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		records, err := r.List(ctx)
		if err != nil {
			logger.Warn("Failed to reload vehicles after change",
				zap.String("op", n.Payload),
				zap.Error(err))
			continue
		}
		logger.Debug("Vehicle records changed",
			zap.String("op", n.Payload),
			zap.Int("count", len(records)))
		onChange(records)
	}
}
