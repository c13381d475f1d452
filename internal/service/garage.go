package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

// SavedResolver 将已保存的复合 ID 还原为车辆；recordID 非空时还原到具体配置
type SavedResolver interface {
	SavedVariant(savedID, recordID string) (*models.SelectedVehicle, error)
}

// GarageService 车库与当前车辆
type GarageService struct {
	profiles ProfileStore
	resolver SavedResolver
	logger   *zap.Logger
}

// NewGarageService 创建车库服务
func NewGarageService(logger *zap.Logger, profiles ProfileStore, resolver SavedResolver) *GarageService {
	return &GarageService{
		profiles: profiles,
		resolver: resolver,
		logger:   logger,
	}
}

// Profile 用户资料
func (s *GarageService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *GarageService) save(ctx context.Context, p *models.Profile) error {
	if err := s.profiles.Save(ctx, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// AddToGarage 加入车库；已存在时 added 为 false，不视为错误
func (s *GarageService) AddToGarage(ctx context.Context, userID string, v models.SelectedVehicle) (*models.Profile, bool, error) {
	if v.ID == "" || v.Make == "" || v.Model == "" {
		return nil, false, fmt.Errorf("%w: vehicle id, make and model are required", ErrInvalidInput)
	}
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	garage, added := fitment.Garage(p.Garage).Add(v)
	if !added {
		s.logger.Info("Vehicle already in garage",
			zap.String("user_id", userID),
			zap.String("vehicle_id", v.ID))
		return p, false, nil
	}

	next := *p
	next.Garage = garage
	if err := s.save(ctx, &next); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// RemoveFromGarage 移出车库，幂等；移除的是当前车辆时同时清空当前车辆
func (s *GarageService) RemoveFromGarage(ctx context.Context, userID, vehicleID string) (*models.Profile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := fitment.Garage(p.Garage).Find(vehicleID); !ok {
		return p, nil
	}

	next := *p
	next.Garage = fitment.Garage(p.Garage).Remove(vehicleID)
	if next.ActiveVehicle != nil && next.ActiveVehicle.ID == vehicleID {
		next.ActiveVehicle = nil
		next.SavedVehicleID = ""
	}
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ActivateGarageVehicle 将车库中的车辆设为当前车辆，不从车库移除
func (s *GarageService) ActivateGarageVehicle(ctx context.Context, userID, vehicleID string) (*models.Profile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	v, ok := fitment.Garage(p.Garage).Find(vehicleID)
	if !ok {
		return nil, fmt.Errorf("garage vehicle %q: %w", vehicleID, ErrNotFound)
	}

	next := *p
	next.ActiveVehicle = &v
	next.SavedVehicleID = ""
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// SetActiveVehicle 替换当前车辆；savedID 为层级复合 ID，VIN 来源时为空
func (s *GarageService) SetActiveVehicle(ctx context.Context, userID string, v models.SelectedVehicle, savedID string) (*models.Profile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := *p
	next.ActiveVehicle = &v
	next.SavedVehicleID = savedID
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ClearActiveVehicle 清空当前车辆，不影响历史订单
func (s *GarageService) ClearActiveVehicle(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := *p
	next.ActiveVehicle = nil
	next.SavedVehicleID = ""
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ActiveVehicle 当前车辆
// 带复合 ID 的车辆每次都在最新层级中重新解析，快照只用于 VIN 与车库来源
// 复合 ID 或所选配置已失效时返回 nil，不报错
func (s *GarageService) ActiveVehicle(ctx context.Context, userID string) (*models.SelectedVehicle, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.SavedVehicleID == "" || s.resolver == nil {
		return p.ActiveVehicle, nil
	}

	var recordID string
	if p.ActiveVehicle != nil {
		recordID = p.ActiveVehicle.RecordID
	}
	v, err := s.resolver.SavedVariant(p.SavedVehicleID, recordID)
	if err != nil {
		s.logger.Info("Saved vehicle no longer resolves",
			zap.String("user_id", userID),
			zap.String("saved_vehicle_id", p.SavedVehicleID))
		return nil, nil
	}
	return v, nil
}
