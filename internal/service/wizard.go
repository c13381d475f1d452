package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/wizard"
)

// WizardService 向导会话：基于当前层级快照创建，收敛后按模式写入当前车辆或车库
type WizardService struct {
	catalog       *CatalogService
	garage        *GarageService
	decoder       wizard.VINDecoder
	decodeTimeout time.Duration
	manager       *wizard.Manager
	logger        *zap.Logger
}

// NewWizardService 创建向导服务；decoder 为 nil 时 VIN 路径不可用
func NewWizardService(logger *zap.Logger, catalog *CatalogService, garage *GarageService, decoder wizard.VINDecoder, decodeTimeout time.Duration) *WizardService {
	return &WizardService{
		catalog:       catalog,
		garage:        garage,
		decoder:       decoder,
		decodeTimeout: decodeTimeout,
		manager:       wizard.NewManager(logger),
		logger:        logger,
	}
}

// Start 为用户开启一个向导会话
func (s *WizardService) Start(userID string, mode wizard.Mode) (string, *wizard.Flow) {
	brands, records := s.catalog.Snapshot()
	flow := wizard.NewFlow(brands, records, wizard.Options{
		Mode:          mode,
		Decoder:       s.decoder,
		DecodeTimeout: s.decodeTimeout,
		Logger:        s.logger.With(zap.String("user_id", userID)),
		Sink:          s.sink(userID),
	})
	return s.manager.Create(userID, flow), flow
}

// Flow 获取用户的向导会话
func (s *WizardService) Flow(userID, sessionID string) (*wizard.Flow, error) {
	flow, err := s.manager.Get(sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("wizard session %q: %w", sessionID, ErrNotFound)
	}
	return flow, nil
}

// Close 结束会话
func (s *WizardService) Close(userID, sessionID string) {
	s.manager.Delete(sessionID, userID)
}

// RunJanitor 定期清理闲置会话，阻塞直到 ctx 取消
func (s *WizardService) RunJanitor(ctx context.Context, idle, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.manager.Prune(idle)
		}
	}
}

// sink 模式只决定收敛后的副作用
func (s *WizardService) sink(userID string) wizard.Sink {
	return func(ctx context.Context, r wizard.Resolution) error {
		switch r.Mode {
		case wizard.ModeSelect:
			_, err := s.garage.SetActiveVehicle(ctx, userID, r.Vehicle, r.SavedVehicleID)
			return err
		case wizard.ModeAddToGarage:
			_, _, err := s.garage.AddToGarage(ctx, userID, r.Vehicle)
			return err
		}
		return fmt.Errorf("%w: wizard mode %s", ErrInvalidInput, r.Mode)
	}
}
