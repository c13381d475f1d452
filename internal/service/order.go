package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/events"
	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/state"
)

// ProductLookup 下单时查询商品
type ProductLookup interface {
	Product(id string) (*models.Product, error)
}

// CheckoutItem 下单行
type CheckoutItem struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CheckoutRequest 下单请求；VIN 可选，提供时订单进入适配校验
type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	VIN   string         `json:"vin"`
}

// OrderService 订单服务：状态转换 → 持久化 → 发布事件
type OrderService struct {
	store    OrderStore
	products ProductLookup
	bus      *events.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(logger *zap.Logger, store OrderStore, products ProductLookup, bus *events.Bus) *OrderService {
	return &OrderService{
		store:    store,
		products: products,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Checkout 创建订单；支付为模拟，直接记为已支付
func (s *OrderService) Checkout(ctx context.Context, actor models.Actor, req CheckoutRequest) (*models.Order, error) {
	if actor.Role != models.RoleBuyer {
		return nil, ErrForbidden
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}

	now := s.now()
	order := &models.Order{
		ID:            ulid.Make().String(),
		BuyerID:       actor.ID,
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	seenVendor := make(map[string]struct{})
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
		p, err := s.products.Product(item.ProductID)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:  p.ID,
			VendorID:   p.VendorID,
			Title:      p.Title,
			Quantity:   item.Quantity,
			PriceCents: p.PriceCents,
		})
		order.TotalCents += p.PriceCents * int64(item.Quantity)
		if _, ok := seenVendor[p.VendorID]; !ok && p.VendorID != "" {
			seenVendor[p.VendorID] = struct{}{}
			order.VendorIDs = append(order.VendorIDs, p.VendorID)
		}
	}

	if req.VIN != "" {
		vin, err := fitment.NormalizeVIN(req.VIN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		order.VehicleDetails = &models.VehicleDetails{
			VINNumber:          vin,
			VerificationStatus: models.VerificationPending,
		}
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.publish(ctx, "created", actor, order)

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.Bool("has_vin", order.VehicleDetails != nil))
	return order, nil
}

// Get 获取订单，只有相关方可见
func (s *OrderService) Get(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, o) {
		return nil, ErrNotFound
	}
	return o, nil
}

// List 按角色列出订单：买家看自己的，供应商看参与的，管理员看全部
func (s *OrderService) List(ctx context.Context, actor models.Actor) ([]*models.Order, error) {
	switch actor.Role {
	case models.RoleBuyer:
		return s.store.ListByBuyer(ctx, actor.ID)
	case models.RoleVendor:
		return s.store.ListByVendor(ctx, actor.ID)
	case models.RoleAdmin:
		return s.store.ListAll(ctx)
	}
	return nil, ErrForbidden
}

func canView(actor models.Actor, o *models.Order) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleBuyer:
		return o.BuyerID == actor.ID
	case models.RoleVendor:
		return o.HasVendor(actor.ID)
	}
	return false
}

func requireVendor(actor models.Actor, o *models.Order) error {
	if actor.Role == models.RoleVendor && o.HasVendor(actor.ID) {
		return nil
	}
	return ErrForbidden
}

func requireVendorOrAdmin(actor models.Actor, o *models.Order) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	return requireVendor(actor, o)
}

func requireAdmin(actor models.Actor, _ *models.Order) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	return ErrForbidden
}

// apply 读取 → 授权 → 纯函数转换 → 持久化 → 发布
// 持久化失败时不发布事件，调用方看到的仍是原订单状态
func (s *OrderService) apply(
	ctx context.Context,
	actor models.Actor,
	id, action string,
	authorize func(models.Actor, *models.Order) error,
	transition func(*models.Order, time.Time) (*models.Order, error),
) (*models.Order, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, current) {
		return nil, ErrNotFound
	}
	if err := authorize(actor, current); err != nil {
		return nil, err
	}

	next, err := transition(current, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", action, err)
	}
	s.publish(ctx, action, actor, next)

	s.logger.Info("Order transitioned",
		zap.String("order_id", next.ID),
		zap.String("action", action),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor", actor.ID))
	return next, nil
}

func (s *OrderService) publish(ctx context.Context, action string, actor models.Actor, o *models.Order) {
	if s.bus == nil {
		return
	}
	event := events.OrderEvent{Action: action, Actor: actor.ID, Order: o, At: s.now()}
	if err := events.Publish(ctx, s.bus, events.SubjectOrderUpdated, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("order_id", o.ID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// Accept 供应商接单
func (s *OrderService) Accept(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.apply(ctx, actor, id, state.EventAccept, requireVendor, state.Accept)
}

// VerifyFitment 供应商确认 VIN 适配
func (s *OrderService) VerifyFitment(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.apply(ctx, actor, id, state.EventVerify, requireVendor,
		func(o *models.Order, now time.Time) (*models.Order, error) {
			return state.VerifyFitment(o, models.VerificationVerified, actor.ID, now)
		})
}

// RejectFitment 供应商判定不适配，必须给出取消原因
func (s *OrderService) RejectFitment(ctx context.Context, actor models.Actor, id string, reason models.CancellationReason, description string) (*models.Order, error) {
	if reason == "" {
		return nil, state.ErrReasonRequired
	}
	return s.apply(ctx, actor, id, "reject", requireVendor,
		func(o *models.Order, now time.Time) (*models.Order, error) {
			return state.RejectFitment(o, reason, description, actor.ID, now)
		})
}

// CancelOrder 取消订单进入待退款
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, id string, reason models.CancellationReason, description string) (*models.Order, error) {
	if reason == "" {
		return nil, state.ErrReasonRequired
	}
	return s.apply(ctx, actor, id, state.EventCancel, requireVendorOrAdmin,
		func(o *models.Order, now time.Time) (*models.Order, error) {
			return state.CancelOrder(o, reason, description, actor.ID, now)
		})
}

// MarkOrderRefunded 管理员确认退款
func (s *OrderService) MarkOrderRefunded(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.apply(ctx, actor, id, state.EventRefund, requireAdmin,
		func(o *models.Order, now time.Time) (*models.Order, error) {
			return state.MarkRefunded(o, actor.ID, now)
		})
}

// Ship 供应商发货
func (s *OrderService) Ship(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.apply(ctx, actor, id, state.EventShip, requireVendor, state.Ship)
}

// Deliver 确认送达
func (s *OrderService) Deliver(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.apply(ctx, actor, id, state.EventDeliver, requireVendorOrAdmin, state.Deliver)
}
