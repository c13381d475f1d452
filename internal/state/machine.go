// Package state 订单适配/退款状态机
//
// 所有转换都是纯函数：校验前置条件后返回订单的新副本，原订单不变，持久化由调用方负责。
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/partfit/internal/models"
)

// 事件常量
const (
	EventAccept  = "accept"
	EventVerify  = "verify"
	EventShip    = "ship"
	EventDeliver = "deliver"
	EventCancel  = "cancel"
	EventRefund  = "refund"
)

var (
	ErrShipBlocked       = errors.New("fitment must be verified before shipping")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrInvalidReason     = errors.New("unknown cancellation reason")
	ErrNoVehicleDetails  = errors.New("order has no VIN to verify")
	ErrTerminal          = errors.New("order is closed to fitment and cancellation actions")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrActorRequired     = errors.New("actor is required")
	ErrUseRejectFitment  = errors.New("failed fitment must go through cancellation with a reason")
)

// TransitionError 状态转换被拒绝
type TransitionError struct {
	From  models.OrderStatus
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s: %v", e.Event, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func s(st models.OrderStatus) string { return string(st) }

// orderEvents 订单状态图
// refund_pending 只接受管理员退款；delivered/refunded/cancelled 为终态
var orderEvents = fsm.Events{
	{Name: EventAccept, Src: []string{s(models.OrderPending)}, Dst: s(models.OrderProcessing)},
	{Name: EventVerify, Src: []string{s(models.OrderPending), s(models.OrderProcessing)}, Dst: s(models.OrderVerified)},
	{Name: EventShip, Src: []string{s(models.OrderPending), s(models.OrderProcessing), s(models.OrderVerified)}, Dst: s(models.OrderShipped)},
	{Name: EventDeliver, Src: []string{s(models.OrderShipped)}, Dst: s(models.OrderDelivered)},
	{Name: EventCancel, Src: []string{s(models.OrderPending), s(models.OrderProcessing), s(models.OrderVerified)}, Dst: s(models.OrderRefundPending)},
	{Name: EventRefund, Src: []string{s(models.OrderRefundPending)}, Dst: s(models.OrderRefunded)},
}

// Machine 单个订单的状态机，作用于订单副本
type Machine struct {
	fsm   *fsm.FSM
	order *models.Order
}

// NewMachine 以订单当前状态创建状态机
func NewMachine(order *models.Order) *Machine {
	status := order.Status
	if status == "" {
		status = models.OrderPending
	}
	m := &Machine{order: order.Clone()}
	m.fsm = fsm.NewFSM(
		s(status),
		orderEvents,
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				if e.Src != e.Dst {
					m.order.Status = models.OrderStatus(e.Dst)
				}
			},
		},
	)
	return m
}

// Order 状态机持有的订单副本
func (m *Machine) Order() *models.Order {
	return m.order
}

// Can 事件在当前状态下是否可触发（不含业务守卫）
func (m *Machine) Can(event string) bool {
	return m.fsm.Can(event)
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	from := m.order.Status
	if !m.fsm.Can(event) {
		return &TransitionError{From: from, Event: event, Err: rejection(from)}
	}
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return &TransitionError{From: from, Event: event, Err: err}
	}
	return nil
}

func rejection(from models.OrderStatus) error {
	if from.IsTerminal() || from == models.OrderRefundPending {
		return ErrTerminal
	}
	return ErrInvalidTransition
}

// CanShip 发货守卫：没有 VIN，或 VIN 已确认适配
func CanShip(order *models.Order) bool {
	if order == nil {
		return false
	}
	if !NewMachine(order).Can(EventShip) {
		return false
	}
	return order.VehicleDetails == nil ||
		order.VehicleDetails.VerificationStatus == models.VerificationVerified
}

// AllowedActions 当前可执行的操作，供界面禁用不可用的按钮
func AllowedActions(order *models.Order) []string {
	m := NewMachine(order)
	var actions []string
	for _, event := range []string{EventAccept, EventVerify, EventShip, EventDeliver, EventCancel, EventRefund} {
		if !m.Can(event) {
			continue
		}
		switch event {
		case EventVerify:
			if order.VehicleDetails == nil || order.VehicleDetails.VerificationStatus != models.VerificationPending {
				continue
			}
		case EventShip:
			if !CanShip(order) {
				continue
			}
		}
		actions = append(actions, event)
	}
	sort.Strings(actions)
	return actions
}

// Accept 供应商接单 pending → processing
func Accept(order *models.Order, now time.Time) (*models.Order, error) {
	m := NewMachine(order)
	if err := m.Trigger(EventAccept); err != nil {
		return nil, err
	}
	out := m.Order()
	out.UpdatedAt = now
	return out, nil
}

// VerifyFitment 供应商确认 VIN 适配
// outcome 为 failed 时不直接修改校验状态，必须走 RejectFitment 提供取消原因
func VerifyFitment(order *models.Order, outcome models.VerificationStatus, verifierID string, now time.Time) (*models.Order, error) {
	switch outcome {
	case models.VerificationVerified:
	case models.VerificationFailed:
		return nil, ErrUseRejectFitment
	default:
		return nil, fmt.Errorf("%w: verification outcome %q", ErrInvalidTransition, outcome)
	}

	m := NewMachine(order)
	if !m.Can(EventVerify) {
		return nil, &TransitionError{From: order.Status, Event: EventVerify, Err: rejection(order.Status)}
	}
	if order.VehicleDetails == nil || order.VehicleDetails.VINNumber == "" {
		return nil, &TransitionError{From: order.Status, Event: EventVerify, Err: ErrNoVehicleDetails}
	}
	if err := m.Trigger(EventVerify); err != nil {
		return nil, err
	}

	out := m.Order()
	t := now
	out.VehicleDetails.VerificationStatus = models.VerificationVerified
	out.VehicleDetails.VerifiedAt = &t
	out.VehicleDetails.VerifiedBy = verifierID
	out.UpdatedAt = now
	return out, nil
}

// RejectFitment VIN 不适配：经取消流程进入 refund_pending
func RejectFitment(order *models.Order, reason models.CancellationReason, description, vendorID string, now time.Time) (*models.Order, error) {
	if err := checkReason(reason); err != nil {
		return nil, err
	}
	if order.VehicleDetails == nil {
		return nil, &TransitionError{From: order.Status, Event: EventCancel, Err: ErrNoVehicleDetails}
	}
	if order.VehicleDetails.VerificationStatus != models.VerificationPending {
		return nil, &TransitionError{From: order.Status, Event: EventCancel, Err: ErrInvalidTransition}
	}
	return CancelOrder(order, reason, description, vendorID, now)
}

// CancelOrder 取消订单进入 refund_pending，原因必填；支付状态保持不变，等待管理员退款
func CancelOrder(order *models.Order, reason models.CancellationReason, description, cancelledBy string, now time.Time) (*models.Order, error) {
	if err := checkReason(reason); err != nil {
		return nil, err
	}

	m := NewMachine(order)
	if err := m.Trigger(EventCancel); err != nil {
		return nil, err
	}

	out := m.Order()
	out.CancellationReason = reason
	out.CancellationDetails = &models.CancellationDetails{
		Reason:      reason,
		Description: description,
		CancelledBy: cancelledBy,
		CancelledAt: now,
	}
	out.UpdatedAt = now
	return out, nil
}

func checkReason(reason models.CancellationReason) error {
	if reason == "" {
		return ErrReasonRequired
	}
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	return nil
}

// MarkRefunded 管理员确认线下退款 refund_pending → refunded，不可逆
func MarkRefunded(order *models.Order, adminID string, now time.Time) (*models.Order, error) {
	if adminID == "" {
		return nil, ErrActorRequired
	}

	m := NewMachine(order)
	if err := m.Trigger(EventRefund); err != nil {
		return nil, err
	}

	out := m.Order()
	t := now
	out.PaymentStatus = models.PaymentRefunded
	out.RefundedAt = &t
	out.RefundedBy = adminID
	out.UpdatedAt = now
	return out, nil
}

// Ship 发货，受适配守卫约束
func Ship(order *models.Order, now time.Time) (*models.Order, error) {
	m := NewMachine(order)
	if !m.Can(EventShip) {
		return nil, &TransitionError{From: order.Status, Event: EventShip, Err: rejection(order.Status)}
	}
	if !CanShip(order) {
		return nil, &TransitionError{From: order.Status, Event: EventShip, Err: ErrShipBlocked}
	}
	if err := m.Trigger(EventShip); err != nil {
		return nil, err
	}

	out := m.Order()
	t := now
	out.ShippedAt = &t
	out.UpdatedAt = now
	return out, nil
}

// Deliver 确认送达 shipped → delivered
func Deliver(order *models.Order, now time.Time) (*models.Order, error) {
	m := NewMachine(order)
	if err := m.Trigger(EventDeliver); err != nil {
		return nil, err
	}

	out := m.Order()
	t := now
	out.DeliveredAt = &t
	out.UpdatedAt = now
	return out, nil
}
