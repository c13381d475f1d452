package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/service"
	"github.com/langchou/partfit/internal/state"
)

// orderResponse 订单及当前可执行操作，界面据此禁用按钮
type orderResponse struct {
	*models.Order
	AllowedActions []string `json:"allowedActions"`
}

type cancelRequest struct {
	Reason      models.CancellationReason `json:"reason"`
	Description string                    `json:"description"`
}

func newOrderResponse(o *models.Order) orderResponse {
	actions := state.AllowedActions(o)
	if actions == nil {
		actions = []string{}
	}
	return orderResponse{Order: o, AllowedActions: actions}
}

// Checkout 下单
func (h *Handler) Checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order"})
		return
	}
	o, err := h.orders.Checkout(c.Request.Context(), actor(c), req)
	if err != nil {
		h.fail(c, "Failed to create order", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newOrderResponse(o)})
}

// ListOrders 按角色列出订单
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.List(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, "Failed to list orders", err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newOrderResponse(o)})
}

type orderAction func(ctx context.Context, a models.Actor, id string) (*models.Order, error)

func (h *Handler) runOrderAction(c *gin.Context, msg string, fn orderAction) {
	o, err := fn(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, msg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newOrderResponse(o)})
}

// AcceptOrder 供应商接单
func (h *Handler) AcceptOrder(c *gin.Context) {
	h.runOrderAction(c, "Failed to accept order", h.orders.Accept)
}

// VerifyFitment 确认 VIN 适配
func (h *Handler) VerifyFitment(c *gin.Context) {
	h.runOrderAction(c, "Failed to verify fitment", h.orders.VerifyFitment)
}

// ShipOrder 发货；VIN 未确认适配时返回 409
func (h *Handler) ShipOrder(c *gin.Context) {
	h.runOrderAction(c, "Failed to ship order", h.orders.Ship)
}

// DeliverOrder 确认送达
func (h *Handler) DeliverOrder(c *gin.Context) {
	h.runOrderAction(c, "Failed to deliver order", h.orders.Deliver)
}

// RefundOrder 管理员确认退款
func (h *Handler) RefundOrder(c *gin.Context) {
	h.runOrderAction(c, "Failed to refund order", h.orders.MarkOrderRefunded)
}

// RejectFitment 判定不适配，必须给出原因
func (h *Handler) RejectFitment(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	h.runOrderAction(c, "Failed to reject fitment", func(ctx context.Context, a models.Actor, id string) (*models.Order, error) {
		return h.orders.RejectFitment(ctx, a, id, req.Reason, req.Description)
	})
}

// CancelOrder 取消订单进入待退款
func (h *Handler) CancelOrder(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	h.runOrderAction(c, "Failed to cancel order", func(ctx context.Context, a models.Actor, id string) (*models.Order, error) {
		return h.orders.CancelOrder(ctx, a, id, req.Reason, req.Description)
	})
}
