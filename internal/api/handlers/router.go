package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/api/middleware"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/pkg/ws"
)

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	vendorOrAdmin := middleware.RequireRole(models.RoleVendor, models.RoleAdmin)

	// API 路由
	api := r.Group("/api", h.auth.Authenticate())
	{
		// 车辆层级
		api.GET("/vehicles/hierarchy", h.GetHierarchy)
		api.GET("/vehicles/resolve/:savedId", h.ResolveSavedVehicle)
		api.POST("/vehicles", middleware.RequireRole(models.RoleAdmin), h.UpsertVehicle)
		api.DELETE("/vehicles/:id", middleware.RequireRole(models.RoleAdmin), h.DeleteVehicle)

		// 向导
		api.POST("/wizard", h.StartWizard)
		api.GET("/wizard/:id", h.GetWizard)
		api.DELETE("/wizard/:id", h.CloseWizard)
		api.POST("/wizard/:id/brand", h.WizardSelectBrand)
		api.POST("/wizard/:id/model", h.WizardSelectModel)
		api.POST("/wizard/:id/year", h.WizardSelectYear)
		api.POST("/wizard/:id/variant", h.WizardSelectVariant)
		api.POST("/wizard/:id/back", h.WizardBack)
		api.POST("/wizard/:id/reset", h.WizardReset)
		api.POST("/wizard/:id/jump", h.WizardJump)
		api.POST("/wizard/:id/query", h.WizardQuery)
		api.POST("/wizard/:id/vin", h.WizardSubmitVIN)
		api.DELETE("/wizard/:id/vin", h.WizardExitVIN)
		api.POST("/wizard/:id/vin/confirm", h.WizardConfirmVIN)
		api.POST("/wizard/:id/vin/reject", h.WizardRejectVIN)

		// 商品
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/fit", h.GetProductFit)
		api.POST("/products", vendorOrAdmin, h.UpsertProduct)
		api.POST("/products/suggest", vendorOrAdmin, h.SuggestCompatibility)
		api.GET("/categories/counts", h.GetCategoryCounts)

		// 车库
		api.GET("/garage", h.GetGarage)
		api.POST("/garage", h.AddToGarage)
		api.DELETE("/garage/:vehicleId", h.RemoveFromGarage)
		api.POST("/garage/:vehicleId/activate", h.ActivateGarageVehicle)
		api.GET("/garage/active", h.GetActiveVehicle)
		api.PUT("/garage/active", h.SetActiveVehicle)
		api.DELETE("/garage/active", h.ClearActiveVehicle)

		// 订单
		api.POST("/orders", middleware.RequireRole(models.RoleBuyer), h.Checkout)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders/:id/accept", h.AcceptOrder)
		api.POST("/orders/:id/verify", h.VerifyFitment)
		api.POST("/orders/:id/reject", h.RejectFitment)
		api.POST("/orders/:id/cancel", h.CancelOrder)
		api.POST("/orders/:id/ship", h.ShipOrder)
		api.POST("/orders/:id/deliver", h.DeliverOrder)
		api.POST("/orders/:id/refund", h.RefundOrder)
	}

	// WebSocket
	r.GET("/ws", h.auth.Authenticate(), h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn, actor(c))
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"brands":     len(h.catalog.Hierarchy()),
		"ws_clients": h.wsHub.ClientCount(),
	})
}
