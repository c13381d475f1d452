package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/api/middleware"
	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/service"
	"github.com/langchou/partfit/internal/state"
	"github.com/langchou/partfit/internal/wizard"
	"github.com/langchou/partfit/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	catalog  *service.CatalogService
	orders   *service.OrderService
	garage   *service.GarageService
	wizards  *service.WizardService
	auth     *middleware.Auth
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	catalog *service.CatalogService,
	orders *service.OrderService,
	garage *service.GarageService,
	wizards *service.WizardService,
	auth *middleware.Auth,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:  logger,
		catalog: catalog,
		orders:  orders,
		garage:  garage,
		wizards: wizards,
		auth:    auth,
		wsHub:   wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// actor 已认证的调用方；路由都挂在 Authenticate 之后
func actor(c *gin.Context) models.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

// statusOf 将领域错误映射为 HTTP 状态码
func statusOf(err error) int {
	var lookupErr *wizard.LookupError
	var transitionErr *state.TransitionError

	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, wizard.ErrVINNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, fitment.ErrInvalidVIN),
		errors.Is(err, state.ErrReasonRequired),
		errors.Is(err, state.ErrInvalidReason),
		errors.Is(err, state.ErrUseRejectFitment),
		errors.Is(err, wizard.ErrUnknownBrand),
		errors.Is(err, wizard.ErrUnknownModel),
		errors.Is(err, wizard.ErrUnknownYear),
		errors.Is(err, wizard.ErrUnknownVariant):
		return http.StatusBadRequest
	case errors.As(err, &transitionErr),
		errors.Is(err, state.ErrShipBlocked),
		errors.Is(err, wizard.ErrWrongStep),
		errors.Is(err, wizard.ErrNoPendingVIN):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrNoDecoder):
		return http.StatusServiceUnavailable
	case errors.As(err, &lookupErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail 输出错误响应，未识别的错误记录日志且不回显
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
