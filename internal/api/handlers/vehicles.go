package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/models"
)

// GetHierarchy 品牌 → 车型 → 年份 层级
func (h *Handler) GetHierarchy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.catalog.Hierarchy()})
}

// ResolveSavedVehicle 在最新层级中还原已保存的复合 ID
// GET /api/vehicles/resolve/:savedId
func (h *Handler) ResolveSavedVehicle(c *gin.Context) {
	v, err := h.catalog.SavedVehicle(c.Param("savedId"))
	if err != nil {
		h.fail(c, "Failed to resolve saved vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

// UpsertVehicle 新增或修改车辆记录，层级随即重建
func (h *Handler) UpsertVehicle(c *gin.Context) {
	var rec models.VehicleRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle record"})
		return
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	if err := h.catalog.UpsertVehicle(c.Request.Context(), &rec); err != nil {
		h.fail(c, "Failed to save vehicle", err)
		return
	}

	h.logger.Info("Vehicle record saved via API",
		zap.String("id", rec.ID),
		zap.String("actor", actor(c).ID))
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// DeleteVehicle 删除车辆记录
func (h *Handler) DeleteVehicle(c *gin.Context) {
	if err := h.catalog.DeleteVehicle(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "Failed to delete vehicle", err)
		return
	}
	c.Status(http.StatusNoContent)
}
