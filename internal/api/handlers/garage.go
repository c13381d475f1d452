package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/partfit/internal/models"
)

// setActiveRequest 指定已保存的复合 ID 或直接给出车辆
type setActiveRequest struct {
	SavedVehicleID string                  `json:"savedVehicleId"`
	Vehicle        *models.SelectedVehicle `json:"vehicle"`
}

// GetGarage 车库和当前车辆
func (h *Handler) GetGarage(c *gin.Context) {
	p, err := h.garage.Profile(c.Request.Context(), actor(c).ID)
	if err != nil {
		h.fail(c, "Failed to load garage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// AddToGarage 加入车库；重复加入返回 added=false
func (h *Handler) AddToGarage(c *gin.Context) {
	var v models.SelectedVehicle
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle"})
		return
	}
	p, added, err := h.garage.AddToGarage(c.Request.Context(), actor(c).ID, v)
	if err != nil {
		h.fail(c, "Failed to add vehicle", err)
		return
	}
	resp := gin.H{"data": p, "added": added}
	if !added {
		resp["message"] = "Vehicle already in garage"
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveFromGarage 移出车库，幂等
func (h *Handler) RemoveFromGarage(c *gin.Context) {
	p, err := h.garage.RemoveFromGarage(c.Request.Context(), actor(c).ID, c.Param("vehicleId"))
	if err != nil {
		h.fail(c, "Failed to remove vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// ActivateGarageVehicle 将车库中的车辆设为当前车辆
func (h *Handler) ActivateGarageVehicle(c *gin.Context) {
	p, err := h.garage.ActivateGarageVehicle(c.Request.Context(), actor(c).ID, c.Param("vehicleId"))
	if err != nil {
		h.fail(c, "Failed to activate vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// GetActiveVehicle 当前车辆，可能为空
func (h *Handler) GetActiveVehicle(c *gin.Context) {
	v, ok := h.activeVehicle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

// SetActiveVehicle 替换当前车辆
// PUT /api/garage/active
func (h *Handler) SetActiveVehicle(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var (
		v       *models.SelectedVehicle
		savedID string
		err     error
	)
	switch {
	case req.SavedVehicleID != "":
		v, err = h.catalog.SavedVehicle(req.SavedVehicleID)
		if err != nil {
			h.fail(c, "Failed to resolve saved vehicle", err)
			return
		}
		savedID = req.SavedVehicleID
	case req.Vehicle != nil && req.Vehicle.Make != "" && req.Vehicle.Model != "":
		v = req.Vehicle
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "savedVehicleId or vehicle is required"})
		return
	}

	p, err := h.garage.SetActiveVehicle(c.Request.Context(), actor(c).ID, *v, savedID)
	if err != nil {
		h.fail(c, "Failed to set active vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// ClearActiveVehicle 清空当前车辆
func (h *Handler) ClearActiveVehicle(c *gin.Context) {
	p, err := h.garage.ClearActiveVehicle(c.Request.Context(), actor(c).ID)
	if err != nil {
		h.fail(c, "Failed to clear active vehicle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}
