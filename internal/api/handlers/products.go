package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

type productResponse struct {
	models.Product
	Fits bool `json:"fits"`
}

type suggestRequest struct {
	Title    string `json:"title" binding:"required"`
	Category string `json:"category"`
}

// activeVehicle 调用方当前车辆，没有时为 nil
func (h *Handler) activeVehicle(c *gin.Context) (*models.SelectedVehicle, bool) {
	v, err := h.garage.ActiveVehicle(c.Request.Context(), actor(c).ID)
	if err != nil {
		h.fail(c, "Failed to load active vehicle", err)
		return nil, false
	}
	return v, true
}

// ListProducts 搜索商品
// GET /api/products?q=&category=&all=
// 有当前车辆时只返回适配商品；all=true 时返回全部并带上适配标记
func (h *Handler) ListProducts(c *gin.Context) {
	vehicle, ok := h.activeVehicle(c)
	if !ok {
		return
	}
	all, _ := strconv.ParseBool(c.Query("all"))

	scope := vehicle
	if all {
		scope = nil
	}
	products := h.catalog.SearchProducts(c.Query("q"), c.Query("category"), scope)

	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, productResponse{
			Product: products[i],
			Fits:    fitment.IsCompatible(&products[i], vehicle),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "vehicle": vehicle})
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Product(c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// GetProductFit "适配你的车"标记
func (h *Handler) GetProductFit(c *gin.Context) {
	vehicle, ok := h.activeVehicle(c)
	if !ok {
		return
	}
	fits, err := h.catalog.Fits(c.Param("id"), vehicle)
	if err != nil {
		h.fail(c, "Failed to check fitment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"product_id": c.Param("id"),
		"fits":       fits,
		"vehicle":    vehicle,
	}})
}

// GetCategoryCounts 各分类商品数，限定在当前车辆适配范围内
func (h *Handler) GetCategoryCounts(c *gin.Context) {
	vehicle, ok := h.activeVehicle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.catalog.CategoryCounts(vehicle)})
}

// UpsertProduct 供应商发布或修改商品
func (h *Handler) UpsertProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product"})
		return
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}

	if err := h.catalog.UpsertProduct(c.Request.Context(), actor(c), &p); err != nil {
		h.fail(c, "Failed to save product", err)
		return
	}

	h.logger.Info("Product saved via API",
		zap.String("product_id", p.ID),
		zap.Int("compatible", len(p.CompatibleVehicles)))
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// SuggestCompatibility AI 兼容车型建议，失败时返回空列表
func (h *Handler) SuggestCompatibility(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.catalog.SuggestCompatibility(c.Request.Context(), req.Title, req.Category)})
}
