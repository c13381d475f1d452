package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/partfit/internal/wizard"
)

type startWizardRequest struct {
	Mode string `json:"mode"`
}

type idRequest struct {
	ID string `json:"id" binding:"required"`
}

type yearRequest struct {
	Year int `json:"year" binding:"required,min=1"`
}

type jumpRequest struct {
	BrandID string `json:"brandId" binding:"required"`
	ModelID string `json:"modelId" binding:"required"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type vinRequest struct {
	VIN string `json:"vin" binding:"required"`
}

func (h *Handler) flow(c *gin.Context) (*wizard.Flow, bool) {
	flow, err := h.wizards.Flow(actor(c).ID, c.Param("id"))
	if err != nil {
		h.fail(c, "Wizard session not found", err)
		return nil, false
	}
	return flow, true
}

func (h *Handler) respondView(c *gin.Context, flow *wizard.Flow, extra gin.H) {
	data := gin.H{
		"session_id": c.Param("id"),
		"view":       flow.View(),
	}
	for k, v := range extra {
		data[k] = v
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// StartWizard 开启向导会话，mode 为 select 或 add-to-garage
func (h *Handler) StartWizard(c *gin.Context) {
	var req startWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	mode, err := wizard.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, flow := h.wizards.Start(actor(c).ID, mode)
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"session_id": id,
		"view":       flow.View(),
	}})
}

// GetWizard 当前步骤的可见内容
func (h *Handler) GetWizard(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	h.respondView(c, flow, nil)
}

// CloseWizard 结束会话
func (h *Handler) CloseWizard(c *gin.Context) {
	h.wizards.Close(actor(c).ID, c.Param("id"))
	c.Status(http.StatusNoContent)
}

// WizardSelectBrand 选择品牌
func (h *Handler) WizardSelectBrand(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid brand"})
		return
	}
	if err := flow.SelectBrand(req.ID); err != nil {
		h.fail(c, "Failed to select brand", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardSelectModel 选择车型
func (h *Handler) WizardSelectModel(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model"})
		return
	}
	if err := flow.SelectModel(req.ID); err != nil {
		h.fail(c, "Failed to select model", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardSelectYear 选择年份，唯一匹配时直接完成
func (h *Handler) WizardSelectYear(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req yearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
		return
	}
	outcome, err := flow.SelectYear(c.Request.Context(), req.Year)
	if err != nil {
		h.fail(c, "Failed to select year", err)
		return
	}
	h.respondView(c, flow, gin.H{"outcome": outcome})
}

// WizardSelectVariant 在候选配置中选择
func (h *Handler) WizardSelectVariant(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant"})
		return
	}
	if err := flow.SelectVariant(c.Request.Context(), req.ID); err != nil {
		h.fail(c, "Failed to select variant", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardBack 后退一步
func (h *Handler) WizardBack(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.GoBack(); err != nil {
		h.fail(c, "Failed to go back", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardReset 回到品牌步骤
func (h *Handler) WizardReset(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.Reset(); err != nil {
		h.fail(c, "Failed to reset wizard", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardJump 搜索直达：从品牌步骤跳到年份步骤
func (h *Handler) WizardJump(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req jumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid jump target"})
		return
	}
	if err := flow.DirectJump(req.BrandID, req.ModelID); err != nil {
		h.fail(c, "Failed to jump", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardQuery 更新当前步骤的过滤关键字
func (h *Handler) WizardQuery(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}
	flow.SetQuery(req.Query)
	h.respondView(c, flow, nil)
}

// WizardSubmitVIN 进入 VIN 模式并解码
func (h *Handler) WizardSubmitVIN(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	var req vinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VIN"})
		return
	}
	flow.EnterVINMode()
	decoded, err := flow.SubmitVIN(c.Request.Context(), req.VIN)
	if err != nil {
		h.fail(c, "Failed to decode VIN", err)
		return
	}
	h.respondView(c, flow, gin.H{"decoded": decoded})
}

// WizardExitVIN 退出 VIN 模式，回到逐级选择
func (h *Handler) WizardExitVIN(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	flow.ExitVINMode()
	h.respondView(c, flow, nil)
}

// WizardConfirmVIN 确认解码结果
func (h *Handler) WizardConfirmVIN(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.ConfirmVIN(c.Request.Context()); err != nil {
		h.fail(c, "Failed to confirm VIN", err)
		return
	}
	h.respondView(c, flow, nil)
}

// WizardRejectVIN 放弃解码结果
func (h *Handler) WizardRejectVIN(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.RejectVIN(); err != nil {
		h.fail(c, "Failed to reject VIN", err)
		return
	}
	h.respondView(c, flow, nil)
}
