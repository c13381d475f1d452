package events

import (
	"time"

	"github.com/langchou/partfit/internal/models"
)

// OrderEvent 订单变更事件，在持久化成功后发布
type OrderEvent struct {
	Action string        `json:"action"`
	Actor  string        `json:"actor,omitempty"`
	Order  *models.Order `json:"order"`
	At     time.Time     `json:"at"`
}

// CatalogEvent 车辆目录重建事件
type CatalogEvent struct {
	Records int       `json:"records"`
	Brands  int       `json:"brands"`
	At      time.Time `json:"at"`
}
