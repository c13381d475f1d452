package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CompatibleVariant 配件的一条兼容车辆 (Make, Model, Year)
type CompatibleVariant struct {
	VehicleID string `json:"vehicleId"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	SearchKey string `json:"searchKey"` // vehicleId_year，同一商品内唯一
}

// CompatibleVariants 兼容列表，以 JSONB 存储
type CompatibleVariants []CompatibleVariant

// Value 实现 driver.Valuer 接口
func (v CompatibleVariants) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner 接口
func (v *CompatibleVariants) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("scan compatible variants: unsupported type %T", value)
	}
}

// Product 配件商品
type Product struct {
	ID                 string             `json:"id" db:"id"`
	VendorID           string             `json:"vendorId" db:"vendor_id"`
	Title              string             `json:"title" db:"title"`
	Category           string             `json:"category" db:"category"`
	Description        string             `json:"description,omitempty" db:"description"`
	PriceCents         int64              `json:"priceCents" db:"price_cents"`
	Stock              int                `json:"stock" db:"stock"`
	ImageURL           string             `json:"imageUrl,omitempty" db:"image_url"`
	CompatibleVehicles CompatibleVariants `json:"compatibleVehicles" db:"compatible_vehicles"`
	CreatedAt          time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time          `json:"updatedAt" db:"updated_at"`
}
