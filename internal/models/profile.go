package models

import "time"

// Profile 用户资料中与车辆相关的部分
type Profile struct {
	UserID         string            `json:"userId" db:"user_id"`
	SavedVehicleID string            `json:"savedVehicleId,omitempty" db:"saved_vehicle_id"` // 层级复合 ID
	ActiveVehicle  *SelectedVehicle  `json:"activeVehicle,omitempty" db:"active_vehicle"`
	Garage         []SelectedVehicle `json:"garage" db:"garage"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}
