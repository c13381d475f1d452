package fitment

import "github.com/langchou/partfit/internal/models"

// Garage 用户车库：有序、无上限，按车辆 ID 去重
type Garage []models.SelectedVehicle

// Add 不存在时追加；重复 ID 返回 added=false，不视为错误
func (g Garage) Add(v models.SelectedVehicle) (Garage, bool) {
	if _, ok := g.Find(v.ID); ok {
		return g, false
	}
	out := make(Garage, len(g), len(g)+1)
	copy(out, g)
	return append(out, v), true
}

// Remove 按 ID 移除，ID 不存在时为空操作
func (g Garage) Remove(vehicleID string) Garage {
	out := make(Garage, 0, len(g))
	for _, v := range g {
		if v.ID != vehicleID {
			out = append(out, v)
		}
	}
	return out
}

// Find 按 ID 查找
func (g Garage) Find(vehicleID string) (models.SelectedVehicle, bool) {
	for _, v := range g {
		if v.ID == vehicleID {
			return v, true
		}
	}
	return models.SelectedVehicle{}, false
}
