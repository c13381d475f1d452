package fitment

import (
	"fmt"
	"strings"

	"github.com/langchou/partfit/internal/models"
)

// SearchKey 兼容项唯一键 vehicleId_year
func SearchKey(vehicleID string, year int) string {
	return fmt.Sprintf("%s_%d", vehicleID, year)
}

// NewCompatibleVariant 由车辆记录和年份生成兼容项
func NewCompatibleVariant(rec models.VehicleRecord, year int) models.CompatibleVariant {
	return models.CompatibleVariant{
		VehicleID: rec.ID,
		Make:      rec.Make,
		Model:     rec.Model,
		Year:      year,
		SearchKey: SearchKey(rec.ID, year),
	}
}

// MergeVariants 追加兼容项，按 searchKey 去重，保持原有顺序
func MergeVariants(existing []models.CompatibleVariant, add ...models.CompatibleVariant) []models.CompatibleVariant {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]models.CompatibleVariant, 0, len(existing)+len(add))
	for _, list := range [][]models.CompatibleVariant{existing, add} {
		for _, v := range list {
			if v.SearchKey == "" {
				v.SearchKey = SearchKey(v.VehicleID, v.Year)
			}
			if _, dup := seen[v.SearchKey]; dup {
				continue
			}
			seen[v.SearchKey] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// VariantsForRecords 为一组车辆记录的全部年份生成兼容项
func VariantsForRecords(records []models.VehicleRecord, currentYear int) []models.CompatibleVariant {
	var out []models.CompatibleVariant
	for _, rec := range records {
		for _, y := range ResolveYearsAt(rec, currentYear) {
			out = append(out, NewCompatibleVariant(rec, y))
		}
	}
	return MergeVariants(nil, out...)
}

// IsCompatible 商品是否适配所选车辆
// make、model 不区分大小写；仅当车辆带具体年份时才比较年份
func IsCompatible(product *models.Product, vehicle *models.SelectedVehicle) bool {
	if product == nil || vehicle == nil {
		return false
	}
	for _, v := range product.CompatibleVehicles {
		if variantMatches(v, vehicle) {
			return true
		}
	}
	return false
}

func variantMatches(v models.CompatibleVariant, vehicle *models.SelectedVehicle) bool {
	if !strings.EqualFold(strings.TrimSpace(v.Make), strings.TrimSpace(vehicle.Make)) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(v.Model), strings.TrimSpace(vehicle.Model)) {
		return false
	}
	if vehicle.Year != nil && v.Year != *vehicle.Year {
		return false
	}
	return true
}

// FilterCompatible 过滤出适配车辆的商品；vehicle 为空时原样返回
func FilterCompatible(products []models.Product, vehicle *models.SelectedVehicle) []models.Product {
	if vehicle == nil {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for i := range products {
		if IsCompatible(&products[i], vehicle) {
			out = append(out, products[i])
		}
	}
	return out
}

// SearchProducts 目录搜索：标题/分类子串匹配，再按当前车辆过滤
func SearchProducts(products []models.Product, query, category string, vehicle *models.SelectedVehicle) []models.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Product, 0, len(products))
	for _, p := range FilterCompatible(products, vehicle) {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// CategoryCounts 各分类商品数，限定在当前车辆适配范围内
func CategoryCounts(products []models.Product, vehicle *models.SelectedVehicle) map[string]int {
	counts := make(map[string]int)
	for _, p := range FilterCompatible(products, vehicle) {
		counts[p.Category]++
	}
	return counts
}
