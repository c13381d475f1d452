// Package fitment 车辆适配核心：年份归一化、品牌/车型/年份层级构建、配件兼容性判断、车库列表
package fitment

import (
	"sort"
	"time"

	"github.com/langchou/partfit/internal/models"
)

// CurrentYear 当前公历年份
func CurrentYear() int {
	return time.Now().Year()
}

// ResolveYears 将记录的三种年份表示归一为去重、降序、非空的年份序列
func ResolveYears(rec models.VehicleRecord) []int {
	return ResolveYearsAt(rec, CurrentYear())
}

// ResolveYearsAt 同 ResolveYears，使用给定的当前年份
func ResolveYearsAt(rec models.VehicleRecord, currentYear int) []int {
	years, _ := LookupYears(rec, currentYear)
	return years
}

// LookupYears 返回记录支持的年份；第二个返回值为 false 表示记录中没有任何年份信息，
// 结果是回退的 [currentYear]。超出 [MinModelYear, currentYear+MaxYearsAhead] 的年份被忽略，
// 区间两端按该范围截断
func LookupYears(rec models.VehicleRecord, currentYear int) ([]int, bool) {
	set := make(map[int]struct{})
	minYear, maxYear := models.MinModelYear, currentYear+models.MaxYearsAhead
	inRange := func(y int) bool { return y >= minYear && y <= maxYear }

	if rec.Year != nil && inRange(*rec.Year) {
		set[*rec.Year] = struct{}{}
	}
	for _, y := range rec.Years {
		if inRange(y) {
			set[y] = struct{}{}
		}
	}
	if rec.YearStart != nil && *rec.YearStart > 0 {
		start := max(*rec.YearStart, minYear)
		end := currentYear
		if rec.YearEnd != nil && *rec.YearEnd > 0 {
			end = min(*rec.YearEnd, maxYear)
		}
		for y := start; y <= end; y++ {
			set[y] = struct{}{}
		}
	}

	if len(set) == 0 {
		return []int{currentYear}, false
	}

	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, true
}

// SupportsYear 记录是否覆盖指定年份
func SupportsYear(rec models.VehicleRecord, year, currentYear int) bool {
	for _, y := range ResolveYearsAt(rec, currentYear) {
		if y == year {
			return true
		}
	}
	return false
}
