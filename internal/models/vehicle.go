package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidVehicleRecord 车辆记录不合法
var ErrInvalidVehicleRecord = errors.New("invalid vehicle record")

// VehicleRecord 车辆原始记录（存储中的形态）
// 年份有三种表示：Year 单年、Years 年份列表、YearStart/YearEnd 区间，允许同时存在
type VehicleRecord struct {
	ID          string    `json:"id" db:"id"`
	Make        string    `json:"make" db:"make"`
	Model       string    `json:"model" db:"model"`
	BodyType    string    `json:"bodyType,omitempty" db:"body_type"`
	ChassisCode string    `json:"chassisCode,omitempty" db:"chassis_code"`
	EngineCode  string    `json:"engineCode,omitempty" db:"engine_code"`
	FuelType    string    `json:"fuelType,omitempty" db:"fuel_type"`
	Year        *int      `json:"year,omitempty" db:"year"`
	Years       []int     `json:"years,omitempty" db:"years"`
	YearStart   *int      `json:"yearStart,omitempty" db:"year_start"`
	YearEnd     *int      `json:"yearEnd,omitempty" db:"year_end"` // 为空表示仍在生产
	ImageURL    string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// MinModelYear 最早的合法车型年份
const MinModelYear = 1886

// MaxYearsAhead 车型年份最多领先当前年份的年数
const MaxYearsAhead = 2

// Validate 校验记录不变量：make/model 非空，年份在合理区间内，区间不倒置
func (r *VehicleRecord) Validate() error {
	return r.ValidateAt(time.Now().Year())
}

// ValidateAt 同 Validate，使用给定的当前年份
func (r *VehicleRecord) ValidateAt(currentYear int) error {
	if strings.TrimSpace(r.Make) == "" {
		return fmt.Errorf("%w: make is empty", ErrInvalidVehicleRecord)
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: model is empty", ErrInvalidVehicleRecord)
	}
	maxYear := currentYear + MaxYearsAhead
	check := func(field string, y int) error {
		if y < MinModelYear || y > maxYear {
			return fmt.Errorf("%w: %s %d outside %d-%d", ErrInvalidVehicleRecord, field, y, MinModelYear, maxYear)
		}
		return nil
	}
	if r.Year != nil {
		if err := check("year", *r.Year); err != nil {
			return err
		}
	}
	for _, y := range r.Years {
		if err := check("years", y); err != nil {
			return err
		}
	}
	if r.YearStart != nil {
		if err := check("yearStart", *r.YearStart); err != nil {
			return err
		}
	}
	if r.YearEnd != nil {
		if err := check("yearEnd", *r.YearEnd); err != nil {
			return err
		}
	}
	if r.YearStart != nil && r.YearEnd != nil && *r.YearStart > *r.YearEnd {
		return fmt.Errorf("%w: yearStart %d after yearEnd %d", ErrInvalidVehicleRecord, *r.YearStart, *r.YearEnd)
	}
	return nil
}

// SelectedVehicle 用户当前"驾驶"的具体车辆，用于兼容性过滤
type SelectedVehicle struct {
	ID          string `json:"id"`
	RecordID    string `json:"recordId,omitempty"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        *int   `json:"year,omitempty"` // 为空表示只按 make/model 匹配
	BodyType    string `json:"bodyType,omitempty"`
	ChassisCode string `json:"chassisCode,omitempty"`
	EngineCode  string `json:"engineCode,omitempty"`
	FuelType    string `json:"fuelType,omitempty"`
	VIN         string `json:"vin,omitempty"`
}

// Label 展示用名称
func (v SelectedVehicle) Label() string {
	if v.Year != nil {
		return fmt.Sprintf("%d %s %s", *v.Year, v.Make, v.Model)
	}
	return v.Make + " " + v.Model
}

// DecodedVehicle VIN 解码结果
type DecodedVehicle struct {
	VIN      string `json:"vin"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
	BodyType string `json:"bodyType,omitempty"`
}

// WizardBrand 品牌层级节点
type WizardBrand struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Logo   string        `json:"logo"`
	Models []WizardModel `json:"models"`
}

// WizardModel 车型层级节点
type WizardModel struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Type  string       `json:"type"`
	Image string       `json:"image"`
	Years []WizardYear `json:"years"`
}

// WizardYear 年份层级节点
type WizardYear struct {
	ID    string `json:"id"`
	Year  int    `json:"year"`
	Range string `json:"range,omitempty"`
}

// IntPtr 返回 int 指针
func IntPtr(v int) *int {
	return &v
}
