// Package wizard 车辆消歧向导：品牌 → 车型 → 年份 → [配置] 逐级收敛到具体车辆，另有 VIN 直达路径
package wizard

import "fmt"

// Step 向导步骤
type Step int

const (
	StepBrand Step = iota
	StepModel
	StepYear
	StepVariant
	StepDone
)

var stepNames = [...]string{
	StepBrand:   "brand",
	StepModel:   "model",
	StepYear:    "year",
	StepVariant: "variant",
	StepDone:    "done",
}

// String 状态名，同时作为状态机的状态
func (s Step) String() string {
	if s < StepBrand || s > StepDone {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func parseStep(name string) Step {
	for i, n := range stepNames {
		if n == name {
			return Step(i)
		}
	}
	panic("wizard: unknown step " + name)
}

// MarshalText 序列化为状态名
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode 收敛后的副作用：替换当前车辆，或加入车库
type Mode int

const (
	ModeSelect Mode = iota
	ModeAddToGarage
)

// String 模式名
func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModeAddToGarage:
		return "add-to-garage"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText 序列化为模式名
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode 解析模式，空串视为 select
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "select":
		return ModeSelect, nil
	case "add-to-garage":
		return ModeAddToGarage, nil
	}
	return ModeSelect, fmt.Errorf("unknown wizard mode %q", s)
}

// Source 收敛来源
type Source int

const (
	SourceHierarchy Source = iota
	SourceVIN
)

// String 来源名
func (s Source) String() string {
	switch s {
	case SourceHierarchy:
		return "hierarchy"
	case SourceVIN:
		return "vin"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// MarshalText 序列化为来源名
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome SelectYear 的结果
type Outcome int

const (
	OutcomeResolved     Outcome = iota // 唯一匹配，直接完成
	OutcomeNeedsVariant                // 多条匹配，进入配置选择
	OutcomeNoMatch                     // 没有匹配，停留在年份步骤
)

// String 结果名
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNeedsVariant:
		return "needs_variant"
	case OutcomeNoMatch:
		return "no_match"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText 序列化为结果名
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
