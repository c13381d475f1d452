package wizard

import (
	"sort"
	"strconv"

	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

// Brands 品牌步骤的候选列表
func (f *Flow) Brands() []models.WizardBrand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterBrands()
}

func (f *Flow) filterBrands() []models.WizardBrand {
	q := f.normalizedQuery()
	out := make([]models.WizardBrand, 0, len(f.brands))
	for _, b := range f.brands {
		if q == "" || containsFold(b.Name, q) {
			out = append(out, b)
		}
	}
	return out
}

// Models 车型步骤的候选列表
func (f *Flow) Models() []models.WizardModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterModels()
}

func (f *Flow) filterModels() []models.WizardModel {
	if f.brand == nil {
		return nil
	}
	q := f.normalizedQuery()
	out := make([]models.WizardModel, 0, len(f.brand.Models))
	for _, m := range f.brand.Models {
		if q == "" || containsFold(m.Name, q) {
			out = append(out, m)
		}
	}
	return out
}

// Years 年份步骤的候选列表
func (f *Flow) Years() []models.WizardYear {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterYears()
}

func (f *Flow) filterYears() []models.WizardYear {
	if f.model == nil {
		return nil
	}
	q := f.normalizedQuery()
	out := make([]models.WizardYear, 0, len(f.model.Years))
	for _, y := range f.model.Years {
		if q == "" || containsFold(strconv.Itoa(y.Year), q) {
			out = append(out, y)
		}
	}
	return out
}

// Variants 配置步骤的候选记录，按底盘/发动机/燃料/车身过滤
func (f *Flow) Variants() []models.VehicleRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterVariants()
}

func (f *Flow) filterVariants() []models.VehicleRecord {
	q := f.normalizedQuery()
	out := make([]models.VehicleRecord, 0, len(f.variants))
	for _, rec := range f.variants {
		if q == "" ||
			containsFold(rec.ChassisCode, q) ||
			containsFold(rec.EngineCode, q) ||
			containsFold(rec.FuelType, q) ||
			containsFold(rec.BodyType, q) {
			out = append(out, rec)
		}
	}
	return out
}

// Suggestions 品牌步骤的全局直达搜索
func (f *Flow) Suggestions() []Suggestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestions()
}

func (f *Flow) suggestions() []Suggestion {
	if f.step() != StepBrand {
		return nil
	}
	q := f.normalizedQuery()
	if len([]rune(q)) < MinSuggestionQuery {
		return nil
	}

	var out []Suggestion
	for _, b := range f.brands {
		for _, m := range b.Models {
			if containsFold(m.Name, q) || containsFold(b.Name+" "+m.Name, q) {
				out = append(out, Suggestion{
					BrandID:   b.ID,
					BrandName: b.Name,
					ModelID:   m.ID,
					ModelName: m.Name,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModelName != out[j].ModelName {
			return fitment.LessFold(out[i].ModelName, out[j].ModelName)
		}
		return fitment.LessFold(out[i].BrandName, out[j].BrandName)
	})
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// View 向导状态快照
type View struct {
	Step        Step                   `json:"step"`
	Mode        Mode                   `json:"mode"`
	Query       string                 `json:"query,omitempty"`
	Brand       string                 `json:"brand,omitempty"`
	Model       string                 `json:"model,omitempty"`
	Year        int                    `json:"year,omitempty"`
	Brands      []models.WizardBrand   `json:"brands,omitempty"`
	Models      []models.WizardModel   `json:"models,omitempty"`
	Years       []models.WizardYear    `json:"years,omitempty"`
	Variants    []models.VehicleRecord `json:"variants,omitempty"`
	Suggestions []Suggestion           `json:"suggestions,omitempty"`
	VINMode     bool                   `json:"vinMode"`
	PendingVIN  *models.DecodedVehicle `json:"pendingVin,omitempty"`
	Result      *Resolution            `json:"result,omitempty"`
}

// View 返回当前步骤可见的内容
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Step:       f.step(),
		Mode:       f.opts.Mode,
		Query:      f.query,
		VINMode:    f.vinMode,
		PendingVIN: f.pendingVIN,
		Result:     f.result,
	}
	if f.brand != nil {
		v.Brand = f.brand.Name
	}
	if f.model != nil {
		v.Model = f.model.Name
	}
	v.Year = f.year

	switch v.Step {
	case StepBrand:
		v.Brands = f.filterBrands()
		v.Suggestions = f.suggestions()
	case StepModel:
		v.Models = f.filterModels()
	case StepYear:
		v.Years = f.filterYears()
	case StepVariant:
		v.Variants = f.filterVariants()
	case StepDone:
	}
	return v
}
