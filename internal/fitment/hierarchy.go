package fitment

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/langchou/partfit/internal/models"
)

// UnknownBodyType 未填写车身类型时的默认值
const UnknownBodyType = "Unknown"

// AssetLookup 品牌 logo / 车型图片查询，返回空串表示未知
type AssetLookup interface {
	BrandLogo(brand string) string
	ModelImage(brand, model string) string
}

// StaticAssets 基于内存表的资源查询
type StaticAssets struct {
	Logos  map[string]string // key: 小写品牌
	Images map[string]string // key: 小写品牌/车型
}

// BrandLogo 查询品牌 logo
func (a StaticAssets) BrandLogo(brand string) string {
	return a.Logos[strings.ToLower(strings.TrimSpace(brand))]
}

// ModelImage 查询车型图片
func (a StaticAssets) ModelImage(brand, model string) string {
	return a.Images[strings.ToLower(strings.TrimSpace(brand))+"/"+strings.ToLower(strings.TrimSpace(model))]
}

// URLAssets 按约定路径拼接资源地址
type URLAssets struct {
	BaseURL string
}

// BrandLogo {base}/brands/{brand}.png
func (a URLAssets) BrandLogo(brand string) string {
	if a.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(a.BaseURL, "/") + "/brands/" + Slug(brand) + ".png"
}

// ModelImage {base}/models/{brand}/{model}.png
func (a URLAssets) ModelImage(brand, model string) string {
	if a.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(a.BaseURL, "/") + "/models/" + Slug(brand) + "/" + Slug(model) + ".png"
}

// Placeholder 生成占位图地址
func Placeholder(text string) string {
	return "https://placehold.co/160x160?text=" + url.QueryEscape(text)
}

// Slug 生成 ID 片段：小写，非字母数字折叠为 '-'
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// BrandKey 品牌按小写 make 归并
func BrandKey(brand string) string {
	return Slug(brand)
}

// YearID 年份节点 ID
func YearID(year int) string {
	return strconv.Itoa(year)
}

// CompositeID 复合 ID brandId-modelId-yearId，用作选择键和"已保存车辆"引用
func CompositeID(brandID, modelID, yearID string) string {
	return brandID + "-" + modelID + "-" + yearID
}

// Builder 层级构建器
type Builder struct {
	Assets      AssetLookup
	CurrentYear int
}

// BuildHierarchy 以当前年份构建层级
func BuildHierarchy(records []models.VehicleRecord, assets AssetLookup) []models.WizardBrand {
	b := Builder{Assets: assets, CurrentYear: CurrentYear()}
	return b.Build(records)
}

type modelAcc struct {
	model *models.WizardModel
	seen  map[int]struct{}
}

type brandAcc struct {
	brand    *models.WizardBrand
	models   map[string]*modelAcc // key: 原始车型名（精确匹配）
	modelIDs map[string]string    // modelID -> 车型名，用于处理 slug 冲突
}

// Build 将扁平记录折叠为 品牌→车型→年份 三层结构
// 输出按品牌名、车型名排序，年份降序；与输入顺序无关
func (b Builder) Build(records []models.VehicleRecord) []models.WizardBrand {
	currentYear := b.CurrentYear
	if currentYear <= 0 {
		currentYear = CurrentYear()
	}

	brands := make(map[string]*brandAcc)
	for _, rec := range canonicalOrder(records) {
		if strings.TrimSpace(rec.Make) == "" || strings.TrimSpace(rec.Model) == "" {
			continue
		}

		key := BrandKey(rec.Make)
		ba, ok := brands[key]
		if !ok {
			name := strings.TrimSpace(rec.Make)
			ba = &brandAcc{
				brand: &models.WizardBrand{
					ID:   key,
					Name: name,
					Logo: b.brandLogo(name),
				},
				models:   make(map[string]*modelAcc),
				modelIDs: make(map[string]string),
			}
			brands[key] = ba
		}

		modelName := strings.TrimSpace(rec.Model)
		ma, ok := ba.models[modelName]
		if !ok {
			bodyType := rec.BodyType
			if bodyType == "" {
				bodyType = UnknownBodyType
			}
			ma = &modelAcc{
				model: &models.WizardModel{
					ID:    ba.uniqueModelID(modelName),
					Name:  modelName,
					Type:  bodyType,
					Image: b.modelImage(rec, ba.brand.Name, modelName),
				},
				seen: make(map[int]struct{}),
			}
			ba.models[modelName] = ma
		}

		years := ResolveYearsAt(rec, currentYear)
		for _, y := range years {
			if _, dup := ma.seen[y]; dup {
				continue
			}
			ma.seen[y] = struct{}{}
			ma.model.Years = append(ma.model.Years, models.WizardYear{
				ID:    YearID(y),
				Year:  y,
				Range: yearRange(rec),
			})
		}
	}

	out := make([]models.WizardBrand, 0, len(brands))
	for _, ba := range brands {
		brand := *ba.brand
		brand.Models = make([]models.WizardModel, 0, len(ba.models))
		for _, ma := range ba.models {
			m := *ma.model
			sort.Slice(m.Years, func(i, j int) bool { return m.Years[i].Year > m.Years[j].Year })
			brand.Models = append(brand.Models, m)
		}
		sort.Slice(brand.Models, func(i, j int) bool {
			return LessFold(brand.Models[i].Name, brand.Models[j].Name)
		})
		out = append(out, brand)
	}
	sort.Slice(out, func(i, j int) bool { return LessFold(out[i].Name, out[j].Name) })
	return out
}

func (b Builder) brandLogo(name string) string {
	if b.Assets != nil {
		if logo := b.Assets.BrandLogo(name); logo != "" {
			return logo
		}
	}
	return Placeholder(name)
}

func (b Builder) modelImage(rec models.VehicleRecord, brand, model string) string {
	if rec.ImageURL != "" {
		return rec.ImageURL
	}
	if b.Assets != nil {
		if img := b.Assets.ModelImage(brand, model); img != "" {
			return img
		}
	}
	return Placeholder(brand + " " + model)
}

// uniqueModelID 不同车型名 slug 冲突时追加序号
func (ba *brandAcc) uniqueModelID(name string) string {
	base := Slug(name)
	if base == "" {
		base = "model"
	}
	id := base
	for n := 2; ; n++ {
		owner, taken := ba.modelIDs[id]
		if !taken || owner == name {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	ba.modelIDs[id] = name
	return id
}

func yearRange(rec models.VehicleRecord) string {
	if rec.YearStart == nil || *rec.YearStart <= 0 {
		return ""
	}
	if rec.YearEnd == nil || *rec.YearEnd <= 0 {
		return fmt.Sprintf("%d-present", *rec.YearStart)
	}
	return fmt.Sprintf("%d-%d", *rec.YearStart, *rec.YearEnd)
}

// canonicalOrder 按 ID/make/model 排序的副本，保证"首次出现"与输入顺序无关
func canonicalOrder(records []models.VehicleRecord) []models.VehicleRecord {
	sorted := append([]models.VehicleRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Make != b.Make {
			return a.Make < b.Make
		}
		return a.Model < b.Model
	})
	return sorted
}

// LessFold 不区分大小写的字典序，相同时按原串排序保证稳定
func LessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// FindBrand 按 ID 查找品牌
func FindBrand(brands []models.WizardBrand, brandID string) (*models.WizardBrand, bool) {
	for i := range brands {
		if brands[i].ID == brandID {
			return &brands[i], true
		}
	}
	return nil, false
}

// FindModel 按 ID 查找车型
func FindModel(brand *models.WizardBrand, modelID string) (*models.WizardModel, bool) {
	for i := range brand.Models {
		if brand.Models[i].ID == modelID {
			return &brand.Models[i], true
		}
	}
	return nil, false
}

// FindYear 在车型中查找年份
func FindYear(model *models.WizardModel, year int) (*models.WizardYear, bool) {
	for i := range model.Years {
		if model.Years[i].Year == year {
			return &model.Years[i], true
		}
	}
	return nil, false
}

// Selection 复合 ID 解析结果
type Selection struct {
	Brand models.WizardBrand
	Model models.WizardModel
	Year  models.WizardYear
}

// ResolveComposite 在新构建的层级中重新解析已保存的复合 ID
// ID 片段本身可能含 '-'，因此逐个拼接比对而不是拆分
func ResolveComposite(brands []models.WizardBrand, id string) (*Selection, bool) {
	if id == "" {
		return nil, false
	}
	for _, brand := range brands {
		if !strings.HasPrefix(id, brand.ID+"-") {
			continue
		}
		for _, model := range brand.Models {
			for _, year := range model.Years {
				if CompositeID(brand.ID, model.ID, year.ID) == id {
					return &Selection{Brand: brand, Model: model, Year: year}, true
				}
			}
		}
	}
	return nil, false
}

// MatchRecords 返回 (make, model) 匹配且年份覆盖 year 的源记录，按 ID 排序
// make 不区分大小写，model 精确匹配（与层级归并规则一致）
func MatchRecords(records []models.VehicleRecord, brand, model string, year, currentYear int) []models.VehicleRecord {
	brandKey := BrandKey(brand)
	model = strings.TrimSpace(model)

	var matched []models.VehicleRecord
	for _, rec := range records {
		if BrandKey(rec.Make) != brandKey || strings.TrimSpace(rec.Model) != model {
			continue
		}
		if SupportsYear(rec, year, currentYear) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}
