package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/partfit/internal/api/suggester"
	"github.com/langchou/partfit/internal/events"
	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

// maxSuggestCandidates 单次 AI 建议最多提交的候选车辆数
const maxSuggestCandidates = 200

// CatalogService 车辆层级与商品目录服务
type CatalogService struct {
	vehicles       VehicleStore
	products       ProductStore
	suggester      Suggester
	assets         fitment.AssetLookup
	bus            *events.Bus
	logger         *zap.Logger
	suggestTimeout time.Duration

	mu          sync.RWMutex
	records     []models.VehicleRecord
	brands      []models.WizardBrand
	productList []models.Product
}

// NewCatalogService 创建目录服务；suggester 可为 nil
func NewCatalogService(
	logger *zap.Logger,
	vehicles VehicleStore,
	products ProductStore,
	sg Suggester,
	assets fitment.AssetLookup,
	bus *events.Bus,
	suggestTimeout time.Duration,
) *CatalogService {
	if suggestTimeout <= 0 {
		suggestTimeout = 8 * time.Second
	}
	return &CatalogService{
		vehicles:       vehicles,
		products:       products,
		suggester:      sg,
		assets:         assets,
		bus:            bus,
		logger:         logger,
		suggestTimeout: suggestTimeout,
	}
}

// Load 并行加载车辆记录和商品，并重建层级
func (s *CatalogService) Load(ctx context.Context) error {
	var (
		records  []models.VehicleRecord
		products []models.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.vehicles.List(gctx)
		if err != nil {
			return fmt.Errorf("load vehicles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = s.products.List(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.productList = products
	s.mu.Unlock()

	s.applyRecords(ctx, records)
	s.logger.Info("Catalog loaded",
		zap.Int("records", len(records)),
		zap.Int("products", len(products)))
	return nil
}

// Watch 监听车辆记录变更并重建层级，阻塞直到 ctx 取消
func (s *CatalogService) Watch(ctx context.Context) error {
	return s.vehicles.Subscribe(ctx, s.logger, func(records []models.VehicleRecord) {
		s.applyRecords(ctx, records)
	})
}

// applyRecords 每次数据变化都从头重建层级
func (s *CatalogService) applyRecords(ctx context.Context, records []models.VehicleRecord) {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			s.logger.Warn("Invalid vehicle record in catalog",
				zap.String("id", records[i].ID),
				zap.Error(err))
		}
		if _, ok := fitment.LookupYears(records[i], fitment.CurrentYear()); !ok {
			s.logger.Debug("Vehicle record has no year data, using current year",
				zap.String("id", records[i].ID))
		}
	}
	brands := fitment.BuildHierarchy(records, s.assets)

	s.mu.Lock()
	s.records = records
	s.brands = brands
	s.mu.Unlock()

	if s.bus != nil {
		event := events.CatalogEvent{Records: len(records), Brands: len(brands), At: time.Now()}
		if err := events.Publish(ctx, s.bus, events.SubjectCatalogChanged, event); err != nil {
			s.logger.Warn("Failed to publish catalog change", zap.Error(err))
		}
	}
}

// Snapshot 当前层级和源记录
func (s *CatalogService) Snapshot() ([]models.WizardBrand, []models.VehicleRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brands, s.records
}

// Hierarchy 当前层级
func (s *CatalogService) Hierarchy() []models.WizardBrand {
	brands, _ := s.Snapshot()
	return brands
}

// ResolveSaved 在最新层级中重新解析已保存的复合 ID
func (s *CatalogService) ResolveSaved(savedID string) (*fitment.Selection, error) {
	sel, ok := fitment.ResolveComposite(s.Hierarchy(), savedID)
	if !ok {
		return nil, fmt.Errorf("resolve saved vehicle %q: %w", savedID, ErrNotFound)
	}
	return sel, nil
}

// SavedVehicle 将已保存的复合 ID 还原为 SelectedVehicle
// 该年份只对应一条源记录时带上其配置信息
func (s *CatalogService) SavedVehicle(savedID string) (*models.SelectedVehicle, error) {
	return s.SavedVariant(savedID, "")
}

// SavedVariant 同 SavedVehicle，recordID 非空时要求该记录仍属于这个 make/model/year
func (s *CatalogService) SavedVariant(savedID, recordID string) (*models.SelectedVehicle, error) {
	sel, err := s.ResolveSaved(savedID)
	if err != nil {
		return nil, err
	}
	_, records := s.Snapshot()
	v := &models.SelectedVehicle{
		ID:    savedID,
		Make:  sel.Brand.Name,
		Model: sel.Model.Name,
		Year:  models.IntPtr(sel.Year.Year),
	}
	matched := fitment.MatchRecords(records, sel.Brand.Name, sel.Model.Name, sel.Year.Year, fitment.CurrentYear())

	var rec *models.VehicleRecord
	switch {
	case recordID != "":
		for i := range matched {
			if matched[i].ID == recordID {
				rec = &matched[i]
				break
			}
		}
		if rec == nil {
			return nil, fmt.Errorf("resolve saved vehicle %q record %q: %w", savedID, recordID, ErrNotFound)
		}
	case len(matched) == 1:
		rec = &matched[0]
	}
	if rec != nil {
		v.ID = fitment.SearchKey(rec.ID, sel.Year.Year)
		v.RecordID = rec.ID
		v.BodyType = rec.BodyType
		v.ChassisCode = rec.ChassisCode
		v.EngineCode = rec.EngineCode
		v.FuelType = rec.FuelType
	}
	return v, nil
}

// UpsertVehicle 写入车辆记录并立即重建层级
// 数据库通知也会触发重建，这里保证调用方马上看到结果
func (s *CatalogService) UpsertVehicle(ctx context.Context, rec *models.VehicleRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.vehicles.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert vehicle: %w", err)
	}
	records, err := s.vehicles.List(ctx)
	if err != nil {
		return fmt.Errorf("reload vehicles: %w", err)
	}
	s.applyRecords(ctx, records)
	return nil
}

// DeleteVehicle 删除车辆记录并重建层级
// 已保存的复合 ID 在重建后可能无法还原，由读取方处理
func (s *CatalogService) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.vehicles.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete vehicle %q: %w", id, err)
	}
	records, err := s.vehicles.List(ctx)
	if err != nil {
		return fmt.Errorf("reload vehicles: %w", err)
	}
	s.applyRecords(ctx, records)
	return nil
}

// Products 当前商品列表，只读；更新时整体替换
func (s *CatalogService) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productList
}

// Product 通过 ID 获取商品
func (s *CatalogService) Product(id string) (*models.Product, error) {
	for _, p := range s.Products() {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %q: %w", id, ErrNotFound)
}

// SearchProducts 按关键字和分类搜索，有当前车辆时只返回兼容商品
func (s *CatalogService) SearchProducts(query, category string, vehicle *models.SelectedVehicle) []models.Product {
	return fitment.SearchProducts(s.Products(), query, category, vehicle)
}

// Fits 商品是否适配当前车辆（"适配你的车"标记）
func (s *CatalogService) Fits(productID string, vehicle *models.SelectedVehicle) (bool, error) {
	p, err := s.Product(productID)
	if err != nil {
		return false, err
	}
	return fitment.IsCompatible(p, vehicle), nil
}

// CategoryCounts 各分类商品数，有当前车辆时只统计兼容商品
func (s *CatalogService) CategoryCounts(vehicle *models.SelectedVehicle) map[string]int {
	return fitment.CategoryCounts(s.Products(), vehicle)
}

// UpsertProduct 供应商发布或修改商品，兼容列表按 searchKey 去重
func (s *CatalogService) UpsertProduct(ctx context.Context, actor models.Actor, p *models.Product) error {
	if actor.Role != models.RoleVendor && actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("%w: title and category are required", ErrInvalidInput)
	}
	if existing, err := s.Product(p.ID); err == nil && actor.Role == models.RoleVendor && existing.VendorID != actor.ID {
		return ErrForbidden
	}
	if actor.Role == models.RoleVendor {
		p.VendorID = actor.ID
	}
	p.CompatibleVehicles = fitment.MergeVariants(nil, p.CompatibleVehicles...)

	if err := s.products.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	// 写时复制：读者持有的旧切片保持不变
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Product, 0, len(s.productList)+1)
	replaced := false
	for _, existing := range s.productList {
		if existing.ID == p.ID {
			existing = *p
			replaced = true
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, *p)
	}
	s.productList = next
	return nil
}

// SuggestCompatibility 尽力而为的 AI 兼容车型建议：失败时返回空列表，不阻塞手工录入
func (s *CatalogService) SuggestCompatibility(ctx context.Context, title, category string) []models.CompatibleVariant {
	if s.suggester == nil {
		return []models.CompatibleVariant{}
	}

	_, records := s.Snapshot()
	variants := fitment.VariantsForRecords(records, fitment.CurrentYear())
	if len(variants) > maxSuggestCandidates {
		s.logger.Info("Truncating suggestion candidates",
			zap.String("title", title),
			zap.Int("total", len(variants)),
			zap.Int("kept", maxSuggestCandidates))
		variants = variants[:maxSuggestCandidates]
	}
	byKey := make(map[string]models.CompatibleVariant, len(variants))
	candidates := make([]suggester.Candidate, 0, len(variants))
	for _, v := range variants {
		byKey[v.SearchKey] = v
		candidates = append(candidates, suggester.Candidate{
			ID:    v.SearchKey,
			Label: fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.suggestTimeout)
	defer cancel()

	ids, err := s.suggester.Suggest(ctx, title, category, candidates)
	if err != nil {
		s.logger.Warn("Compatibility suggestion failed",
			zap.String("title", title),
			zap.Error(err))
		return []models.CompatibleVariant{}
	}

	out := make([]models.CompatibleVariant, 0, len(ids))
	for _, id := range ids {
		if v, ok := byKey[id]; ok {
			out = append(out, v)
		}
	}
	return fitment.MergeVariants(nil, out...)
}
