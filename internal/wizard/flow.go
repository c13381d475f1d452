package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

// 事件常量
const (
	EventSelectBrand = "select_brand"
	EventSelectModel = "select_model"
	EventDirectJump  = "direct_jump"
	EventNeedVariant = "need_variant"
	EventResolve     = "resolve"
	EventBack        = "back"
	EventReset       = "reset"
)

const defaultDecodeTimeout = 8 * time.Second

var (
	ErrWrongStep      = errors.New("operation not allowed at current step")
	ErrUnknownBrand   = errors.New("unknown brand")
	ErrUnknownModel   = errors.New("unknown model")
	ErrUnknownYear    = errors.New("unknown year")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrVINNotFound    = errors.New("no vehicle found for VIN")
	ErrNoPendingVIN   = errors.New("no decoded VIN to confirm")
	ErrNoDecoder      = errors.New("VIN decoding unavailable")
)

// LookupError 外部查询失败，可重试，向导状态不变
type LookupError struct {
	VIN string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("decode VIN %s: %v", e.VIN, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// VINDecoder VIN 解码协作方；未找到时返回 nil, nil
type VINDecoder interface {
	Decode(ctx context.Context, vin string) (*models.DecodedVehicle, error)
}

// Resolution 向导收敛结果
type Resolution struct {
	Vehicle        models.SelectedVehicle `json:"vehicle"`
	SavedVehicleID string                 `json:"savedVehicleId,omitempty"`
	Mode           Mode                   `json:"mode"`
	Source         Source                 `json:"source"`
}

// Sink 接收收敛结果；返回错误时向导不前进
// Sink 在向导锁内调用，不得回调同一个 Flow
type Sink func(ctx context.Context, r Resolution) error

// Options 向导参数
type Options struct {
	Mode          Mode
	Decoder       VINDecoder
	DecodeTimeout time.Duration
	CurrentYear   int
	Logger        *zap.Logger
	Sink          Sink
}

// Suggestion 跨品牌直达搜索结果
type Suggestion struct {
	BrandID   string `json:"brandId"`
	BrandName string `json:"brandName"`
	ModelID   string `json:"modelId"`
	ModelName string `json:"modelName"`
}

// MaxSuggestions 直达搜索最多返回条数
const MaxSuggestions = 10

// MinSuggestionQuery 直达搜索最短查询长度
const MinSuggestionQuery = 2

// Flow 单个向导会话
type Flow struct {
	mu      sync.Mutex
	fsm     *fsm.FSM
	brands  []models.WizardBrand
	records []models.VehicleRecord
	opts    Options
	logger  *zap.Logger

	query    string
	brand    *models.WizardBrand
	model    *models.WizardModel
	year     int
	variants []models.VehicleRecord

	vinMode    bool
	pendingVIN *models.DecodedVehicle
	result     *Resolution
}

// NewFlow 基于层级和源记录创建向导
func NewFlow(brands []models.WizardBrand, records []models.VehicleRecord, opts Options) *Flow {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CurrentYear <= 0 {
		opts.CurrentYear = fitment.CurrentYear()
	}
	if opts.DecodeTimeout <= 0 {
		opts.DecodeTimeout = defaultDecodeTimeout
	}

	f := &Flow{
		brands:  brands,
		records: records,
		opts:    opts,
		logger:  opts.Logger,
	}

	all := []string{StepBrand.String(), StepModel.String(), StepYear.String(), StepVariant.String(), StepDone.String()}
	f.fsm = fsm.NewFSM(
		StepBrand.String(),
		fsm.Events{
			{Name: EventSelectBrand, Src: []string{StepBrand.String()}, Dst: StepModel.String()},
			{Name: EventSelectModel, Src: []string{StepModel.String()}, Dst: StepYear.String()},
			{Name: EventDirectJump, Src: []string{StepBrand.String()}, Dst: StepYear.String()},
			{Name: EventNeedVariant, Src: []string{StepYear.String()}, Dst: StepVariant.String()},
			{Name: EventResolve, Src: all, Dst: StepDone.String()},

			// 后退严格回退一步
			{Name: EventBack, Src: []string{StepModel.String()}, Dst: StepBrand.String()},
			{Name: EventBack, Src: []string{StepYear.String()}, Dst: StepModel.String()},
			{Name: EventBack, Src: []string{StepVariant.String()}, Dst: StepYear.String()},

			{Name: EventReset, Src: all, Dst: StepBrand.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				f.logger.Debug("Wizard step changed",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)
	return f
}

// Step 当前步骤
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step()
}

func (f *Flow) step() Step {
	return parseStep(f.fsm.Current())
}

// fire 触发事件；源状态与目标状态相同属于正常情况
func (f *Flow) fire(ctx context.Context, event string) error {
	err := f.fsm.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	return nil
}

func (f *Flow) requireStep(want Step) error {
	if cur := f.step(); cur != want {
		return fmt.Errorf("%w: at %s, need %s", ErrWrongStep, cur, want)
	}
	return nil
}

// SelectBrand 品牌 → 车型
func (f *Flow) SelectBrand(brandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStep(StepBrand); err != nil {
		return err
	}
	brand, ok := fitment.FindBrand(f.brands, brandID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBrand, brandID)
	}
	if err := f.fire(context.Background(), EventSelectBrand); err != nil {
		return err
	}
	f.brand = brand
	f.query = ""
	return nil
}

// SelectModel 车型 → 年份
func (f *Flow) SelectModel(modelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStep(StepModel); err != nil {
		return err
	}
	model, ok := fitment.FindModel(f.brand, modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	if err := f.fire(context.Background(), EventSelectModel); err != nil {
		return err
	}
	f.model = model
	f.query = ""
	return nil
}

// DirectJump 从品牌步骤经全局搜索直接跳到年份步骤
func (f *Flow) DirectJump(brandID, modelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStep(StepBrand); err != nil {
		return err
	}
	brand, ok := fitment.FindBrand(f.brands, brandID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBrand, brandID)
	}
	model, ok := fitment.FindModel(brand, modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	if err := f.fire(context.Background(), EventDirectJump); err != nil {
		return err
	}
	f.brand = brand
	f.model = model
	f.query = ""
	return nil
}

// SelectYear 按 (品牌, 车型, 年份) 匹配源记录：
// 唯一匹配直接完成；多条进入配置选择；零条记录日志并停留
func (f *Flow) SelectYear(ctx context.Context, year int) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStep(StepYear); err != nil {
		return OutcomeNoMatch, err
	}
	if _, ok := fitment.FindYear(f.model, year); !ok {
		return OutcomeNoMatch, fmt.Errorf("%w: %d", ErrUnknownYear, year)
	}

	matched := fitment.MatchRecords(f.records, f.brand.Name, f.model.Name, year, f.opts.CurrentYear)
	switch len(matched) {
	case 0:
		f.logger.Warn("No vehicle record matches selected year",
			zap.String("make", f.brand.Name),
			zap.String("model", f.model.Name),
			zap.Int("year", year))
		return OutcomeNoMatch, nil
	case 1:
		if err := f.resolveRecord(ctx, matched[0], year); err != nil {
			return OutcomeNoMatch, err
		}
		return OutcomeResolved, nil
	default:
		if err := f.fire(ctx, EventNeedVariant); err != nil {
			return OutcomeNoMatch, err
		}
		f.year = year
		f.variants = matched
		f.query = ""
		return OutcomeNeedsVariant, nil
	}
}

// SelectVariant 在候选配置中选定一条记录
func (f *Flow) SelectVariant(ctx context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStep(StepVariant); err != nil {
		return err
	}
	for _, rec := range f.variants {
		if rec.ID == recordID {
			return f.resolveRecord(ctx, rec, f.year)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownVariant, recordID)
}

func (f *Flow) resolveRecord(ctx context.Context, rec models.VehicleRecord, year int) error {
	res := Resolution{
		Vehicle: models.SelectedVehicle{
			ID:          fitment.SearchKey(rec.ID, year),
			RecordID:    rec.ID,
			Make:        f.brand.Name,
			Model:       f.model.Name,
			Year:        models.IntPtr(year),
			BodyType:    rec.BodyType,
			ChassisCode: rec.ChassisCode,
			EngineCode:  rec.EngineCode,
			FuelType:    rec.FuelType,
		},
		SavedVehicleID: fitment.CompositeID(f.brand.ID, f.model.ID, fitment.YearID(year)),
		Mode:           f.opts.Mode,
		Source:         SourceHierarchy,
	}
	return f.complete(ctx, res)
}

// complete 先交给 Sink，成功后再推进状态并清理临时选择
func (f *Flow) complete(ctx context.Context, res Resolution) error {
	if f.opts.Sink != nil {
		if err := f.opts.Sink(ctx, res); err != nil {
			return fmt.Errorf("apply resolution: %w", err)
		}
	}
	if err := f.fire(ctx, EventResolve); err != nil {
		return err
	}
	f.clearSelections()
	f.vinMode = false
	f.pendingVIN = nil
	f.result = &res
	return nil
}

func (f *Flow) clearSelections() {
	f.brand = nil
	f.model = nil
	f.year = 0
	f.variants = nil
	f.query = ""
}

// GoBack 严格后退一步，并清空搜索词
func (f *Flow) GoBack() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur := f.step()
	switch cur {
	case StepBrand, StepDone:
		return fmt.Errorf("%w: cannot go back from %s", ErrWrongStep, cur)
	case StepModel:
		f.brand = nil
	case StepYear:
		f.model = nil
		f.year = 0
	case StepVariant:
		f.year = 0
		f.variants = nil
	}
	if err := f.fire(context.Background(), EventBack); err != nil {
		return err
	}
	f.query = ""
	return nil
}

// Reset 回到品牌步骤，清空所有临时选择和 VIN 状态
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fire(context.Background(), EventReset); err != nil {
		return err
	}
	f.clearSelections()
	f.vinMode = false
	f.pendingVIN = nil
	f.result = nil
	return nil
}

// SetQuery 设置当前步骤的搜索词
func (f *Flow) SetQuery(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = q
}

// Result 最近一次收敛结果
func (f *Flow) Result() (*Resolution, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return nil, false
	}
	r := *f.result
	return &r, true
}

func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}

func (f *Flow) normalizedQuery() string {
	return strings.ToLower(strings.TrimSpace(f.query))
}
