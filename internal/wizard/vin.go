package wizard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
)

// VINPrefix VIN 来源车辆的 ID 前缀
const VINPrefix = "vin_"

// EnterVINMode 切换到 VIN 模式，不影响当前步骤
func (f *Flow) EnterVINMode() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vinMode = true
}

// ExitVINMode 退出 VIN 模式并丢弃待确认结果
func (f *Flow) ExitVINMode() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vinMode = false
	f.pendingVIN = nil
}

// SubmitVIN 规范化并解码 VIN，成功后等待确认
// 任何失败都不改变向导状态，调用方可以重试或回到逐级选择
func (f *Flow) SubmitVIN(ctx context.Context, raw string) (*models.DecodedVehicle, error) {
	f.mu.Lock()
	err := f.requireOpen()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vin, err := fitment.NormalizeVIN(raw)
	if err != nil {
		return nil, err
	}
	if f.opts.Decoder == nil {
		return nil, ErrNoDecoder
	}

	// 解码期间不持锁
	decodeCtx, cancel := context.WithTimeout(ctx, f.opts.DecodeTimeout)
	defer cancel()
	decoded, err := f.opts.Decoder.Decode(decodeCtx, vin)
	if err != nil {
		f.logger.Warn("VIN decode failed", zap.String("vin", vin), zap.Error(err))
		return nil, &LookupError{VIN: vin, Err: err}
	}
	if decoded == nil {
		return nil, fmt.Errorf("%w: %s", ErrVINNotFound, vin)
	}
	if decoded.VIN == "" {
		decoded.VIN = vin
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	f.vinMode = true
	f.pendingVIN = decoded
	return decoded, nil
}

// ConfirmVIN 确认解码结果，跳过层级直接完成
func (f *Flow) ConfirmVIN(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireOpen(); err != nil {
		return err
	}
	if f.pendingVIN == nil {
		return ErrNoPendingVIN
	}
	d := f.pendingVIN
	v := models.SelectedVehicle{
		ID:       VINPrefix + d.VIN,
		Make:     d.Make,
		Model:    d.Model,
		BodyType: d.BodyType,
		VIN:      d.VIN,
	}
	if d.Year > 0 {
		v.Year = models.IntPtr(d.Year)
	}
	return f.complete(ctx, Resolution{
		Vehicle: v,
		Mode:    f.opts.Mode,
		Source:  SourceVIN,
	})
}

// requireOpen 已完成的向导须先 Reset 才能再次收敛
func (f *Flow) requireOpen() error {
	if cur := f.step(); cur == StepDone {
		return fmt.Errorf("%w: at %s, reset first", ErrWrongStep, cur)
	}
	return nil
}

// RejectVIN 放弃解码结果，保持在 VIN 模式以便重新输入
func (f *Flow) RejectVIN() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pendingVIN == nil {
		return ErrNoPendingVIN
	}
	f.pendingVIN = nil
	return nil
}
