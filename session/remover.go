package session

import (
	"context"
	"fmt"

	"github.com/chaos-io/imagetools/composite"
	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/raster"
	"go.uber.org/zap"
)

// Remover 背景移除的编辑状态：原图、检测结果、选择集、合成结果
type Remover struct {
	provider   detect.Provider
	compositor *composite.Compositor
	logger     *zap.Logger

	original  *raster.Asset
	objects   []detect.Object
	selection Selection
	result    *composite.Result
}

func NewRemover(provider detect.Provider, compositor *composite.Compositor, logger *zap.Logger) *Remover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remover{
		provider:   provider,
		compositor: compositor,
		logger:     logger,
	}
}

// Upload 替换原图并清空检测、选择和结果；空数据（未选文件）直接忽略
func (r *Remover) Upload(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	asset, err := raster.Decode(data)
	if err != nil {
		return err
	}

	r.original = asset
	r.reset()
	return nil
}

func (r *Remover) reset() {
	r.objects = nil
	r.selection = NewSelection()
	r.result = nil
}

// Detect 调用检测服务，成功后默认选中全部对象；失败时检测状态保持为空，可重试
func (r *Remover) Detect(ctx context.Context) error {
	if r.original == nil {
		return ErrNoImage
	}
	if len(r.objects) > 0 {
		return ErrAlreadyDetected
	}

	objects, err := r.provider.Detect(ctx, r.original.Data)
	if err != nil {
		r.logger.Warn("detect objects failed", zap.Error(err))
		r.reset()
		return fmt.Errorf("detect objects: %w", err)
	}

	ids := make([]string, 0, len(objects))
	for _, o := range objects {
		ids = append(ids, o.ID)
	}

	r.objects = objects
	r.selection = NewSelection(ids...)
	r.result = nil

	r.logger.Info("objects detected", zap.Int("count", len(objects)), zap.Strings("ids", ids))
	return nil
}

// Toggle 切换对象的选中状态，返回切换后是否选中
func (r *Remover) Toggle(id string) (bool, error) {
	if len(r.objects) == 0 {
		return false, ErrNoDetection
	}
	if !r.known(id) {
		return false, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	return r.selection.toggle(id), nil
}

func (r *Remover) known(id string) bool {
	for _, o := range r.objects {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Selected 按检测顺序返回选中的对象
func (r *Remover) Selected() []detect.Object {
	selected := make([]detect.Object, 0, r.selection.Len())
	for _, o := range r.objects {
		if r.selection.Has(o.ID) {
			selected = append(selected, o)
		}
	}
	return selected
}

// Composite 用当前选择合成抠图；任一 mask 解码失败则整体失败，之前的结果保持不变
func (r *Remover) Composite(ctx context.Context) (*composite.Result, error) {
	if r.original == nil {
		return nil, ErrNoImage
	}
	if len(r.objects) == 0 {
		return nil, ErrNoDetection
	}

	res, err := r.compositor.CompositePNG(ctx, r.original.Image, r.Selected())
	if err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}

	r.result = res
	return res, nil
}

func (r *Remover) Original() *raster.Asset {
	return r.original
}

func (r *Remover) Objects() []detect.Object {
	return r.objects
}

func (r *Remover) Selection() Selection {
	return r.selection
}

// Result 最近一次合成结果，可能为 nil
func (r *Remover) Result() *composite.Result {
	return r.result
}
