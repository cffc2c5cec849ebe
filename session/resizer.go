package session

import (
	"context"

	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/resizer"
	"go.uber.org/zap"
)

// Info 原图信息
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Format string `json:"format"`
}

// Edit 对缩放参数的一次修改，nil 字段保持不变。
// 先应用 Lock，再依次应用 Width、Height、Quality。
type Edit struct {
	Width   *int  `json:"width,omitempty"`
	Height  *int  `json:"height,omitempty"`
	Quality *int  `json:"quality,omitempty"`
	Lock    *bool `json:"lock,omitempty"`
}

// Resizer 缩放压缩的编辑状态，每次参数变化都会提交一次渲染
type Resizer struct {
	engine         *resizer.Engine
	defaultQuality int
	logger         *zap.Logger

	original *raster.Asset
	dims     *resizer.Dimensions
	quality  int
	renderer *resizer.Renderer
}

func NewResizer(engine *resizer.Engine, defaultQuality int, logger *zap.Logger) *Resizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resizer{
		engine:         engine,
		defaultQuality: min(max(defaultQuality, 0), 100),
		logger:         logger,
	}
}

// Upload 载入新原图：宽高取原图尺寸，比例在此刻确定，质量重置为默认值，并立即渲染一次
func (r *Resizer) Upload(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	asset, err := raster.Decode(data)
	if err != nil {
		return err
	}
	dims, err := resizer.NewDimensions(asset.Width(), asset.Height())
	if err != nil {
		return err
	}
	dims.SetMaxPixels(r.engine.MaxPixels())

	if r.renderer != nil {
		r.renderer.Close()
	}
	r.original = asset
	r.dims = dims
	r.quality = r.defaultQuality
	r.renderer = resizer.NewRenderer(r.engine.RenderFunc(asset.Image), r.logger)
	r.renderer.Submit(ctx, r.Spec())

	r.logger.Info("resizer image loaded",
		zap.Int("width", asset.Width()),
		zap.Int("height", asset.Height()),
		zap.Int64("size", asset.Size()))
	return nil
}

// Apply 应用修改并提交渲染，返回本次渲染请求的序号；只改锁定状态时不重新渲染。
// 任一字段非法（非正数或超出像素上限）时整个修改不生效。
func (r *Resizer) Apply(ctx context.Context, e Edit) (uint64, error) {
	if r.original == nil {
		return 0, ErrNoImage
	}

	next := *r.dims
	if e.Lock != nil {
		next.SetLocked(*e.Lock)
	}
	if e.Width != nil {
		if err := next.SetWidth(*e.Width); err != nil {
			return 0, err
		}
	}
	if e.Height != nil {
		if err := next.SetHeight(*e.Height); err != nil {
			return 0, err
		}
	}

	*r.dims = next
	if e.Quality != nil {
		r.quality = min(max(*e.Quality, 0), 100)
	}

	if e.Width == nil && e.Height == nil && e.Quality == nil {
		return r.renderer.Seq(), nil
	}
	return r.renderer.Submit(ctx, r.Spec()), nil
}

func (r *Resizer) SetWidth(ctx context.Context, width int) (uint64, error) {
	return r.Apply(ctx, Edit{Width: &width})
}

func (r *Resizer) SetHeight(ctx context.Context, height int) (uint64, error) {
	return r.Apply(ctx, Edit{Height: &height})
}

func (r *Resizer) SetQuality(ctx context.Context, quality int) (uint64, error) {
	return r.Apply(ctx, Edit{Quality: &quality})
}

func (r *Resizer) SetLock(ctx context.Context, lock bool) error {
	_, err := r.Apply(ctx, Edit{Lock: &lock})
	return err
}

// Spec 当前的缩放参数；未上传时为零值
func (r *Resizer) Spec() resizer.Spec {
	if r.dims == nil {
		return resizer.Spec{}
	}
	w, h := r.dims.Size()
	return resizer.Spec{Width: w, Height: h, Quality: r.quality, LockAspect: r.dims.Locked()}
}

func (r *Resizer) Original() (Info, error) {
	if r.original == nil {
		return Info{}, ErrNoImage
	}
	return Info{
		Width:  r.original.Width(),
		Height: r.original.Height(),
		Size:   r.original.Size(),
		Format: r.original.Format,
	}, nil
}

func (r *Resizer) AspectRatio() float64 {
	if r.dims == nil {
		return 0
	}
	return r.dims.AspectRatio()
}

// Renderer 当前原图对应的渲染器，未上传时为 nil
func (r *Resizer) Renderer() *resizer.Renderer {
	return r.renderer
}

// Result 等待在途渲染结束后返回最新结果
func (r *Resizer) Result() (*resizer.Result, error) {
	if r.renderer == nil {
		return nil, ErrNoImage
	}
	r.renderer.Wait()
	return r.renderer.Latest()
}

func (r *Resizer) Close() {
	if r.renderer != nil {
		r.renderer.Close()
	}
}
