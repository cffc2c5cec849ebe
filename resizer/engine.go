package resizer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/raster"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const (
	JPEGFilename = "resized-image.jpg"
	PNGFilename  = "resized-image.png"
)

// Spec 一次缩放请求
type Spec struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Quality    int  `json:"quality"`
	LockAspect bool `json:"lock"`
}

// ClampSpec 宽高至少 1，质量限定在 0-100
func ClampSpec(spec Spec) Spec {
	spec.Width = max(spec.Width, 1)
	spec.Height = max(spec.Height, 1)
	spec.Quality = min(max(spec.Quality, 0), 100)
	return spec
}

// Result 重新编码后的图片
type Result struct {
	Data    []byte `json:"-"`
	Size    int64  `json:"size"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
	Format  string `json:"format"`
	Seq     uint64 `json:"seq"`
}

func (r *Result) Filename() string {
	if r.Format == raster.FormatPNG {
		return PNGFilename
	}
	return JPEGFilename
}

// Engine 缩放并按质量重新编码
type Engine struct {
	filter    resize.InterpolationFunction
	format    string
	maxPixels int64
	logger    *zap.Logger
}

func NewEngine(cfg *config.ResizeConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	format := raster.FormatJPEG
	if cfg.Format == raster.FormatPNG {
		format = raster.FormatPNG
	}
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = raster.DefaultMaxPixels
	}
	return &Engine{
		filter:    Filter(cfg.Filter),
		format:    format,
		maxPixels: maxPixels,
		logger:    logger,
	}
}

// MaxPixels 输出尺寸的像素上限
func (e *Engine) MaxPixels() int64 {
	return e.maxPixels
}

// Filter 按名字选重采样算法，未知名字用 Lanczos3
func Filter(name string) resize.InterpolationFunction {
	switch name {
	case "nearest":
		return resize.NearestNeighbor
	case "bilinear":
		return resize.Bilinear
	case "bicubic":
		return resize.Bicubic
	case "mitchell":
		return resize.MitchellNetravali
	case "lanczos2":
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

// Resize 一次缩放绘制到目标尺寸，再按质量编码
func (e *Engine) Resize(ctx context.Context, src image.Image, spec Spec) (*Result, error) {
	if src == nil {
		return nil, errors.New("source image is nil")
	}
	spec = ClampSpec(spec)
	if !FitsPixels(spec.Width, spec.Height, e.maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimension, spec.Width, spec.Height, e.maxPixels)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(spec.Width), uint(spec.Height), src, e.filter)

	// 缩放期间被新请求取代，不再编码
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch e.format {
	case raster.FormatPNG:
		data, err = raster.EncodePNG(scaled)
	default:
		data, err = raster.EncodeJPEG(scaled, spec.Quality)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("resized",
		zap.Int("width", spec.Width),
		zap.Int("height", spec.Height),
		zap.Int("quality", spec.Quality),
		zap.Int("bytes", len(data)))

	return &Result{
		Data:    data,
		Size:    int64(len(data)),
		Width:   spec.Width,
		Height:  spec.Height,
		Quality: spec.Quality,
		Format:  e.format,
	}, nil
}

// RenderFunc 把 Engine 绑定到一张原图上，供 Renderer 使用
func (e *Engine) RenderFunc(src image.Image) RenderFunc {
	return func(ctx context.Context, spec Spec) (*Result, error) {
		return e.Resize(ctx, src, spec)
	}
}
