package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWEBP = "webp"
)

// DefaultMaxPixels 解码前按头部声明的尺寸拦截，避免小文件声明超大画布
const DefaultMaxPixels int64 = 8192 * 8192

var ErrDecode = errors.New("decode image")

// Asset 一张已解码的图片及其编码信息
type Asset struct {
	Image  image.Image
	Format string
	Data   []byte

	alpha bool
}

func (a *Asset) Width() int {
	return a.Image.Bounds().Dx()
}

func (a *Asset) Height() int {
	return a.Image.Bounds().Dy()
}

// Size 原始编码字节数
func (a *Asset) Size() int64 {
	return int64(len(a.Data))
}

// HasAlpha 原图是否含有透明像素，解码时算好
func (a *Asset) HasAlpha() bool {
	return a.alpha
}

// Decode 按 DefaultMaxPixels 解码
func Decode(data []byte) (*Asset, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit 解码上传的图片字节（PNG/JPEG/WEBP），JPEG 会按 EXIF 自动旋正。
// 头部声明的 width*height 超过 maxPixels 时不分配像素直接失败，maxPixels <= 0 表示不限制。
func DecodeLimit(data []byte, maxPixels int64) (*Asset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !Supported(format) {
		return nil, fmt.Errorf("%w: unsupported format %s", ErrDecode, format)
	}
	if maxPixels > 0 && (cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width) > maxPixels/int64(cfg.Height)) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &Asset{Image: img, Format: format, Data: data, alpha: HasTransparency(img)}, nil
}

// Supported 只接受 PNG/JPEG/WEBP；imaging 会额外注册 gif、bmp、tiff 解码器
func Supported(format string) bool {
	switch format {
	case FormatPNG, FormatJPEG, FormatWEBP:
		return true
	}
	return false
}

// EncodePNG 编码为 PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG 按 0-100 的质量编码为 JPEG，质量 0 依然输出可解码的图片
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality(quality)}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGQuality 把 0-100 的百分比映射到编码器参数 [1, 100]
func JPEGQuality(quality int) int {
	return min(max(quality, 1), 100)
}
