package composite

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/raster"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const ResultFilename = "result.png"

var ErrMaskDecode = errors.New("decode mask")

// Result 抠图结果
type Result struct {
	Image *image.NRGBA
	PNG   []byte
	// Bounds 保留区域的外接矩形，全透明时为空
	Bounds image.Rectangle
}

// Compositor 把原图与选中对象 mask 的并集相交，得到抠图
type Compositor struct {
	interp draw.Interpolator
	logger *zap.Logger
}

func NewCompositor(cfg *config.CompositeConfig, logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{
		interp: Interpolator(cfg.Interpolator),
		logger: logger,
	}
}

// Interpolator 按名字选 mask 缩放算法，未知名字用 bilinear
func Interpolator(name string) draw.Interpolator {
	switch name {
	case "nearest":
		return draw.NearestNeighbor
	case "approx-bilinear":
		return draw.ApproxBiLinear
	case "catmull-rom":
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// Composite 输出与原图同尺寸：被任一 mask 覆盖的像素保留原色，alpha = 原 alpha × mask alpha，
// 其余全透明。objects 为空时直接返回全透明图片。
func (c *Compositor) Composite(ctx context.Context, original image.Image, objects []detect.Object) (*image.NRGBA, error) {
	if original == nil {
		return nil, errors.New("original image is nil")
	}

	src := raster.ToNRGBA(original)
	rect := src.Bounds()
	out := image.NewNRGBA(rect)
	if len(objects) == 0 {
		return out, nil
	}

	masks, err := c.decodeMasks(ctx, objects, rect)
	if err != nil {
		return nil, err
	}
	union := unionMasks(rect, masks)

	// destination-in
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			m := uint32(union.Pix[y*union.Stride+x])
			if m == 0 {
				continue
			}
			si := y*src.Stride + x*4
			oi := y*out.Stride + x*4
			copy(out.Pix[oi:oi+3], src.Pix[si:si+3])
			out.Pix[oi+3] = uint8((uint32(src.Pix[si+3])*m + 127) / 255)
		}
	}

	return out, nil
}

// CompositePNG 合成并编码为 PNG
func (c *Compositor) CompositePNG(ctx context.Context, original image.Image, objects []detect.Object) (*Result, error) {
	img, err := c.Composite(ctx, original, objects)
	if err != nil {
		return nil, err
	}

	data, err := raster.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	bounds, _ := raster.AlphaBBox(img, 0)
	c.logger.Debug("composite done",
		zap.Int("objects", len(objects)),
		zap.Int("bytes", len(data)),
		zap.Stringer("bounds", bounds))

	return &Result{Image: img, PNG: data, Bounds: bounds}, nil
}

// decodeMasks 并发解码所有 mask，全部成功才返回；任何一个失败则整体失败
func (c *Compositor) decodeMasks(ctx context.Context, objects []detect.Object, rect image.Rectangle) ([]*image.Alpha, error) {
	masks := make([]*image.Alpha, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := c.decodeMask(obj.Mask, rect)
			if err != nil {
				return fmt.Errorf("%w %s: %v", ErrMaskDecode, obj.ID, err)
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return masks, nil
}

// decodeMask 解码 mask 并缩放到原图尺寸
func (c *Compositor) decodeMask(data []byte, rect image.Rectangle) (*image.Alpha, error) {
	if len(data) == 0 {
		return nil, errors.New("empty mask")
	}
	asset, err := raster.Decode(data)
	if err != nil {
		return nil, err
	}
	img := asset.Image

	alpha := image.NewAlpha(rect)
	mb := img.Bounds()
	if mb.Dx() == rect.Dx() && mb.Dy() == rect.Dy() {
		draw.Draw(alpha, rect, img, mb.Min, draw.Src)
	} else {
		c.interp.Scale(alpha, rect, img, mb, draw.Src, nil)
	}
	return alpha, nil
}

// unionMasks 取各 mask 的最大 alpha；二值 mask 下等价于逐个叠加绘制，且与顺序无关
func unionMasks(rect image.Rectangle, masks []*image.Alpha) *image.Alpha {
	union := image.NewAlpha(rect)
	for _, m := range masks {
		for i, a := range m.Pix {
			if a > union.Pix[i] {
				union.Pix[i] = a
			}
		}
	}
	return union
}
