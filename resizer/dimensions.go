package resizer

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDimension = errors.New("invalid dimension")

// Dimensions 目标宽高与锁定比例。比例在上传时算一次，之后只会被重新应用，不会重算。
// 值类型，可以复制后试改再提交。
type Dimensions struct {
	width     int
	height    int
	aspect    float64
	locked    bool
	maxPixels int64
}

// NewDimensions 以原图尺寸初始化，默认锁定比例
func NewDimensions(width, height int) (*Dimensions, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	return &Dimensions{
		width:  width,
		height: height,
		aspect: float64(width) / float64(height),
		locked: true,
	}, nil
}

// SetMaxPixels 限制 width*height，<= 0 表示不限制；不检查当前尺寸
func (d *Dimensions) SetMaxPixels(n int64) {
	d.maxPixels = n
}

// SetWidth 锁定时高度 = round(width / aspect)；超出像素上限时不做任何修改
func (d *Dimensions) SetWidth(width int) error {
	if width <= 0 || !d.sideFits(width) {
		return fmt.Errorf("%w: width %d", ErrInvalidDimension, width)
	}
	height := d.height
	if d.locked {
		height = max(1, int(math.Round(float64(width)/d.aspect)))
	}
	if !FitsPixels(width, height, d.maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimension, width, height, d.maxPixels)
	}
	d.width, d.height = width, height
	return nil
}

// SetHeight 锁定时宽度 = round(height * aspect)；超出像素上限时不做任何修改
func (d *Dimensions) SetHeight(height int) error {
	if height <= 0 || !d.sideFits(height) {
		return fmt.Errorf("%w: height %d", ErrInvalidDimension, height)
	}
	width := d.width
	if d.locked {
		width = max(1, int(math.Round(float64(height)*d.aspect)))
	}
	if !FitsPixels(width, height, d.maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimension, width, height, d.maxPixels)
	}
	d.width, d.height = width, height
	return nil
}

// sideFits 先挡住单边就超限的值，避免后面换算比例时溢出
func (d *Dimensions) sideFits(n int) bool {
	return d.maxPixels <= 0 || int64(n) <= d.maxPixels
}

// FitsPixels width*height 是否不超过 maxPixels，maxPixels <= 0 表示不限制
func FitsPixels(width, height int, maxPixels int64) bool {
	if maxPixels <= 0 {
		return true
	}
	if width <= 0 || height <= 0 {
		return false
	}
	return int64(width) <= maxPixels/int64(height)
}

func (d *Dimensions) SetLocked(locked bool) {
	d.locked = locked
}

func (d *Dimensions) Locked() bool {
	return d.locked
}

func (d *Dimensions) Size() (width, height int) {
	return d.width, d.height
}

func (d *Dimensions) AspectRatio() float64 {
	return d.aspect
}
