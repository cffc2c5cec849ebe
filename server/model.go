package server

import (
	"image"

	"github.com/chaos-io/imagetools/resizer"
	"github.com/chaos-io/imagetools/session"
)

// Response 成功响应
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type objectView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Selected   bool    `json:"selected"`
	Confidence float64 `json:"confidence,omitempty"`
}

type compositeView struct {
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	Bounds    BBox   `json:"bounds"`
	Empty     bool   `json:"empty"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func bbox(r image.Rectangle) BBox {
	return BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

type removerView struct {
	ID        string         `json:"id"`
	Original  session.Info   `json:"original"`
	SizeHuman string         `json:"size_human"`
	HasAlpha  bool           `json:"has_alpha"`
	Objects   []objectView   `json:"objects"`
	Result    *compositeView `json:"result,omitempty"`
}

type resultView struct {
	*resizer.Result
	SizeHuman string `json:"size_human"`
}

type resizerView struct {
	ID          string       `json:"id"`
	Original    session.Info `json:"original"`
	SizeHuman   string       `json:"size_human"`
	Spec        resizer.Spec `json:"spec"`
	AspectRatio float64      `json:"aspect_ratio"`
	Result      *resultView  `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type wsMessage struct {
	Type   string      `json:"type"` // result | error
	Seq    uint64      `json:"seq,omitempty"`
	Result *resultView `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}
