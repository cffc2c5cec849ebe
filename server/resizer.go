package server

import (
	"net/http"

	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/resizer"
	"github.com/chaos-io/imagetools/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createResizer 上传原图并新建缩放会话，立即开始首次渲染
func (s *Server) createResizer(c *gin.Context) {
	data, ok := s.readUpload(c)
	if !ok {
		return
	}

	r := session.NewResizer(s.engine, s.cfg.Resize.DefaultQuality, s.logger)
	if err := r.Upload(c.Request.Context(), data); err != nil {
		s.fail(c, err)
		return
	}

	id := s.store.AddResizer(r)
	s.logger.Info("resizer session created", zap.String("id", id))
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "resizer session created",
		Data:    newResizerView(id, r, nil, nil),
	})
}

func (s *Server) uploadResizer(c *gin.Context) {
	e, ok := s.store.resizer(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	data, ok := s.readUpload(c)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.value.Upload(c.Request.Context(), data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "image replaced",
		Data:    newResizerView(c.Param("id"), e.value, nil, nil),
	})
}

// getResizer 等待在途渲染完成后返回当前状态
func (s *Server) getResizer(c *gin.Context) {
	e, ok := s.store.resizer(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.value.Result()
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    newResizerView(c.Param("id"), e.value, res, err),
	})
}

// editResizer 应用修改，渲染异步进行
func (s *Server) editResizer(c *gin.Context) {
	e, ok := s.store.resizer(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	var edit session.Edit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "invalid edit",
			Error:   err.Error(),
		})
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	seq, err := e.value.Apply(c.Request.Context(), edit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Message: "render scheduled",
		Data: gin.H{
			"seq":          seq,
			"spec":         e.value.Spec(),
			"aspect_ratio": e.value.AspectRatio(),
		},
	})
}

func (s *Server) resizerResult(c *gin.Context) {
	e, ok := s.store.resizer(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	res, err := e.value.Result()
	e.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Success: false,
			Message: "no resize result yet",
		})
		return
	}

	contentType := "image/jpeg"
	if res.Format == raster.FormatPNG {
		contentType = "image/png"
	}
	attachment(c, res.Filename(), contentType, res.Data)
}

func newResultView(res *resizer.Result) *resultView {
	if res == nil {
		return nil
	}
	return &resultView{Result: res, SizeHuman: raster.FormatBytes(res.Size)}
}

func newResizerView(id string, r *session.Resizer, res *resizer.Result, err error) resizerView {
	v := resizerView{
		ID:          id,
		Spec:        r.Spec(),
		AspectRatio: r.AspectRatio(),
		Result:      newResultView(res),
	}
	if info, infoErr := r.Original(); infoErr == nil {
		v.Original = info
		v.SizeHuman = raster.FormatBytes(info.Size)
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}
