package server

import (
	"net/http"

	"github.com/chaos-io/imagetools/composite"
	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createRemover 上传原图并新建背景移除会话
func (s *Server) createRemover(c *gin.Context) {
	data, ok := s.readUpload(c)
	if !ok {
		return
	}

	r := session.NewRemover(s.provider, s.compositor, s.logger)
	if err := r.Upload(data); err != nil {
		s.fail(c, err)
		return
	}

	id := s.store.AddRemover(r)
	s.logger.Info("remover session created", zap.String("id", id))
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "remover session created",
		Data:    newRemoverView(id, r),
	})
}

func (s *Server) uploadRemover(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
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
	if err := e.value.Upload(data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "image replaced",
		Data:    newRemoverView(c.Param("id"), e.value),
	})
}

func (s *Server) getRemover(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    newRemoverView(c.Param("id"), e.value),
	})
}

func (s *Server) detectObjects(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.value.Detect(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "objects detected",
		Data:    newRemoverView(c.Param("id"), e.value),
	})
}

func (s *Server) toggle(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	selected, err := e.value.Toggle(c.Param("object"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"object":   c.Param("object"),
			"selected": selected,
		},
	})
}

func (s *Server) compositeObjects(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.value.Composite(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "composite done",
		Data:    newCompositeView(res),
	})
}

func (s *Server) removerResult(c *gin.Context) {
	e, ok := s.store.remover(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	res := e.value.Result()
	e.mu.Unlock()
	if res == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Success: false,
			Message: "no composite result yet",
		})
		return
	}
	attachment(c, composite.ResultFilename, "image/png", res.PNG)
}

func newRemoverView(id string, r *session.Remover) removerView {
	v := removerView{ID: id, Objects: []objectView{}}
	if a := r.Original(); a != nil {
		v.Original = session.Info{
			Width:  a.Width(),
			Height: a.Height(),
			Size:   a.Size(),
			Format: a.Format,
		}
		v.SizeHuman = raster.FormatBytes(a.Size())
		v.HasAlpha = a.HasAlpha()
	}

	sel := r.Selection()
	for _, o := range r.Objects() {
		v.Objects = append(v.Objects, objectView{
			ID:         o.ID,
			Name:       o.Name,
			Selected:   sel.Has(o.ID),
			Confidence: o.Confidence,
		})
	}
	if res := r.Result(); res != nil {
		cv := newCompositeView(res)
		v.Result = &cv
	}
	return v
}

func newCompositeView(res *composite.Result) compositeView {
	size := int64(len(res.PNG))
	return compositeView{
		Size:      size,
		SizeHuman: raster.FormatBytes(size),
		Bounds:    bbox(res.Bounds),
		Empty:     res.Bounds.Empty(),
	}
}
