package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chaos-io/imagetools/composite"
	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/logger"
	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/resizer"
	"github.com/chaos-io/imagetools/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var Version = "dev"

type Server struct {
	cfg        *config.Config
	store      *Store
	provider   detect.Provider
	compositor *composite.Compositor
	engine     *resizer.Engine
	logger     *zap.Logger
	router     *gin.Engine
}

func New(cfg *config.Config, provider detect.Provider, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		store:      NewStore(&cfg.Session, log),
		provider:   provider,
		compositor: composite.NewCompositor(&cfg.Composite, log),
		engine:     resizer.NewEngine(&cfg.Resize, log),
		logger:     log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(s.logger))
	r.MaxMultipartMemory = s.cfg.Server.MaxUploadSize

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/remover", s.createRemover)
		api.GET("/remover/:id", s.getRemover)
		api.PUT("/remover/:id/image", s.uploadRemover)
		api.POST("/remover/:id/detect", s.detectObjects)
		api.POST("/remover/:id/toggle/:object", s.toggle)
		api.POST("/remover/:id/composite", s.compositeObjects)
		api.GET("/remover/:id/result", s.removerResult)

		api.POST("/resizer", s.createResizer)
		api.GET("/resizer/:id", s.getResizer)
		api.PUT("/resizer/:id/image", s.uploadResizer)
		api.PATCH("/resizer/:id", s.editResizer)
		api.GET("/resizer/:id/result", s.resizerResult)
		api.GET("/resizer/:id/ws", s.resizerWS)
	}

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

// Run 启动 HTTP 服务，ctx 结束时优雅退出
func (s *Server) Run(ctx context.Context) error {
	if err := s.store.Start(); err != nil {
		return fmt.Errorf("start session sweeper: %w", err)
	}
	defer s.store.Stop()

	srv := &http.Server{
		Addr:         s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", s.cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// readUpload 读取表单里的 image 文件并校验大小和类型
func (s *Server) readUpload(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "image file is required",
			Error:   err.Error(),
		})
		return nil, false
	}

	if file.Size > s.cfg.Server.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("file exceeds %s", raster.FormatBytes(s.cfg.Server.MaxUploadSize)),
		})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return nil, false
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, fmt.Errorf("read upload: %w", err))
		return nil, false
	}

	if contentType := http.DetectContentType(data); !s.isAllowedType(contentType) {
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Success: false,
			Message: "unsupported file type, only " + strings.Join(s.cfg.Server.AllowedTypes, ", "),
			Error:   contentType,
		})
		return nil, false
	}

	return data, true
}

func (s *Server) isAllowedType(contentType string) bool {
	for _, allowed := range s.cfg.Server.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// fail 把领域错误映射为 HTTP 状态码
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, raster.ErrDecode), errors.Is(err, resizer.ErrInvalidDimension):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownObject):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrNoDetection), errors.Is(err, session.ErrAlreadyDetected):
		status = http.StatusConflict
	case errors.Is(err, composite.ErrMaskDecode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, detect.ErrDetectionFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Success: false,
		Message: http.StatusText(status),
		Error:   err.Error(),
	})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Success: false,
		Message: "session not found",
	})
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
