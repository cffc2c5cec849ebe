package server

import (
	"net/http"
	"time"

	"github.com/chaos-io/imagetools/resizer"
	"github.com/chaos-io/imagetools/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
	wsReadLimit  = 4 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// resizerWS 实时预览：客户端发送 Edit，服务端推送每一次发布的渲染结果。
// 会话重新上传或过期时渲染器关闭，连接随之结束。
func (s *Server) resizerWS(c *gin.Context) {
	id := c.Param("id")
	e, ok := s.store.resizer(id)
	if !ok {
		notFound(c)
		return
	}

	e.mu.Lock()
	renderer := e.value.Renderer()
	if renderer == nil {
		e.mu.Unlock()
		s.fail(c, session.ErrNoImage)
		return
	}
	updates, unsubscribe := renderer.Subscribe()
	latest, _ := renderer.Latest()
	e.mu.Unlock()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	log := s.logger.With(zap.String("session", id))
	log.Info("preview connected")

	errs := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			var edit session.Edit
			if err := conn.ReadJSON(&edit); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("preview read failed", zap.Error(err))
				}
				return
			}

			e.mu.Lock()
			_, err := e.value.Apply(c.Request.Context(), edit)
			e.mu.Unlock()
			if err != nil {
				select {
				case errs <- err:
				case <-time.After(wsWriteWait):
				}
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(msg wsMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Warn("preview write failed", zap.Error(err))
			return false
		}
		return true
	}

	if latest != nil && !write(resultMessage(latest.Seq, latest)) {
		return
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "renderer closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			msg := resultMessage(u.Seq, u.Result)
			if u.Err != nil {
				msg = wsMessage{Type: "error", Seq: u.Seq, Error: u.Err.Error()}
			}
			if !write(msg) {
				return
			}
		case err := <-errs:
			if !write(wsMessage{Type: "error", Error: err.Error()}) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-done:
			log.Info("preview disconnected")
			return
		}
	}
}

func resultMessage(seq uint64, res *resizer.Result) wsMessage {
	return wsMessage{Type: "result", Seq: seq, Result: newResultView(res)}
}
