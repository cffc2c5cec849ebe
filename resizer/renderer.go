package resizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type RenderFunc func(ctx context.Context, spec Spec) (*Result, error)

// Update 一次发布：成功时 Result 非空，失败时 Err 非空
type Update struct {
	Seq    uint64
	Result *Result
	Err    error
}

// Renderer 按请求顺序 last-write-wins：每次 Submit 取消上一个在途渲染，
// 只有仍是最新请求的渲染结果才会被发布，先发后至的旧结果直接丢弃。
// 所有方法都可并发调用。
type Renderer struct {
	render RenderFunc
	logger *zap.Logger

	mu          sync.Mutex
	seq         uint64
	cancel      context.CancelFunc
	latest      *Result
	lastErr     error
	subscribers map[int]chan Update
	nextSub     int
	closed      bool

	wg sync.WaitGroup
}

func NewRenderer(render RenderFunc, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		render:      render,
		logger:      logger,
		subscribers: make(map[int]chan Update),
	}
}

// Submit 提交新的参数，返回该请求的序号；关闭后返回 0
func (r *Renderer) Submit(ctx context.Context, spec Spec) uint64 {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	seq := r.seq
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		res, err := r.safeRender(rctx, spec)
		r.publish(seq, res, err)
	}()

	return seq
}

// safeRender 渲染在独立 goroutine 里运行，panic 会作为错误发布而不是打挂进程
func (r *Renderer) safeRender(ctx context.Context, spec Spec) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("render panic", zap.Any("panic", p), zap.Stack("stack"))
			res, err = nil, fmt.Errorf("render panic: %v", p)
		}
	}()
	return r.render(ctx, spec)
}

func (r *Renderer) publish(seq uint64, res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || seq != r.seq {
		r.logger.Debug("drop stale render", zap.Uint64("seq", seq), zap.Uint64("latest", r.seq))
		return
	}

	u := Update{Seq: seq, Err: err}
	if err != nil {
		r.lastErr = err
		r.logger.Warn("render failed", zap.Uint64("seq", seq), zap.Error(err))
	} else {
		res.Seq = seq
		r.latest = res
		r.lastErr = nil
		u.Result = res
	}

	for _, ch := range r.subscribers {
		// 订阅者只关心最新一次，满了就替换掉旧的
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

// Latest 最近一次发布的结果，以及最新请求是否失败
func (r *Renderer) Latest() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.lastErr
}

// Seq 最新请求的序号
func (r *Renderer) Seq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Subscribe 订阅发布；返回的取消函数会关闭通道
func (r *Renderer) Subscribe() (<-chan Update, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Update, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subscribers[id]; ok {
				delete(r.subscribers, id)
				close(ch)
			}
		})
	}
}

// Wait 等待所有在途渲染结束
func (r *Renderer) Wait() {
	r.wg.Wait()
}

// Close 取消在途渲染并关闭所有订阅
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
}
