package server

import (
	"sync"
	"time"

	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/session"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// entry 一个会话，mu 串行化对 value 的访问
type entry[T any] struct {
	mu      sync.Mutex
	value   T
	touched time.Time
}

type registry[T any] struct {
	mu      sync.Mutex
	items   map[string]*entry[T]
	onEvict func(T)
}

func newRegistry[T any](onEvict func(T)) *registry[T] {
	return &registry[T]{items: make(map[string]*entry[T]), onEvict: onEvict}
}

func (r *registry[T]) add(v T, now time.Time) string {
	id := ksuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = &entry[T]{value: v, touched: now}
	return id
}

func (r *registry[T]) get(id string, now time.Time) (*entry[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if ok {
		e.touched = now
	}
	return e, ok
}

func (r *registry[T]) sweep(before time.Time) int {
	r.mu.Lock()
	var expired []*entry[T]
	for id, e := range r.items {
		if e.touched.Before(before) {
			delete(r.items, id)
			expired = append(expired, e)
		}
	}
	r.mu.Unlock()

	r.evict(expired)
	return len(expired)
}

func (r *registry[T]) clear() {
	r.mu.Lock()
	all := make([]*entry[T], 0, len(r.items))
	for id, e := range r.items {
		delete(r.items, id)
		all = append(all, e)
	}
	r.mu.Unlock()

	r.evict(all)
}

func (r *registry[T]) evict(entries []*entry[T]) {
	if r.onEvict == nil {
		return
	}
	for _, e := range entries {
		e.mu.Lock()
		r.onEvict(e.value)
		e.mu.Unlock()
	}
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Store 内存中的编辑会话，空闲超过 TTL 的会话由 cron 定期清理
type Store struct {
	removers *registry[*session.Remover]
	resizers *registry[*session.Resizer]

	ttl    time.Duration
	spec   string
	cron   *cron.Cron
	now    func() time.Time
	logger *zap.Logger
}

func NewStore(cfg *config.SessionConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		removers: newRegistry[*session.Remover](nil),
		resizers: newRegistry(func(r *session.Resizer) { r.Close() }),
		ttl:      cfg.TTL,
		spec:     cfg.SweepSpec,
		cron:     cron.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Start 启动定期清理
func (s *Store) Start() error {
	if s.ttl <= 0 || s.spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep() }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop 停止清理并释放所有会话
func (s *Store) Stop() {
	<-s.cron.Stop().Done()
	s.removers.clear()
	s.resizers.clear()
}

// Sweep 清理过期会话，返回清理的数量
func (s *Store) Sweep() int {
	before := s.now().Add(-s.ttl)
	n := s.removers.sweep(before) + s.resizers.sweep(before)
	if n > 0 {
		s.logger.Info("expired sessions swept", zap.Int("count", n))
	}
	return n
}

func (s *Store) AddRemover(r *session.Remover) string {
	return s.removers.add(r, s.now())
}

func (s *Store) AddResizer(r *session.Resizer) string {
	return s.resizers.add(r, s.now())
}

func (s *Store) remover(id string) (*entry[*session.Remover], bool) {
	return s.removers.get(id, s.now())
}

func (s *Store) resizer(id string) (*entry[*session.Resizer], bool) {
	return s.resizers.get(id, s.now())
}
