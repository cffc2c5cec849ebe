package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaos-io/imagetools/config"
	nhttp "github.com/chaos-io/imagetools/util/http"
	"go.uber.org/zap"
)

var ErrDetectionFailed = errors.New("detection failed")

// Object 检测到的一个对象，Mask 为编码后的图片，alpha 表示是否属于该对象
type Object struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Mask       []byte  `json:"mask"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Provider 外部对象检测服务
type Provider interface {
	Detect(ctx context.Context, image []byte) ([]Object, error)
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout 给每次检测加上超时
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

func (t *timeoutProvider) Detect(ctx context.Context, image []byte) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	objects, err := t.next.Detect(ctx, image)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: timed out after %s", ErrDetectionFailed, t.timeout)
	}
	return objects, err
}

// FromConfig 按配置组装检测服务：mock 或 http，外面套缓存和超时
func FromConfig(cfg *config.DetectConfig, logger *zap.Logger) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "", "mock":
		p = NewMockProvider(cfg.MockDelay)
	case "http":
		if cfg.Endpoint == "" {
			return nil, errors.New("detect endpoint is required for http provider")
		}
		p = NewHTTPProvider(cfg.Endpoint, nhttp.NewHTTPClient(), logger)
	default:
		return nil, fmt.Errorf("unknown detect provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedProvider(p, cfg.CacheSize, logger)
		if err != nil {
			return nil, err
		}
		p = cached
	}

	return WithTimeout(p, cfg.Timeout), nil
}
