package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// CachedProvider 按图片内容哈希缓存成功的检测结果
type CachedProvider struct {
	next   Provider
	cache  *lru.Cache[string, []Object]
	logger *zap.Logger
}

func NewCachedProvider(next Provider, size int, logger *zap.Logger) (*CachedProvider, error) {
	cache, err := lru.New[string, []Object](size)
	if err != nil {
		return nil, fmt.Errorf("new lru cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, cache: cache, logger: logger}, nil
}

func (c *CachedProvider) Detect(ctx context.Context, image []byte) ([]Object, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])

	if objects, ok := c.cache.Get(key); ok {
		c.logger.Debug("detect cache hit", zap.String("key", key))
		return objects, nil
	}

	objects, err := c.next.Detect(ctx, image)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, objects)
	return objects, nil
}
