package detect

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

const DefaultMockDelay = 2 * time.Second

// 1x1 的占位 mask
const dummyMask = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// MockProvider 固定延迟后返回两个对象
type MockProvider struct {
	delay time.Duration
	mask  []byte
}

func NewMockProvider(delay time.Duration) *MockProvider {
	mask, err := base64.StdEncoding.DecodeString(dummyMask)
	if err != nil {
		panic(err)
	}
	return &MockProvider{delay: delay, mask: mask}
}

func (m *MockProvider) Detect(ctx context.Context, image []byte) ([]Object, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDetectionFailed)
	}

	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return []Object{
		{ID: "obj1", Name: "Person 1", Mask: m.mask},
		{ID: "obj2", Name: "Object A", Mask: m.mask},
	}, nil
}
