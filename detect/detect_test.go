package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaos-io/imagetools/config"
	nhttp "github.com/chaos-io/imagetools/util/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var someImage = []byte("image bytes")

func TestMockProvider_Detect(t *testing.T) {
	t.Parallel()

	objects, err := NewMockProvider(0).Detect(context.Background(), someImage)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "obj1", objects[0].ID)
	assert.Equal(t, "Person 1", objects[0].Name)
	assert.Equal(t, "obj2", objects[1].ID)
	assert.Equal(t, "Object A", objects[1].Name)

	for _, o := range objects {
		m, err := png.Decode(bytes.NewReader(o.Mask))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 1, 1), m.Bounds())
	}
}

func TestMockProvider_EmptyImage(t *testing.T) {
	t.Parallel()

	_, err := NewMockProvider(0).Detect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDetectionFailed)
}

func TestMockProvider_RespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := NewMockProvider(time.Hour).Detect(ctx, someImage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	p := WithTimeout(NewMockProvider(time.Hour), 20*time.Millisecond)
	_, err := p.Detect(context.Background(), someImage)
	assert.ErrorIs(t, err, ErrDetectionFailed)
	assert.ErrorContains(t, err, "timed out")

	fast := NewMockProvider(0)
	assert.Same(t, fast, WithTimeout(fast, 0))
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) Detect(ctx context.Context, image []byte) ([]Object, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []Object{{ID: fmt.Sprintf("obj-%d", len(image)), Name: "thing"}}, nil
}

func TestCachedProvider(t *testing.T) {
	t.Parallel()

	next := &countingProvider{}
	p, err := NewCachedProvider(next, 8, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		objects, err := p.Detect(context.Background(), someImage)
		require.NoError(t, err)
		assert.Equal(t, "obj-11", objects[0].ID)
	}
	assert.Equal(t, int32(1), next.calls.Load())

	_, err = p.Detect(context.Background(), []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	next := &countingProvider{err: ErrDetectionFailed}
	p, err := NewCachedProvider(next, 8, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := p.Detect(context.Background(), someImage)
		assert.ErrorIs(t, err, ErrDetectionFailed)
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestHTTPProvider_Detect(t *testing.T) {
	t.Parallel()

	maskPNG, err := base64.StdEncoding.DecodeString(dummyMask)
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantIDs []string
	}{
		{
			name:   "data url and raw base64 masks",
			status: http.StatusOK,
			body: `{"success": true, "objects": [
				{"id": "a", "name": "Cat", "mask": "data:image/png;base64,` + dummyMask + `", "confidence": 0.9},
				{"id": "b", "name": "Dog", "mask": "` + dummyMask + `"}]}`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "unsuccessful result",
			status:  http.StatusOK,
			body:    `{"success": false, "message": "no objects"}`,
			wantErr: ErrDetectionFailed,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `boom`,
			wantErr: ErrDetectionFailed,
		},
		{
			name:    "broken mask",
			status:  http.StatusOK,
			body:    `{"success": true, "objects": [{"id": "a", "name": "Cat", "mask": "%%%"}]}`,
			wantErr: ErrDetectionFailed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				file, _, err := r.FormFile("image")
				if assert.NoError(t, err) {
					data, _ := io.ReadAll(file)
					assert.Equal(t, someImage, data)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewHTTPProvider(server.URL, nhttp.NewHTTPClient(), nil)
			objects, err := p.Detect(context.Background(), someImage)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Len(t, objects, len(tt.wantIDs))
			for i, id := range tt.wantIDs {
				assert.Equal(t, id, objects[i].ID)
				assert.Equal(t, maskPNG, objects[i].Mask)
			}
			assert.InDelta(t, 0.9, objects[0].Confidence, 1e-9)
		})
	}
}

// stubClient 直接实现 IClient，不经过网络
type stubClient func(ctx context.Context, p *nhttp.RequestParam) error

func (f stubClient) DoHTTPRequest(ctx context.Context, p *nhttp.RequestParam) error {
	return f(ctx, p)
}

func TestHTTPProvider_WithStubClient(t *testing.T) {
	t.Parallel()

	var got *nhttp.RequestParam
	ok := stubClient(func(ctx context.Context, p *nhttp.RequestParam) error {
		got = p
		return json.Unmarshal([]byte(`{"success":true,"objects":[{"id":"obj1","name":"Person 1","mask":"AAEC"}]}`), p.Response)
	})

	objects, err := NewHTTPProvider("http://segmenter/detect", ok, nil).Detect(context.Background(), someImage)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, []byte{0, 1, 2}, objects[0].Mask)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "http://segmenter/detect", got.RequestURI)
	assert.Contains(t, got.Header["Content-Type"], "multipart/form-data")

	failing := stubClient(func(context.Context, *nhttp.RequestParam) error {
		return errors.New("connection refused")
	})
	_, err = NewHTTPProvider("http://segmenter/detect", failing, nil).Detect(context.Background(), someImage)
	assert.ErrorIs(t, err, ErrDetectionFailed)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	p, err := FromConfig(&config.DetectConfig{Provider: "mock", Timeout: time.Second, CacheSize: 4}, nil)
	require.NoError(t, err)
	objects, err := p.Detect(context.Background(), someImage)
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	_, err = FromConfig(&config.DetectConfig{Provider: "http"}, nil)
	assert.Error(t, err)

	_, err = FromConfig(&config.DetectConfig{Provider: "grpc"}, nil)
	assert.ErrorContains(t, err, "unknown detect provider")
}
