package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chaos-io/imagetools/composite"
	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func opaque(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(10 * y), B: 50, A: 255})
		}
	}
	return img
}

func regionMask(t *testing.T, w, h int, r image.Rectangle) []byte {
	t.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	return encodePNG(t, m)
}

type fakeProvider struct {
	objects []detect.Object
	err     error
	calls   int
}

func (f *fakeProvider) Detect(ctx context.Context, image []byte) ([]detect.Object, error) {
	f.calls++
	return f.objects, f.err
}

func newRemover(p detect.Provider) *Remover {
	return NewRemover(p, composite.NewCompositor(&config.CompositeConfig{}, nil), nil)
}

func TestRemover_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{objects: []detect.Object{
		{ID: "left", Name: "Left", Mask: regionMask(t, 8, 4, image.Rect(0, 0, 4, 4))},
		{ID: "right", Name: "Right", Mask: regionMask(t, 8, 4, image.Rect(4, 0, 8, 4))},
	}}
	r := newRemover(p)

	_, err := r.Composite(ctx)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.ErrorIs(t, r.Detect(ctx), ErrNoImage)

	require.NoError(t, r.Upload(encodePNG(t, opaque(8, 4))))
	_, err = r.Composite(ctx)
	assert.ErrorIs(t, err, ErrNoDetection)
	_, err = r.Toggle("left")
	assert.ErrorIs(t, err, ErrNoDetection)

	require.NoError(t, r.Detect(ctx))
	assert.Equal(t, []string{"left", "right"}, r.Selection().IDs(), "all objects selected after detection")
	assert.ErrorIs(t, r.Detect(ctx), ErrAlreadyDetected)
	assert.Equal(t, 1, p.calls)

	selected, err := r.Toggle("right")
	require.NoError(t, err)
	assert.False(t, selected)
	require.Len(t, r.Selected(), 1)
	assert.Equal(t, "left", r.Selected()[0].ID)

	_, err = r.Toggle("ghost")
	assert.ErrorIs(t, err, ErrUnknownObject)

	res, err := r.Composite(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), res.Bounds)
	assert.Same(t, res, r.Result())

	// 重新上传清空一切
	require.NoError(t, r.Upload(encodePNG(t, opaque(8, 4))))
	assert.Empty(t, r.Objects())
	assert.Zero(t, r.Selection().Len())
	assert.Nil(t, r.Result())
}

func TestRemover_EmptySelectionIsTransparent(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{objects: []detect.Object{
		{ID: "a", Mask: regionMask(t, 5, 5, image.Rect(0, 0, 5, 5))},
	}}
	r := newRemover(p)
	require.NoError(t, r.Upload(encodePNG(t, opaque(5, 5))))
	require.NoError(t, r.Detect(ctx))

	selected, err := r.Toggle("a")
	require.NoError(t, err)
	assert.False(t, selected)

	res, err := r.Composite(ctx)
	require.NoError(t, err)
	assert.True(t, res.Bounds.Empty())
	assert.Equal(t, image.Rect(0, 0, 5, 5), res.Image.Bounds())
}

func TestRemover_UploadIgnoresEmpty(t *testing.T) {
	r := newRemover(&fakeProvider{})
	require.NoError(t, r.Upload(encodePNG(t, opaque(3, 3))))
	original := r.Original()

	require.NoError(t, r.Upload(nil))
	assert.Same(t, original, r.Original())

	assert.Error(t, r.Upload([]byte("garbage")))
	assert.Same(t, original, r.Original())
}

func TestRemover_DetectFailureLeavesStateEmpty(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{err: detect.ErrDetectionFailed}
	r := newRemover(p)
	require.NoError(t, r.Upload(encodePNG(t, opaque(3, 3))))

	err := r.Detect(ctx)
	assert.ErrorIs(t, err, detect.ErrDetectionFailed)
	assert.Empty(t, r.Objects())
	assert.Zero(t, r.Selection().Len())

	// 重试
	p.err = nil
	p.objects = []detect.Object{{ID: "a", Mask: regionMask(t, 3, 3, image.Rect(0, 0, 3, 3))}}
	require.NoError(t, r.Detect(ctx))
	assert.Len(t, r.Objects(), 1)
}

func TestRemover_CompositeFailureKeepsPreviousResult(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{objects: []detect.Object{
		{ID: "good", Mask: regionMask(t, 4, 4, image.Rect(0, 0, 2, 2))},
		{ID: "bad", Mask: []byte("broken")},
	}}
	r := newRemover(p)
	require.NoError(t, r.Upload(encodePNG(t, opaque(4, 4))))
	require.NoError(t, r.Detect(ctx))

	_, err := r.Composite(ctx)
	assert.True(t, errors.Is(err, composite.ErrMaskDecode))
	assert.Nil(t, r.Result())

	_, err = r.Toggle("bad")
	require.NoError(t, err)
	res, err := r.Composite(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), res.Bounds)
}

func TestSelection(t *testing.T) {
	s := NewSelection("b", "a")
	assert.True(t, s.Has("a"))
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	var zero Selection
	assert.False(t, zero.Has("a"))
	assert.True(t, zero.toggle("a"))
	assert.False(t, zero.toggle("a"))
	assert.Zero(t, zero.Len())
}
