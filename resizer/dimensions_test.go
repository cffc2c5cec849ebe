package resizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions_LockedWidth(t *testing.T) {
	d, err := NewDimensions(800, 600)
	require.NoError(t, err)
	assert.True(t, d.Locked())
	assert.InDelta(t, 800.0/600.0, d.AspectRatio(), 1e-12)

	require.NoError(t, d.SetWidth(400))
	w, h := d.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)
}

func TestDimensions_LockedHeight(t *testing.T) {
	d, err := NewDimensions(800, 600)
	require.NoError(t, err)

	require.NoError(t, d.SetHeight(150))
	w, h := d.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestDimensions_ToggleLock(t *testing.T) {
	d, err := NewDimensions(800, 600)
	require.NoError(t, err)

	d.SetLocked(false)
	require.NoError(t, d.SetWidth(1000))
	w, h := d.Size()
	assert.Equal(t, 1000, w)
	assert.Equal(t, 600, h, "unlocked width edit must not touch height")

	require.NoError(t, d.SetHeight(10))
	w, _ = d.Size()
	assert.Equal(t, 1000, w, "unlocked height edit must not touch width")

	// 比例沿用上传时的 4:3，不因为解锁期间的编辑而改变
	d.SetLocked(true)
	require.NoError(t, d.SetWidth(200))
	w, h = d.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestDimensions_Rounding(t *testing.T) {
	d, err := NewDimensions(1000, 333)
	require.NoError(t, err)

	require.NoError(t, d.SetWidth(500))
	_, h := d.Size()
	assert.Equal(t, 167, h) // 500 / (1000/333) = 166.5 -> 167

	// 极端比例下另一边至少为 1
	d, err = NewDimensions(1000, 1)
	require.NoError(t, err)
	require.NoError(t, d.SetWidth(1))
	_, h = d.Size()
	assert.Equal(t, 1, h)
}

func TestDimensions_Invalid(t *testing.T) {
	_, err := NewDimensions(0, 10)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	d, err := NewDimensions(10, 10)
	require.NoError(t, err)
	assert.ErrorIs(t, d.SetWidth(0), ErrInvalidDimension)
	assert.ErrorIs(t, d.SetHeight(-3), ErrInvalidDimension)

	w, h := d.Size()
	assert.Equal(t, 10, w)
	assert.Equal(t, 10, h)
}

func TestDimensions_MaxPixels(t *testing.T) {
	d, err := NewDimensions(800, 600)
	require.NoError(t, err)
	d.SetMaxPixels(1_000_000)

	tests := []struct {
		name   string
		locked bool
		set    func() error
	}{
		{name: "锁定时宽度换算出的高度超限", locked: true, set: func() error { return d.SetWidth(200000) }},
		{name: "解锁时单边超限", locked: false, set: func() error { return d.SetWidth(1 << 62) }},
		{name: "解锁时高度超限", locked: false, set: func() error { return d.SetHeight(1 << 40) }},
		{name: "锁定时刚好超过上限", locked: true, set: func() error { return d.SetWidth(1200) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.SetLocked(tt.locked)
			before, beforeH := d.Size()

			assert.ErrorIs(t, tt.set(), ErrInvalidDimension)
			w, h := d.Size()
			assert.Equal(t, before, w, "rejected edit must not change width")
			assert.Equal(t, beforeH, h, "rejected edit must not change height")
		})
	}

	d.SetLocked(true)
	require.NoError(t, d.SetWidth(1000))
	w, h := d.Size()
	assert.Equal(t, 1000, w)
	assert.Equal(t, 750, h)
}

func TestFitsPixels(t *testing.T) {
	assert.True(t, FitsPixels(1000, 1000, 1_000_000))
	assert.False(t, FitsPixels(1001, 1000, 1_000_000))
	assert.False(t, FitsPixels(1<<62, 600, 1_000_000))
	assert.False(t, FitsPixels(0, 10, 100))
	assert.True(t, FitsPixels(1<<40, 1<<20, 0), "0 means unlimited")
}
