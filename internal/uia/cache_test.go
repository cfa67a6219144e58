// Copyright 2025 Joseph Cumines

package uia_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uia/uiatest"
)

func newTestTree() (*uiatest.Driver, *uiatest.Node) {
	button := &uiatest.Node{
		ID:       "btn-1",
		Role:     "button",
		Name:     "Save",
		NativeID: "SaveButton",
		Bounds:   uia.Bounds{X: 10, Y: 10, Width: 80, Height: 24},
	}
	root := &uiatest.Node{
		ID:     "root",
		Role:   "desktop",
		Bounds: uia.Bounds{Width: 1920, Height: 1080},
		Children: []*uiatest.Node{{
			ID:          "win-1",
			Role:        "window",
			Name:        "Editor",
			WindowTitle: "Editor",
			PID:         42,
			Bounds:      uia.Bounds{Width: 800, Height: 600},
			Children:    []*uiatest.Node{button},
		}},
	}
	return uiatest.NewDriver(root), button
}

func TestCacheIDStable(t *testing.T) {
	d, button := newTestTree()
	cache, err := uia.NewCache(16)
	require.NoError(t, err)

	first := cache.ID(d.Elem(button))
	second := cache.ID(d.Elem(button))
	assert.Equal(t, first, second, "same handle must keep its object id")

	el, ok := cache.Lookup(first)
	require.True(t, ok)
	assert.Equal(t, "btn-1", el.RuntimeID())
}

func TestCacheLookupString(t *testing.T) {
	d, button := newTestTree()
	cache, err := uia.NewCache(16)
	require.NoError(t, err)

	id := cache.ID(d.Elem(button))
	el, err := cache.LookupString("#" + uia.FormatID(id))
	require.NoError(t, err)
	assert.Equal(t, "btn-1", el.RuntimeID())

	_, err = cache.LookupString("#ffffffffffffffff")
	assert.True(t, uia.IsKind(err, uia.KindElementNotFound))

	_, err = cache.LookupString("#not-hex")
	assert.True(t, uia.IsKind(err, uia.KindInvalidArgument))
}

func TestCacheAttributesFastSet(t *testing.T) {
	d, button := newTestTree()
	cache, err := uia.NewCache(16)
	require.NoError(t, err)

	attrs, err := cache.Attributes(d.Elem(button), false)
	require.NoError(t, err)
	assert.Equal(t, "button", attrs.Role)
	assert.Equal(t, "Save", attrs.Name)
	assert.Equal(t, "SaveButton", attrs.NativeID)
	assert.NotEmpty(t, attrs.ObjectID)
	assert.Nil(t, attrs.Bounds, "fast set must not fetch bounds")

	// Second call is served from cache even if the live tree broke.
	d.Detach(button)
	attrs2, err := cache.Attributes(d.Elem(button), false)
	require.NoError(t, err)
	assert.Equal(t, attrs.Role, attrs2.Role)
}

func TestCacheAttributesDetail(t *testing.T) {
	d, button := newTestTree()
	cache, err := uia.NewCache(16)
	require.NoError(t, err)

	attrs, err := cache.Attributes(d.Elem(button), true)
	require.NoError(t, err)
	require.NotNil(t, attrs.Bounds)
	assert.Equal(t, 80.0, attrs.Bounds.Width)
	require.NotNil(t, attrs.Enabled)
	assert.True(t, *attrs.Enabled)
	require.NotNil(t, attrs.ProcessID)
	assert.Equal(t, int32(42), *attrs.ProcessID)
	require.NotNil(t, attrs.WindowTitle)
	assert.Equal(t, "Editor", *attrs.WindowTitle)
	require.NotNil(t, attrs.IndexInParent)
	assert.Equal(t, 0, *attrs.IndexInParent)
}

func TestCacheDetachedDetailFails(t *testing.T) {
	d, button := newTestTree()
	cache, err := uia.NewCache(16)
	require.NoError(t, err)

	// Populate the fast cache, then release the handle: detail queries must
	// surface the detach instead of silently returning stale data.
	_, err = cache.Attributes(d.Elem(button), false)
	require.NoError(t, err)
	d.Detach(button)

	_, err = cache.Attributes(d.Elem(button), true)
	assert.True(t, uia.IsKind(err, uia.KindElementDetached), "got %v", err)
}
