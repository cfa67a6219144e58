// Copyright 2025 Joseph Cumines

package uidiff_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uia/uiatest"
	"github.com/joeycumines/DesktopUseAgent/internal/uidiff"
)

func editorTree() *uiatest.Node {
	return &uiatest.Node{
		ID:   "root",
		Role: "desktop",
		Children: []*uiatest.Node{{
			ID:   "win",
			Role: "window",
			Name: "Editor",
			Children: []*uiatest.Node{
				{ID: "field", Role: "edit", Name: "Body", Value: "draft"},
				{ID: "save", Role: "button", Name: "Save"},
			},
		}},
	}
}

func capture(t *testing.T, d *uiatest.Driver, opts uidiff.Options) string {
	t.Helper()
	cache, err := uia.NewCache(64)
	require.NoError(t, err)
	root, err := d.Root()
	require.NoError(t, err)
	out, err := uidiff.CaptureRendered(context.Background(), root, cache, opts)
	require.NoError(t, err)
	return out
}

func TestCaptureCompactYAML(t *testing.T) {
	d := uiatest.NewDriver(editorTree())
	out := capture(t, d, uidiff.Options{})
	assert.Contains(t, out, "role: window")
	assert.Contains(t, out, "name: Save")
	assert.Contains(t, out, "value: draft")
	assert.NotContains(t, out, "bounds", "fast capture must skip detail fields")
}

func TestCaptureVerboseJSON(t *testing.T) {
	d := uiatest.NewDriver(editorTree())
	out := capture(t, d, uidiff.Options{Format: uidiff.FormatVerboseJSON, DetailedAttributes: true})
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
	assert.Contains(t, out, `"role": "window"`)
	assert.Contains(t, out, `"enabled": true`)
}

func TestCaptureMaxDepth(t *testing.T) {
	d := uiatest.NewDriver(editorTree())
	out := capture(t, d, uidiff.Options{MaxDepth: 1})
	assert.Contains(t, out, "role: window")
	assert.NotContains(t, out, "Save", "depth 1 must stop above the buttons")
}

func TestCaptureUnknownFormat(t *testing.T) {
	d := uiatest.NewDriver(editorTree())
	cache, err := uia.NewCache(64)
	require.NoError(t, err)
	root, err := d.Root()
	require.NoError(t, err)
	_, err = uidiff.CaptureRendered(context.Background(), root, cache, uidiff.Options{Format: "xml"})
	assert.True(t, uia.IsKind(err, uia.KindInvalidArgument))
}

func TestDiffNoChanges(t *testing.T) {
	d := uiatest.NewDriver(editorTree())
	before := capture(t, d, uidiff.Options{})
	after := capture(t, d, uidiff.Options{})
	diff, changed := uidiff.Diff(before, after)
	assert.False(t, changed)
	assert.Empty(t, diff)
}

func TestDiffReportsChange(t *testing.T) {
	tree := editorTree()
	d := uiatest.NewDriver(tree)
	before := capture(t, d, uidiff.Options{})

	tree.Children[0].Children[0].Value = "final text"
	after := capture(t, d, uidiff.Options{})

	diff, changed := uidiff.Diff(before, after)
	assert.True(t, changed)
	assert.Contains(t, diff, "- ")
	assert.Contains(t, diff, "+ ")
	assert.Contains(t, diff, "final text")
}
