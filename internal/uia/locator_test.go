// Copyright 2025 Joseph Cumines

package uia_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uia/uiatest"
)

func newLocator(t *testing.T, d *uiatest.Driver) *uia.Locator {
	t.Helper()
	cache, err := uia.NewCache(64)
	require.NoError(t, err)
	return &uia.Locator{Driver: d, Cache: cache, PollInterval: 5 * time.Millisecond}
}

func TestLocatorFastPath(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	res, err := l.Resolve(context.Background(), uia.Query{Primary: "button|OK"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Element.RuntimeID())
	assert.Equal(t, "button|OK", res.Selector)
}

func TestLocatorChainAndIndex(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	res, err := l.Resolve(context.Background(), uia.Query{
		Primary: "window|Inbox >> listitem|nth:1",
	})
	require.NoError(t, err)
	assert.Equal(t, "item-1", res.Element.RuntimeID())
}

func TestLocatorPosition(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	res, err := l.Resolve(context.Background(), uia.Query{Primary: "pos:100,45"})
	require.NoError(t, err)
	assert.Equal(t, "item-2", res.Element.RuntimeID())
}

func TestLocatorIDSelector(t *testing.T) {
	tree := listTree()
	d := uiatest.NewDriver(tree)
	l := newLocator(t, d)

	id := l.Cache.ID(d.Elem(tree.Children[0].Children[3]))
	res, err := l.Resolve(context.Background(), uia.Query{Primary: "#" + uia.FormatID(id)})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Element.RuntimeID())
}

func TestLocatorPrimaryPreferredOverAlternative(t *testing.T) {
	// Both selectors match immediately; the primary must win even though
	// the alternative may complete first.
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	res, err := l.Resolve(context.Background(), uia.Query{
		Primary:      "button|OK",
		Alternatives: []string{"listitem|First"},
		Timeout:      500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "button|OK", res.Selector)
	assert.Equal(t, "ok", res.Element.RuntimeID())
}

func TestLocatorAlternativeWinsWhenPrimaryMisses(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	start := time.Now()
	res, err := l.Resolve(context.Background(), uia.Query{
		Primary:      "button|Does Not Exist",
		Alternatives: []string{"button|OK"},
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "button|OK", res.Selector)
	// The alternative win must not wait out the primary's full timeout,
	// only the short grace window.
	assert.Less(t, time.Since(start), time.Second)
}

func TestLocatorSequentialFallbacks(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	res, err := l.Resolve(context.Background(), uia.Query{
		Primary:   "button|Missing",
		Fallbacks: []string{"button|Also Missing", "listitem|Third"},
		Timeout:   50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "listitem|Third", res.Selector)
	assert.Equal(t, "item-2", res.Element.RuntimeID())
}

func TestLocatorCompositeNotFound(t *testing.T) {
	d := uiatest.NewDriver(listTree())
	l := newLocator(t, d)

	_, err := l.Resolve(context.Background(), uia.Query{
		Primary:      "button|A",
		Alternatives: []string{"button|B"},
		Fallbacks:    []string{"button|C"},
		Timeout:      30 * time.Millisecond,
	})
	require.Error(t, err)
	require.True(t, uia.IsKind(err, uia.KindElementNotFound))

	var ae *uia.AutomationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"button|A", "button|B", "button|C"}, sorted(ae.SelectorsTried))
	assert.NotEmpty(t, ae.Suggestions)
	assert.Contains(t, ae.Error(), "button|C")
}

func TestLocatorPlatformErrorShortCircuits(t *testing.T) {
	tree := listTree()
	// Poison the window node: walking into it fails with a platform error,
	// which must abort the whole race instead of burning the timeout on
	// alternatives and fallbacks.
	tree.Children[0].FailWith = uia.PlatformError("walk", "0x80004005", false, "UI Automation connection lost")
	d := uiatest.NewDriver(tree)
	l := newLocator(t, d)

	start := time.Now()
	_, err := l.Resolve(context.Background(), uia.Query{
		Primary:      "button|OK",
		Alternatives: []string{"listitem|First"},
		Fallbacks:    []string{"listitem|Second"},
		Timeout:      5 * time.Second,
	})
	require.Error(t, err)
	assert.True(t, uia.IsKind(err, uia.KindPlatformAPI), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLocatorScope(t *testing.T) {
	tree := listTree()
	d := uiatest.NewDriver(tree)
	l := newLocator(t, d)

	scope := d.Elem(tree.Children[0].Children[0]) // "First" list item
	_, err := l.Resolve(context.Background(), uia.Query{
		Primary: "button|OK",
		Scope:   scope,
		Timeout: 30 * time.Millisecond,
	})
	assert.True(t, uia.IsKind(err, uia.KindElementNotFound), "scoped search must not escape the subtree")
}

func TestLocatorWaitsForAppearance(t *testing.T) {
	tree := listTree()
	d := uiatest.NewDriver(tree)
	l := newLocator(t, d)

	hidden := tree.Children[0].Children[3]
	d.Detach(hidden)

	// Repair the node shortly after the search starts; the polling loop
	// must pick it up before the timeout.
	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Repair(hidden)
	}()

	res, err := l.Resolve(context.Background(), uia.Query{
		Primary: "button|OK",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Element.RuntimeID())
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
