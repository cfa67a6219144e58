// Copyright 2025 Joseph Cumines

package uia

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultLocateTimeout bounds a single selector search.
	DefaultLocateTimeout = 3000 * time.Millisecond
	// DefaultPollInterval is the pause between repeated tree searches while
	// waiting for an element to appear.
	DefaultPollInterval = 100 * time.Millisecond
	// primaryGraceWindow is how long a winning alternative waits for the
	// primary before being returned, so the primary is preferred whenever
	// both match near-simultaneously.
	primaryGraceWindow = 10 * time.Millisecond
)

// Locator resolves selector expressions against the accessibility tree.
type Locator struct {
	Driver Driver
	Cache  *Cache

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// GraceWindow overrides primaryGraceWindow when positive.
	GraceWindow time.Duration
}

// Query is one resolution request: a primary selector expression, optional
// concurrent alternatives, and optional sequential fallbacks.
type Query struct {
	Primary      string
	Alternatives []string
	Fallbacks    []string

	// Timeout bounds each individual search; zero means
	// DefaultLocateTimeout.
	Timeout time.Duration

	// Scope restricts the search to a subtree; nil searches from the
	// desktop root.
	Scope Element
}

// Resolution is a successful lookup: the element plus the selector
// expression that produced it.
type Resolution struct {
	Element  Element
	Selector string
}

func (l *Locator) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return DefaultPollInterval
}

func (l *Locator) graceWindow() time.Duration {
	if l.GraceWindow > 0 {
		return l.GraceWindow
	}
	return primaryGraceWindow
}

// Resolve finds the element for the query.
//
// The primary and all alternatives race concurrently, each bounded by the
// query timeout. A primary win is returned immediately; an alternative win
// waits out a short grace window in case the primary lands too. A platform
// API failure on any branch aborts the race, since retrying other selectors
// against a broken automation connection is pointless. Only when every
// concurrent branch misses are the fallbacks tried, one at a time.
func (l *Locator) Resolve(ctx context.Context, q Query) (Resolution, error) {
	if strings.TrimSpace(q.Primary) == "" {
		return Resolution{}, NewError(KindInvalidArgument, "empty primary selector")
	}
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}

	// Fast path: nothing to race, nothing to fall back to.
	if len(q.Alternatives) == 0 && len(q.Fallbacks) == 0 {
		el, err := l.resolveOne(ctx, q.Primary, q.Scope, timeout)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Element: el, Selector: q.Primary}, nil
	}

	type raceResult struct {
		index    int
		selector string
		element  Element
		err      error
	}

	selectors := append([]string{q.Primary}, q.Alternatives...)
	tried := make([]string, 0, len(selectors)+len(q.Fallbacks))
	failures := make([]string, 0, len(selectors)+len(q.Fallbacks))

	if len(selectors) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		results := make(chan raceResult, len(selectors))
		for i, sel := range selectors {
			g.Go(func() error {
				el, err := l.resolveOne(gctx, sel, q.Scope, timeout)
				results <- raceResult{index: i, selector: sel, element: el, err: err}
				if err != nil && IsKind(err, KindPlatformAPI) {
					return err
				}
				return nil
			})
		}
		// The group only errors on a platform API failure; goroutines
		// otherwise run to completion or cancellation, so the channel
		// receives exactly one result per branch.
		go func() { _ = g.Wait() }()

		var winner *raceResult
		var grace <-chan time.Time
		pending := len(selectors)
	race:
		for pending > 0 {
			select {
			case r := <-results:
				pending--
				if r.err != nil {
					if IsKind(r.err, KindPlatformAPI) {
						return Resolution{}, r.err
					}
					tried = append(tried, r.selector)
					failures = append(failures, fmt.Sprintf("%s: %v", r.selector, r.err))
					continue
				}
				if r.index == 0 {
					return Resolution{Element: r.element, Selector: r.selector}, nil
				}
				if winner == nil {
					winner = &r
					t := time.NewTimer(l.graceWindow())
					defer t.Stop()
					grace = t.C
				}
			case <-grace:
				break race
			case <-ctx.Done():
				return Resolution{}, Errorf(KindTimeout, "locator cancelled: %w", ctx.Err())
			}
		}
		if winner != nil {
			return Resolution{Element: winner.element, Selector: winner.selector}, nil
		}
	} else {
		el, err := l.resolveOne(ctx, q.Primary, q.Scope, timeout)
		if err == nil {
			return Resolution{Element: el, Selector: q.Primary}, nil
		}
		if IsKind(err, KindPlatformAPI) {
			return Resolution{}, err
		}
		tried = append(tried, q.Primary)
		failures = append(failures, fmt.Sprintf("%s: %v", q.Primary, err))
	}

	for _, sel := range q.Fallbacks {
		el, err := l.resolveOne(ctx, sel, q.Scope, timeout)
		if err == nil {
			return Resolution{Element: el, Selector: sel}, nil
		}
		if IsKind(err, KindPlatformAPI) {
			return Resolution{}, err
		}
		tried = append(tried, sel)
		failures = append(failures, fmt.Sprintf("%s: %v", sel, err))
	}

	err := Errorf(KindElementNotFound,
		"no element matched any of %d selector(s) within %s:\n  %s",
		len(tried), timeout, strings.Join(failures, "\n  "))
	err.Selector = q.Primary
	err.SelectorsTried = tried
	err.Suggestions = []string{
		"inspect the current UI with get_window_tree and adjust the selector",
		"add alternative_selectors for markup that varies between runs",
		"increase timeout_ms if the target appears after an animation or load",
	}
	return Resolution{}, err
}

// resolveOne runs a single selector expression, polling until it matches or
// the timeout lapses. Platform API errors abort immediately.
func (l *Locator) resolveOne(ctx context.Context, expr string, scope Element, timeout time.Duration) (Element, error) {
	sel, err := ParseSelector(expr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := l.pollInterval()
	var lastErr error
	for {
		el, err := l.findOnce(ctx, sel, scope)
		if err == nil {
			return el, nil
		}
		if IsKind(err, KindPlatformAPI) || IsKind(err, KindInvalidArgument) {
			return nil, err
		}
		lastErr = err

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			if lastErr != nil {
				return nil, Errorf(KindElementNotFound, "timed out after %s: %w", timeout, lastErr).
					WithSelector(expr)
			}
			return nil, Errorf(KindElementNotFound, "timed out after %s", timeout).WithSelector(expr)
		case <-t.C:
		}
	}
}

// findOnce performs one search pass with no waiting.
func (l *Locator) findOnce(ctx context.Context, sel Selector, scope Element) (Element, error) {
	switch sel.Kind {
	case SelectorID:
		return l.Cache.LookupString(sel.Value)
	case SelectorPosition:
		el, err := l.Driver.ElementFromPoint(sel.X, sel.Y)
		if err != nil {
			return nil, err
		}
		return DeepestAt(el, sel.X, sel.Y), nil
	case SelectorChain:
		current := scope
		for _, part := range sel.Parts {
			el, err := l.findOnce(ctx, part, current)
			if err != nil {
				return nil, err
			}
			current = el
		}
		return current, nil
	case SelectorIndexed:
		base := *sel.Base
		if base.Kind == SelectorChain || base.Kind == SelectorIndexed {
			return nil, Errorf(KindInvalidArgument, "nth index must apply to a simple selector, got %q", base)
		}
		root, err := l.searchRoot(scope)
		if err != nil {
			return nil, err
		}
		matches, err := FindAll(ctx, root, base, sel.Index+1)
		if err != nil {
			return nil, err
		}
		if len(matches) <= sel.Index {
			return nil, Errorf(KindElementNotFound, "selector %q matched %d element(s), need index %d",
				base, len(matches), sel.Index)
		}
		return matches[sel.Index], nil
	default:
		root, err := l.searchRoot(scope)
		if err != nil {
			return nil, err
		}
		matches, err := FindAll(ctx, root, sel, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, Errorf(KindElementNotFound, "no element matches %q", sel)
		}
		return matches[0], nil
	}
}

func (l *Locator) searchRoot(scope Element) (Element, error) {
	if scope != nil {
		return scope, nil
	}
	return l.Driver.Root()
}
