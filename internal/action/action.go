// Copyright 2025 Joseph Cumines

// Package action implements the uniform operations on resolved elements:
// clicking, typing, structured setters, scrolling, window lifecycle,
// highlighting, and capture, each with actionability validation and a
// consistent result envelope.
package action

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// Result is the envelope every action returns on success. Specifics go in
// Details so the dispatch layer can merge envelopes without knowing each
// action's shape.
type Result struct {
	Action         string          `json:"action"`
	Status         string          `json:"status"`
	Element        *uia.Attributes `json:"element,omitempty"`
	SelectorUsed   string          `json:"selector_used,omitempty"`
	SelectorsTried []string        `json:"selectors_tried,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Details        map[string]any  `json:"details,omitempty"`

	// UIDiff is populated when the caller requested a before/after diff.
	UIDiff *DiffReport `json:"ui_diff,omitempty"`
}

// DiffReport is the before/after tree comparison attached to a Result.
type DiffReport struct {
	Diff       string `json:"diff"`
	TreeBefore string `json:"tree_before,omitempty"`
	TreeAfter  string `json:"tree_after,omitempty"`
	HasChanges bool   `json:"has_changes"`
}

// Actor executes actions against a driver. Construct with New.
type Actor struct {
	driver  uia.Driver
	cache   *uia.Cache
	locator *uia.Locator
	log     logrus.FieldLogger

	// settle is the post-action pause used by scroll iterations and the
	// diff capture; overridable for tests.
	settle time.Duration
	// boundsPollInterval and actionabilityTimeout configure the
	// actionability loop; zero values use the defaults.
	boundsPollInterval   time.Duration
	actionabilityTimeout time.Duration
}

// New returns an Actor over the driver. The cache is shared with the
// locator so `#id` selectors resolve to elements previous calls returned.
func New(driver uia.Driver, cache *uia.Cache, locator *uia.Locator, log logrus.FieldLogger) *Actor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Actor{
		driver:  driver,
		cache:   cache,
		locator: locator,
		log:     log,
		settle:  50 * time.Millisecond,
	}
}

// Locator exposes the actor's locator for callers that resolve elements
// themselves before invoking an action.
func (a *Actor) Locator() *uia.Locator { return a.locator }

// Cache exposes the shared element cache.
func (a *Actor) Cache() *uia.Cache { return a.cache }

// Driver exposes the underlying platform driver.
func (a *Actor) Driver() uia.Driver { return a.driver }

// result assembles a success envelope for el.
func (a *Actor) result(action string, el uia.Element, res uia.Resolution) Result {
	out := Result{
		Action:    action,
		Status:    "success",
		Timestamp: time.Now().UTC(),
	}
	if res.Selector != "" {
		out.SelectorUsed = res.Selector
	}
	if el != nil {
		if attrs, err := a.cache.Attributes(el, false); err == nil {
			out.Element = &attrs
		}
	}
	return out
}

func (r *Result) detail(key string, value any) {
	if r.Details == nil {
		r.Details = make(map[string]any)
	}
	r.Details[key] = value
}
