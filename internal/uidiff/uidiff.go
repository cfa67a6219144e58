// Copyright 2025 Joseph Cumines

// Package uidiff captures accessibility subtrees as text and diffs the
// before/after renderings, so tool results can show what an action changed
// on screen.
package uidiff

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// Tree output formats.
const (
	FormatCompactYAML = "compact_yaml"
	FormatVerboseJSON = "verbose_json"
)

// DefaultMaxDepth bounds tree capture when the caller does not say.
const DefaultMaxDepth = 50

// Options controls tree capture.
type Options struct {
	// MaxDepth limits the capture depth; zero means DefaultMaxDepth.
	MaxDepth int
	// DetailedAttributes adds bounds and state fields to every node.
	DetailedAttributes bool
	// Format is FormatCompactYAML (the default) or FormatVerboseJSON.
	Format string
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o Options) format() string {
	if o.Format == "" {
		return FormatCompactYAML
	}
	return o.Format
}

// Node is one captured element. The YAML rendering keeps it to one short
// mapping per element so diffs stay line-oriented.
type Node struct {
	Role     string  `json:"role" yaml:"role"`
	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	ObjectID string  `json:"object_id,omitempty" yaml:"id,omitempty"`
	Value    string  `json:"value,omitempty" yaml:"value,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`

	Bounds  *uia.Bounds `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Enabled *bool       `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Focused *bool       `json:"focused,omitempty" yaml:"focused,omitempty"`
	Toggled *bool       `json:"toggled,omitempty" yaml:"toggled,omitempty"`
}

// Capture snapshots the subtree rooted at el. Detached or failing branches
// are silently omitted rather than failing the capture; a failure on the
// root itself is returned.
func Capture(ctx context.Context, el uia.Element, cache *uia.Cache, opts Options) (*Node, error) {
	node, err := captureNode(ctx, el, cache, opts, 0)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func captureNode(ctx context.Context, el uia.Element, cache *uia.Cache, opts Options, depth int) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, uia.Errorf(uia.KindTimeout, "tree capture cancelled: %w", err)
	}

	attrs, err := cache.Attributes(el, false)
	if err != nil {
		return nil, err
	}
	node := &Node{
		Role:     attrs.Role,
		Name:     attrs.Name,
		ObjectID: attrs.ObjectID,
	}
	if v, err := el.Value(); err == nil && v != "" {
		node.Value = v
	}
	if opts.DetailedAttributes {
		if b, err := el.Bounds(); err == nil {
			node.Bounds = &b
		}
		if v, err := el.Enabled(); err == nil {
			node.Enabled = &v
		}
		if v, err := el.Focused(); err == nil && v {
			node.Focused = &v
		}
		if v, err := el.Toggled(); err == nil && v {
			node.Toggled = &v
		}
	}

	if depth >= opts.maxDepth() {
		return node, nil
	}
	children, err := el.Children()
	if err != nil {
		return node, nil
	}
	for _, c := range children {
		child, err := captureNode(ctx, c, cache, opts, depth+1)
		if err != nil {
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Render serialises a captured tree in the requested format.
func Render(n *Node, format string) (string, error) {
	switch format {
	case FormatVerboseJSON:
		b, err := json.MarshalIndent(n, "", "  ")
		if err != nil {
			return "", uia.Errorf(uia.KindValidation, "render tree: %w", err)
		}
		return string(b), nil
	case FormatCompactYAML, "":
		var sb strings.Builder
		enc := yaml.NewEncoder(&sb)
		enc.SetIndent(2)
		if err := enc.Encode(n); err != nil {
			return "", uia.Errorf(uia.KindValidation, "render tree: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", uia.Errorf(uia.KindValidation, "render tree: %w", err)
		}
		return sb.String(), nil
	default:
		return "", uia.Errorf(uia.KindInvalidArgument, "unknown tree output format %q", format)
	}
}

// CaptureRendered captures and renders in one call.
func CaptureRendered(ctx context.Context, el uia.Element, cache *uia.Cache, opts Options) (string, error) {
	node, err := Capture(ctx, el, cache, opts)
	if err != nil {
		return "", err
	}
	return Render(node, opts.format())
}

// Diff computes a line-oriented diff between two tree renderings. Removed
// lines are prefixed "- ", added lines "+ "; unchanged regions collapse to
// a single elision marker. hasChanges is false when the renderings are
// identical.
func Diff(before, after string) (diff string, hasChanges bool) {
	if before == after {
		return "", false
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixed(&sb, "- ", d.Text)
		case diffmatchpatch.DiffInsert:
			writePrefixed(&sb, "+ ", d.Text)
		case diffmatchpatch.DiffEqual:
			if strings.Contains(d.Text, "\n") {
				sb.WriteString("  ...\n")
			}
		}
	}
	return sb.String(), true
}

func writePrefixed(sb *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}
