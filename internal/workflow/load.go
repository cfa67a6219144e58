// Copyright 2025 Joseph Cumines

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// fetchTimeout bounds remote workflow downloads.
const fetchTimeout = 30 * time.Second

// maxWorkflowBytes bounds how much of a workflow document we will read.
const maxWorkflowBytes = 8 << 20

// Source is the input to Load: exactly one of Inline or URL must be set.
type Source struct {
	// Inline is an already-decoded workflow document.
	Inline map[string]any
	// URL locates a workflow document: file://, http://, https://, or a
	// bare filesystem path.
	URL string
	// HTTPClient overrides the client used for remote URLs.
	HTTPClient *http.Client
}

// Load resolves a Source into a parsed Workflow. File-backed workflows
// remember their directory and base name for script resolution and state
// persistence.
func Load(ctx context.Context, src Source) (*Workflow, error) {
	switch {
	case src.Inline != nil && src.URL != "":
		return nil, uia.NewError(uia.KindInvalidArgument, "provide either an inline workflow or a url, not both")
	case src.Inline != nil:
		return parseInline(src.Inline)
	case src.URL != "":
		return loadURL(ctx, src)
	default:
		return nil, uia.NewError(uia.KindInvalidArgument, "no workflow provided")
	}
}

func parseInline(doc map[string]any) (*Workflow, error) {
	// Round-trip through YAML so inline documents get the same strict
	// field checking as file-backed ones.
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "encode inline workflow: %w", err)
	}
	return parse(raw, "", "")
}

func loadURL(ctx context.Context, src Source) (*Workflow, error) {
	raw := strings.TrimSpace(src.URL)
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		data, err := fetch(ctx, src.HTTPClient, raw)
		if err != nil {
			return nil, err
		}
		return parse(data, "", nameFromPath(raw))
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, uia.Errorf(uia.KindInvalidArgument, "invalid workflow url %q: %w", raw, err)
		}
		return loadFile(u.Path)
	default:
		return loadFile(raw)
	}
}

func loadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "read workflow file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return parse(data, filepath.Dir(abs), nameFromPath(path))
}

func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "invalid workflow url %q: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, uia.Errorf(uia.KindPlatformAPI, "fetch workflow: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, uia.Errorf(uia.KindPlatformAPI, "fetch workflow: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkflowBytes))
	if err != nil {
		return nil, uia.Errorf(uia.KindPlatformAPI, "read workflow body: %w", err)
	}
	return data, nil
}

// parse decodes a workflow document with strict field checking, so typos in
// step keys fail loudly instead of silently dropping behavior.
func parse(data []byte, dir, name string) (*Workflow, error) {
	var w Workflow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil && err != io.EOF {
		return nil, uia.Errorf(uia.KindInvalidArgument, "parse workflow: %w", err)
	}
	w.dir = dir
	w.name = name
	if err := w.normalizeSelectors(); err != nil {
		return nil, err
	}
	return &w, nil
}

// normalizeSelectors accepts `selectors` as either an object of strings or a
// JSON string encoding one, and stores the decoded map.
func (w *Workflow) normalizeSelectors() error {
	switch v := w.Selectors.(type) {
	case nil:
		return nil
	case map[string]any:
		return nil
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return uia.Errorf(uia.KindInvalidArgument, "selectors: not valid JSON: %w", err)
		}
		w.Selectors = decoded
		return nil
	default:
		return uia.NewError(uia.KindInvalidArgument, "selectors must be an object of strings or a JSON string")
	}
}

// SelectorMap returns the normalized selectors object, nil when absent.
func (w *Workflow) SelectorMap() map[string]any {
	m, _ := w.Selectors.(map[string]any)
	return m
}

func nameFromPath(p string) string {
	base := filepath.Base(p)
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
