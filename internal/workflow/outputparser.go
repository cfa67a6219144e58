// Copyright 2025 Joseph Cumines

package workflow

import (
	"encoding/json"
	"strings"

	"github.com/joeycumines/DesktopUseAgent/internal/expr"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// ParseOutput applies the workflow's output_parser to the final environment:
// it locates a captured UI tree at uiTreeJsonPath, finds every node matching
// itemContainerDefinition, and extracts one record per container according
// to fieldsToExtract. Returns nil when no parser is configured.
//
// Criteria values match node attributes exactly; a value prefixed with
// "contains:" matches as a case-insensitive substring.
func (w *Workflow) ParseOutput(env map[string]any) (any, error) {
	if w.OutputParser == nil {
		return nil, nil
	}
	path, _ := w.OutputParser["uiTreeJsonPath"].(string)
	containerDef, _ := w.OutputParser["itemContainerDefinition"].(map[string]any)
	fieldDefs, _ := w.OutputParser["fieldsToExtract"].(map[string]any)
	if path == "" || containerDef == nil || fieldDefs == nil {
		return nil, uia.NewError(uia.KindInvalidArgument, "output_parser requires uiTreeJsonPath, itemContainerDefinition, and fieldsToExtract")
	}

	tree := expr.Lookup(path, env)
	if s, ok := tree.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, uia.Errorf(uia.KindInvalidArgument, "output_parser: value at %s is not a JSON tree: %w", path, err)
		}
		tree = decoded
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, uia.Errorf(uia.KindInvalidArgument, "output_parser: no UI tree at %s", path)
	}

	var containers []map[string]any
	walkNodes(root, func(n map[string]any) {
		if matchesCriteria(n, containerDef) {
			containers = append(containers, n)
		}
	})

	records := make([]map[string]any, 0, len(containers))
	for _, c := range containers {
		record := map[string]any{}
		for field, rawDef := range fieldDefs {
			record[field] = extractField(c, rawDef)
		}
		records = append(records, record)
	}
	return records, nil
}

// extractField finds the first descendant of container matching the field
// definition and returns the requested attribute. A bare string definition
// is shorthand for {role: <string>} returning the node's name.
func extractField(container map[string]any, rawDef any) any {
	attribute := "name"
	var criteria map[string]any
	switch def := rawDef.(type) {
	case string:
		criteria = map[string]any{"role": def}
	case map[string]any:
		criteria = make(map[string]any, len(def))
		for k, v := range def {
			if k == "attribute" {
				if s, ok := v.(string); ok {
					attribute = s
				}
				continue
			}
			criteria[k] = v
		}
	default:
		return nil
	}

	var out any
	walkNodes(container, func(n map[string]any) {
		if out == nil && matchesCriteria(n, criteria) {
			out = nodeAttr(n, attribute)
		}
	})
	return out
}

func walkNodes(n map[string]any, visit func(map[string]any)) {
	visit(n)
	children, _ := n["children"].([]any)
	for _, c := range children {
		if child, ok := c.(map[string]any); ok {
			walkNodes(child, visit)
		}
	}
}

func matchesCriteria(n map[string]any, criteria map[string]any) bool {
	for key, want := range criteria {
		wantStr, ok := want.(string)
		if !ok {
			return false
		}
		got, _ := nodeAttr(n, key).(string)
		if sub, isContains := strings.CutPrefix(wantStr, "contains:"); isContains {
			if !strings.Contains(strings.ToLower(got), strings.ToLower(sub)) {
				return false
			}
		} else if got != wantStr {
			return false
		}
	}
	return len(criteria) > 0
}

func nodeAttr(n map[string]any, key string) any {
	if v, ok := n[key]; ok {
		return v
	}
	return n[strings.ToLower(key)]
}
