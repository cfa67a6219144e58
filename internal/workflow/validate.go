// Copyright 2025 Joseph Cumines

package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// requiredParserFields must all be present on an output_parser.
var requiredParserFields = []string{"uiTreeJsonPath", "itemContainerDefinition", "fieldsToExtract"}

// Validate checks the workflow document before any step runs: input schemas,
// selectors, output_parser shape, step-id uniqueness, and transfer-target
// resolution. It returns the validated inputs (with defaults applied).
func (w *Workflow) Validate() (map[string]any, error) {
	inputs, err := w.validateInputs()
	if err != nil {
		return nil, err
	}
	if err := w.validateSelectors(); err != nil {
		return nil, err
	}
	if err := w.validateOutputParser(); err != nil {
		return nil, err
	}
	if err := w.validateStepGraph(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func (w *Workflow) validateInputs() (map[string]any, error) {
	inputs := make(map[string]any, len(w.Inputs))
	for k, v := range w.Inputs {
		inputs[k] = v
	}
	for name, def := range w.Variables {
		val, present := inputs[name]
		if !present {
			if def.Default != nil {
				inputs[name] = def.Default
				continue
			}
			if def.IsRequired() {
				return nil, &ValidationError{
					Field:    "inputs." + name,
					Expected: "a value (required, no default)",
					Actual:   "absent",
				}
			}
			continue
		}
		if err := checkValue("inputs."+name, &def, val); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func checkValue(field string, def *VariableDefinition, val any) error {
	switch def.Type {
	case "", "string":
		s, ok := val.(string)
		if !ok {
			return typeMismatch(field, "string", val)
		}
		return checkString(field, def, s)
	case "enum":
		s, ok := val.(string)
		if !ok {
			return typeMismatch(field, "enum value", val)
		}
		if len(def.Options) > 0 && !contains(def.Options, s) {
			return &ValidationError{
				Field:    field,
				Expected: "one of " + strings.Join(def.Options, ", "),
				Actual:   s,
			}
		}
		return nil
	case "number":
		switch val.(type) {
		case int, int64, float64:
			return nil
		}
		return typeMismatch(field, "number", val)
	case "boolean":
		if _, ok := val.(bool); !ok {
			return typeMismatch(field, "boolean", val)
		}
		return nil
	case "array":
		items, ok := val.([]any)
		if !ok {
			return typeMismatch(field, "array", val)
		}
		if def.ItemSchema != nil {
			for i, item := range items {
				if err := checkValue(fmt.Sprintf("%s[%d]", field, i), def.ItemSchema, item); err != nil {
					return err
				}
			}
		}
		return nil
	case "object":
		obj, ok := val.(map[string]any)
		if !ok {
			return typeMismatch(field, "object", val)
		}
		for name, sub := range def.Properties {
			sv, present := obj[name]
			if !present {
				if sub.IsRequired() && sub.Default == nil {
					return &ValidationError{
						Field:    field + "." + name,
						Expected: "a value (required)",
						Actual:   "absent",
					}
				}
				continue
			}
			if err := checkValue(field+"."+name, &sub, sv); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:    field,
			Expected: "a known type (string|number|boolean|enum|array|object)",
			Actual:   def.Type,
		}
	}
}

func checkString(field string, def *VariableDefinition, s string) error {
	if def.Regex != "" {
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return &ValidationError{Field: field, Expected: "a valid regex in the schema", Actual: def.Regex}
		}
		if !re.MatchString(s) {
			return &ValidationError{Field: field, Expected: "a string matching " + def.Regex, Actual: s}
		}
	}
	if len(def.Options) > 0 && !contains(def.Options, s) {
		return &ValidationError{
			Field:    field,
			Expected: "one of " + strings.Join(def.Options, ", "),
			Actual:   s,
		}
	}
	return nil
}

func (w *Workflow) validateSelectors() error {
	m := w.SelectorMap()
	for name, v := range m {
		if _, ok := v.(string); !ok {
			return &ValidationError{
				Field:    "selectors." + name,
				Expected: "a selector string",
				Actual:   fmt.Sprintf("%T", v),
			}
		}
	}
	return nil
}

func (w *Workflow) validateOutputParser() error {
	if w.OutputParser == nil {
		return nil
	}
	for _, field := range requiredParserFields {
		if _, ok := w.OutputParser[field]; !ok {
			return &ValidationError{
				Field:    "output_parser." + field,
				Expected: "present",
				Actual:   "absent",
			}
		}
	}
	return nil
}

// validateStepGraph checks id uniqueness across steps and troubleshooting
// (including nested group members) and that every transfer target resolves.
func (w *Workflow) validateStepGraph() error {
	seen := map[string]bool{}
	var collect func(field string, steps []Step) error
	collect = func(field string, steps []Step) error {
		for i := range steps {
			s := &steps[i]
			if s.ID != "" {
				if seen[s.ID] {
					return &ValidationError{
						Field:    fmt.Sprintf("%s[%d].id", field, i),
						Expected: "a unique step id",
						Actual:   s.ID + " (duplicate)",
					}
				}
				seen[s.ID] = true
			}
			if s.IsGroup() {
				if err := collect(fmt.Sprintf("%s[%d].steps", field, i), s.Steps); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := collect("steps", w.Steps); err != nil {
		return err
	}
	if err := collect("troubleshooting", w.Troubleshooting); err != nil {
		return err
	}

	var checkTargets func(field string, steps []Step) error
	checkTargets = func(field string, steps []Step) error {
		for i := range steps {
			s := &steps[i]
			if s.FallbackID != "" && !seen[s.FallbackID] {
				return &ValidationError{
					Field:    fmt.Sprintf("%s[%d].fallback_id", field, i),
					Expected: "an existing step id",
					Actual:   s.FallbackID,
				}
			}
			for j, jp := range s.Jumps {
				if jp.ToID == "" || !seen[jp.ToID] {
					return &ValidationError{
						Field:    fmt.Sprintf("%s[%d].jumps[%d].to_id", field, i, j),
						Expected: "an existing step id",
						Actual:   jp.ToID,
					}
				}
			}
			if s.IsGroup() {
				if err := checkTargets(fmt.Sprintf("%s[%d].steps", field, i), s.Steps); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := checkTargets("steps", w.Steps); err != nil {
		return err
	}
	return checkTargets("troubleshooting", w.Troubleshooting)
}

func typeMismatch(field, expected string, val any) *ValidationError {
	return &ValidationError{Field: field, Expected: expected, Actual: fmt.Sprintf("%T(%v)", val, val)}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
