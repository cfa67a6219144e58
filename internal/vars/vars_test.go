// Copyright 2025 Joseph Cumines

package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sub(t *testing.T, value any, env map[string]any) any {
	t.Helper()
	return Substitute(value, env)
}

func TestSubstituteSimpleStringVariable(t *testing.T) {
	got := sub(t,
		map[string]any{"url": "{{url}}"},
		map[string]any{"url": "http://example.com"})
	assert.Equal(t, map[string]any{"url": "http://example.com"}, got)
}

func TestSubstituteNestedVariable(t *testing.T) {
	got := sub(t,
		map[string]any{"selector": "{{selectors.my_button}}"},
		map[string]any{"selectors": map[string]any{"my_button": "button|Click Me"}})
	assert.Equal(t, map[string]any{"selector": "button|Click Me"}, got)
}

func TestSubstituteVariableInString(t *testing.T) {
	got := sub(t,
		map[string]any{"selector": "radiobutton|{{gender}}"},
		map[string]any{"gender": "Male"})
	assert.Equal(t, map[string]any{"selector": "radiobutton|Male"}, got)
}

func TestSubstituteNonExistentVariablePreserved(t *testing.T) {
	got := sub(t, map[string]any{"selector": "{{non_existent}}"}, map[string]any{})
	assert.Equal(t, map[string]any{"selector": "{{non_existent}}"}, got)

	got = sub(t, map[string]any{"text": "hello {{missing}} world"}, map[string]any{})
	assert.Equal(t, map[string]any{"text": "hello {{missing}} world"}, got)
}

func TestSubstituteVariableWithHyphen(t *testing.T) {
	got := sub(t,
		map[string]any{"value": "{{a-b-c}}"},
		map[string]any{"a-b-c": "test-value"})
	assert.Equal(t, map[string]any{"value": "test-value"}, got)
}

func TestSubstitutePartialWithNumber(t *testing.T) {
	got := sub(t,
		map[string]any{"value": "timeout_{{timeout_ms}}"},
		map[string]any{"timeout_ms": 5000.0})
	assert.Equal(t, map[string]any{"value": "timeout_5000"}, got)
}

func TestSubstitutePreservesType(t *testing.T) {
	env := map[string]any{
		"desired_state": true,
		"count":         3.0,
		"items":         []any{"a", "b"},
	}
	got := sub(t, map[string]any{
		"state": "{{desired_state}}",
		"count": "{{count}}",
		"items": "{{items}}",
	}, env)
	assert.Equal(t, map[string]any{
		"state": true,
		"count": 3.0,
		"items": []any{"a", "b"},
	}, got)
}

func TestSubstituteExpression(t *testing.T) {
	env := map[string]any{"product_types": []any{"FEX", "Term"}}
	assert.Equal(t, true, sub(t, "{{contains(product_types, 'FEX')}}", env))
	assert.Equal(t, false, sub(t, "{{contains(product_types, 'MedSup')}}", env))

	env = map[string]any{"quote_type": "Face Amount"}
	assert.Equal(t, true, sub(t, "{{quote_type == 'Face Amount'}}", env))
	assert.Equal(t, false, sub(t, "{{quote_type == 'Monthly'}}", env))
}

func TestSubstituteGitHubActionsStyle(t *testing.T) {
	assert.Equal(t, "https://github.com",
		sub(t, "${{target_url}}", map[string]any{"target_url": "https://github.com"}))
	assert.Equal(t, "button|Submit",
		sub(t, "button|${{button_name}}", map[string]any{"button_name": "Submit"}))
	assert.Equal(t, true,
		sub(t, "${{quote_type == 'Face Amount'}}", map[string]any{"quote_type": "Face Amount"}))
}

func TestSubstituteNegationExpressions(t *testing.T) {
	env := map[string]any{"product_types": []any{"FEX", "Term"}}
	assert.Equal(t, false, sub(t, "{{!contains(product_types, 'FEX')}}", env))
	assert.Equal(t, true, sub(t, "{{!contains(product_types, 'MedSup')}}", env))
	assert.Equal(t, true, sub(t, "{{!!contains(product_types, 'FEX')}}", env))
	assert.Equal(t, true, sub(t, "{{  !  contains(product_types, 'MedSup')  }}", env))

	env = map[string]any{"quote_type": "Face Amount"}
	// '!' binds the whole comparison.
	assert.Equal(t, false, sub(t, "{{!quote_type == 'Face Amount'}}", env))
	assert.Equal(t, true, sub(t, "{{!quote_type == 'Monthly Amount'}}", env))
}

func TestFreeTextIsNotAnExpression(t *testing.T) {
	env := map[string]any{}
	got := sub(t, "{{please click the button}}", env)
	assert.Equal(t, "{{please click the button}}", got)
}

func TestSubstitutePartialExpression(t *testing.T) {
	env := map[string]any{"quote_type": "Face Amount"}
	got := sub(t, "enabled={{quote_type == 'Face Amount'}}", env)
	assert.Equal(t, "enabled=true", got)
}

func TestSubstituteWalksArraysAndObjects(t *testing.T) {
	env := map[string]any{
		"url":       "http://example.com",
		"selectors": map[string]any{"browser_window": "window|Browser"},
	}
	got := sub(t, map[string]any{
		"steps": []any{
			map[string]any{"tool_name": "navigate_browser", "arguments": map[string]any{"url": "{{url}}"}},
			map[string]any{"tool_name": "maximize_window", "arguments": map[string]any{"selector": "{{selectors.browser_window}}"}},
		},
	}, env)
	want := map[string]any{
		"steps": []any{
			map[string]any{"tool_name": "navigate_browser", "arguments": map[string]any{"url": "http://example.com"}},
			map[string]any{"tool_name": "maximize_window", "arguments": map[string]any{"selector": "window|Browser"}},
		},
	}
	assert.Equal(t, want, got)
}

func TestSubstituteIdempotentOnResolved(t *testing.T) {
	env := map[string]any{"name": "value"}
	once := sub(t, "literal text with {{name}}", env)
	twice := sub(t, once, env)
	assert.Equal(t, once, twice)
}

func TestSubstituteNonStringLeavesUntouched(t *testing.T) {
	env := map[string]any{}
	assert.Equal(t, 7.0, sub(t, 7.0, env))
	assert.Equal(t, true, sub(t, true, env))
	assert.Nil(t, sub(t, nil, env))
}
