// Copyright 2025 Joseph Cumines

// Package vars substitutes `{{path}}` and `${{expr}}` placeholders inside
// arbitrary JSON-shaped values, the step before tool arguments are
// dispatched. Placeholders resolve against the workflow environment;
// unknown placeholders are preserved verbatim so a later pass (or a human
// reading the logs) can still see them.
package vars

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/joeycumines/DesktopUseAgent/internal/expr"
)

// placeholderRE matches {{…}} and ${{…}} non-greedily; the inner capture is
// the same group either way.
var placeholderRE = regexp.MustCompile(`\$?\{\{(.*?)\}\}`)

// Substitute walks a decoded JSON value and returns a copy with every
// placeholder resolved against env. Strings are the only leaves that change:
//
//   - A string that is exactly one placeholder is replaced by the resolved
//     value with its JSON type preserved; expressions become booleans.
//   - Placeholders inside a larger string are replaced textually, with
//     non-string values JSON-encoded.
//   - Placeholders naming unknown paths, and non-expressions that are not
//     simple variables, are left untouched.
func Substitute(value any, env map[string]any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Substitute(item, env)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Substitute(item, env)
		}
		return out
	case string:
		return substituteString(v, env)
	default:
		return value
	}
}

func substituteString(s string, env map[string]any) any {
	loc := placeholderRE.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}

	// Full-string replacement keeps the resolved value's type.
	if loc[0] == 0 && loc[1] == len(s) {
		inner := strings.TrimSpace(s[loc[2]:loc[3]])
		if isSimpleVar(inner) {
			if v := expr.Lookup(inner, env); v != expr.Undefined {
				return v
			}
			return s
		}
		if isExpression(inner) {
			return expr.Evaluate(inner, env)
		}
		return s
	}

	return placeholderRE.ReplaceAllStringFunc(s, func(match string) string {
		inner := strings.TrimSpace(placeholderRE.FindStringSubmatch(match)[1])
		if isSimpleVar(inner) {
			v := expr.Lookup(inner, env)
			if v == expr.Undefined {
				return match
			}
			if str, ok := v.(string); ok {
				return str
			}
			return stringify(v)
		}
		if isExpression(inner) {
			return fmt.Sprintf("%v", expr.Evaluate(inner, env))
		}
		return match
	})
}

// isSimpleVar reports whether the placeholder body is a bare dotted path.
func isSimpleVar(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

// isExpression reports whether the placeholder body should be evaluated
// rather than preserved. Free text is deliberately NOT treated as an
// expression; only the condition language's distinctive tokens qualify.
func isExpression(s string) bool {
	return strings.Contains(s, "(") ||
		strings.Contains(s, "==") ||
		strings.Contains(s, "!=") ||
		strings.Contains(s, "contains") ||
		strings.Contains(s, "startsWith") ||
		strings.Contains(s, "endsWith")
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
