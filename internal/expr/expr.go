// Copyright 2025 Joseph Cumines

// Package expr evaluates the small condition language used by workflow `if`
// fields and `${{…}}` placeholders: equality and inequality, the contains /
// startsWith / endsWith functions, boolean negation, literals, and dotted
// path lookups against a JSON environment.
//
// Evaluation is total. A malformed expression or a missing path never
// errors; missing paths resolve to an "undefined" unit that compares false
// to everything, makes every function false, and negates to true.
package expr

import (
	"strconv"
	"strings"
)

// undefined is the result of looking up a path the environment does not
// contain. It is distinct from JSON null.
type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined is the sentinel for missing paths, exported so the variable
// substituter can distinguish "missing" from "null".
var Undefined any = undefinedType{}

// Evaluate evaluates the expression against the environment and returns a
// boolean. It never fails; unparseable expressions evaluate to false.
func Evaluate(expression string, env map[string]any) bool {
	return truthy(eval(strings.TrimSpace(expression), env))
}

func eval(expr string, env map[string]any) any {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Undefined
	}

	if rest, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(rest, "=") {
		return !truthy(eval(rest, env))
	}

	if wrapsWhole(expr) {
		return eval(expr[1:len(expr)-1], env)
	}

	if lhs, op, rhs, ok := splitBinary(expr); ok {
		left := eval(lhs, env)
		right := eval(rhs, env)
		equal := definedEqual(left, right)
		if op == "!=" {
			return !equal
		}
		return equal
	}

	if name, args, ok := splitCall(expr); ok {
		return evalCall(name, args, env)
	}

	return term(expr, env)
}

// term resolves a literal or a path lookup.
func term(expr string, env map[string]any) any {
	switch expr {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if len(expr) >= 2 && expr[0] == '\'' && expr[len(expr)-1] == '\'' {
		return expr[1 : len(expr)-1]
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f
	}
	return Lookup(expr, env)
}

// Lookup resolves a dotted path against the environment, returning
// Undefined when any segment is missing. Identifiers may contain letters,
// digits, '_' and '-'.
func Lookup(path string, env map[string]any) any {
	var current any = env
	for _, seg := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return Undefined
		}
		current, ok = obj[seg]
		if !ok {
			return Undefined
		}
	}
	return current
}

// definedEqual compares two resolved values. Undefined equals nothing,
// including another undefined.
func definedEqual(a, b any) bool {
	if a == Undefined || b == Undefined {
		return false
	}
	// Numbers arrive as float64 from JSON decoding and from literals, so a
	// direct comparison covers them; strings and bools likewise.
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case int:
		bv, ok := toFloat(b)
		return ok && float64(av) == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func evalCall(name string, args []string, env map[string]any) any {
	if len(args) != 2 {
		return false
	}
	subject := eval(args[0], env)
	probe, ok := eval(args[1], env).(string)
	if !ok {
		return false
	}

	switch name {
	case "contains":
		switch s := subject.(type) {
		case string:
			return strings.Contains(s, probe)
		case []any:
			for _, item := range s {
				if str, ok := item.(string); ok && str == probe {
					return true
				}
			}
			return false
		default:
			return false
		}
	case "startsWith":
		s, ok := subject.(string)
		return ok && strings.HasPrefix(s, probe)
	case "endsWith":
		s, ok := subject.(string)
		return ok && strings.HasSuffix(s, probe)
	default:
		return false
	}
}

// truthy maps a resolved value to a boolean: undefined, null, false, zero,
// and empty strings/collections are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case undefinedType:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return false
	}
}

// splitBinary finds a top-level == or != outside single quotes and
// parentheses.
func splitBinary(expr string) (lhs, op, rhs string, ok bool) {
	depth := 0
	quoted := false
	for i := 0; i < len(expr)-1; i++ {
		switch expr[i] {
		case '\'':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted {
				depth--
			}
		case '=', '!':
			if quoted || depth != 0 || expr[i+1] != '=' {
				continue
			}
			// Skip a lone '!' (negation) and require a two-byte operator.
			return strings.TrimSpace(expr[:i]), expr[i : i+2], strings.TrimSpace(expr[i+2:]), true
		}
	}
	return "", "", "", false
}

// splitCall parses `name(arg, arg)` with quote-aware comma splitting.
func splitCall(expr string) (name string, args []string, ok bool) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, false
	}
	name = strings.TrimSpace(expr[:open])
	for _, r := range name {
		if !isIdentRune(r) {
			return "", nil, false
		}
	}
	inner := expr[open+1 : len(expr)-1]

	var current strings.Builder
	quoted := false
	depth := 0
	flush := func() {
		args = append(args, strings.TrimSpace(current.String()))
		current.Reset()
	}
	for _, r := range inner {
		switch {
		case r == '\'':
			quoted = !quoted
			current.WriteRune(r)
		case r == '(' && !quoted:
			depth++
			current.WriteRune(r)
		case r == ')' && !quoted:
			depth--
			current.WriteRune(r)
		case r == ',' && !quoted && depth == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return name, args, true
}

// wrapsWhole reports whether the expression is one parenthesised group,
// i.e. the opening paren closes at the final byte.
func wrapsWhole(expr string) bool {
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return false
	}
	depth := 0
	quoted := false
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\'':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted {
				depth--
				if depth == 0 {
					return i == len(expr)-1
				}
			}
		}
	}
	return false
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
