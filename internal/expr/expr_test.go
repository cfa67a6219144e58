// Copyright 2025 Joseph Cumines

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func policyEnv() map[string]any {
	return map[string]any{
		"policy": map[string]any{
			"use_max_budget": false,
			"coverage_type":  "Graded",
			"product_types":  []any{"FEX", "Term"},
			"description":    "Final Expense",
			"monthly_cost":   42.0,
		},
		"applicant": map[string]any{
			"name": "John Doe",
		},
		"first-step_status": "success",
	}
}

func TestEvaluateBinary(t *testing.T) {
	env := policyEnv()
	tests := []struct {
		expr string
		want bool
	}{
		{"policy.use_max_budget == false", true},
		{"policy.use_max_budget == true", false},
		{"policy.coverage_type == 'Graded'", true},
		{"policy.coverage_type != 'Standard'", true},
		{"policy.coverage_type != 'Graded'", false},
		{"policy.monthly_cost == 42", true},
		{"policy.monthly_cost != 41", true},
		{"first-step_status == 'success'", true},
		{"policy.coverage_type == applicant.name", false},
		{"applicant.name == applicant.name", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.expr, env))
		})
	}
}

func TestEvaluateFunctions(t *testing.T) {
	env := policyEnv()
	tests := []struct {
		expr string
		want bool
	}{
		{"contains(policy.product_types, 'FEX')", true},
		{"contains(policy.product_types, 'MedSup')", false},
		{"contains(policy.description, 'Expense')", true},
		{"startsWith(applicant.name, 'John')", true},
		{"startsWith(applicant.name, 'Doe')", false},
		{"endsWith(applicant.name, 'Doe')", true},
		{"endsWith(applicant.name, 'John')", false},
		{"contains(policy.monthly_cost, '4')", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.expr, env))
		})
	}
}

func TestEvaluateNegation(t *testing.T) {
	env := policyEnv()
	assert.True(t, Evaluate("!policy.use_max_budget", env))
	assert.False(t, Evaluate("!contains(policy.product_types, 'FEX')", env))
	assert.True(t, Evaluate("!(policy.coverage_type == 'Standard')", env))
	// Negating a missing path is true: undefined is falsy.
	assert.True(t, Evaluate("!does.not.exist", env))
}

func TestEvaluateUndefined(t *testing.T) {
	env := policyEnv()
	// Missing paths compare false to everything under ==, so != holds.
	assert.False(t, Evaluate("var.not.found == true", env))
	assert.False(t, Evaluate("var.not.found == 'x'", env))
	assert.True(t, Evaluate("var.not.found != 'x'", env))
	assert.False(t, Evaluate("contains(var.not.found, 'x')", env))
	assert.False(t, Evaluate("startsWith(var.not.found, 'x')", env))
	// Two undefineds are still not equal to each other.
	assert.False(t, Evaluate("missing.a == missing.b", env))
}

func TestEvaluateTruthiness(t *testing.T) {
	env := policyEnv()
	assert.True(t, Evaluate("applicant.name", env))
	assert.False(t, Evaluate("policy.use_max_budget", env))
	assert.True(t, Evaluate("policy.product_types", env))
	assert.False(t, Evaluate("", env))
}

func TestEvaluateMalformed(t *testing.T) {
	env := policyEnv()
	assert.False(t, Evaluate("invalid expression", env))
	assert.False(t, Evaluate("unsupported(a, b)", env))
	assert.False(t, Evaluate("contains(policy.product_types)", env))
}

func TestEvaluateQuotedOperatorCharacters(t *testing.T) {
	env := map[string]any{"msg": "a == b"}
	assert.True(t, Evaluate("msg == 'a == b'", env))
	assert.False(t, Evaluate("msg == 'a != b'", env))
}

func TestLookup(t *testing.T) {
	env := policyEnv()
	assert.Equal(t, "Graded", Lookup("policy.coverage_type", env))
	assert.Equal(t, Undefined, Lookup("policy.absent", env))
	assert.Equal(t, Undefined, Lookup("policy.coverage_type.deeper", env))
}
