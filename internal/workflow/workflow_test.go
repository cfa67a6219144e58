// Copyright 2025 Joseph Cumines

package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/workflow"
)

// fakeExec records every dispatched call and answers from per-tool handlers.
type fakeExec struct {
	mu       sync.Mutex
	calls    []string
	args     []map[string]any
	handlers map[string]func(args map[string]any) (map[string]any, error)
}

func newFakeExec() *fakeExec {
	return &fakeExec{handlers: map[string]func(args map[string]any) (map[string]any, error){}}
}

func (f *fakeExec) on(tool string, fn func(args map[string]any) (map[string]any, error)) {
	f.handlers[tool] = fn
}

func (f *fakeExec) Execute(_ context.Context, toolName string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolName)
	f.args = append(f.args, args)
	f.mu.Unlock()
	if fn, ok := f.handlers[toolName]; ok {
		return fn(args)
	}
	return map[string]any{"status": "success"}, nil
}

func quietRunner(exec workflow.ToolExecutor) *workflow.Runner {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	r := workflow.NewRunner(exec, log)
	r.RetryGap = time.Millisecond
	return r
}

func boolPtr(b bool) *bool { return &b }

func TestRunStoresResultsAndMergesEnvironment(t *testing.T) {
	exec := newFakeExec()
	exec.on("get_quote", func(map[string]any) (map[string]any, error) {
		return map[string]any{"quote_id": "Q-42", "status": "done", "set_env": map[string]any{"region": "EU"}}, nil
	})
	exec.on("submit", func(args map[string]any) (map[string]any, error) {
		return map[string]any{"received": args}, nil
	})

	w := &workflow.Workflow{
		Selectors: map[string]any{"ok_button": "role:Button|name:OK"},
		Steps: []workflow.Step{
			{ID: "fetch", ToolName: "get_quote"},
			{ID: "send", ToolName: "submit", Arguments: map[string]any{
				"quote":    "{{quote_id}}",
				"selector": "{{ok_button}}",
				"prev":     "{{fetch_status}}",
			}},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 2, res.ExecutedSteps)
	assert.Equal(t, []string{"get_quote", "submit"}, exec.calls)

	// quote_id auto-merged (non-reserved), status did not, set_env applied.
	sent := exec.args[1]
	assert.Equal(t, "Q-42", sent["quote"])
	assert.Equal(t, "role:Button|name:OK", sent["selector"])
	assert.Equal(t, "success", sent["prev"])
	assert.Equal(t, map[string]any{"region": "EU"}, res.SetEnv)
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	exec := newFakeExec()
	attempts := 0
	exec.on("flaky", func(map[string]any) (map[string]any, error) {
		attempts++
		if attempts < 3 {
			return nil, uia.NewError(uia.KindElementNotFound, "not yet")
		}
		return map[string]any{}, nil
	})

	w := &workflow.Workflow{Steps: []workflow.Step{{ID: "s1", ToolName: "flaky", Retries: 3}}}
	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	require.Len(t, res.PerStepResults, 1)
	assert.Equal(t, 3, res.PerStepResults[0].Attempts)
}

func TestRunFallbackIntoTroubleshootingResumesAfterFailedStep(t *testing.T) {
	exec := newFakeExec()
	exec.on("step_b", func(map[string]any) (map[string]any, error) {
		return nil, uia.NewError(uia.KindElementNotFound, "dialog missing")
	})

	w := &workflow.Workflow{
		Steps: []workflow.Step{
			{ID: "a", ToolName: "step_a"},
			{ID: "b", ToolName: "step_b", Retries: 1, FallbackID: "fix"},
			{ID: "c", ToolName: "step_c"},
		},
		Troubleshooting: []workflow.Step{
			{ID: "fix", ToolName: "step_fix"},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"step_a", "step_b", "step_b", "step_fix", "step_c"}, exec.calls)
	assert.Equal(t, "partial_failure", res.Status)
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, workflow.Transfer{FromID: "b", ToID: "fix", Kind: "fallback"}, res.Transfers[0])
}

func TestRunConditionalSkipWritesNoStatus(t *testing.T) {
	exec := newFakeExec()
	exec.on("probe", func(args map[string]any) (map[string]any, error) {
		return map[string]any{"seen": args}, nil
	})

	w := &workflow.Workflow{
		Inputs: map[string]any{"product_types": []any{"FEX", "Term"}},
		Steps: []workflow.Step{
			{ID: "guarded", ToolName: "never_runs", If: "!contains(product_types, 'FEX')"},
			{ID: "after", ToolName: "probe", Arguments: map[string]any{"status": "{{guarded_status}}"}},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"probe"}, exec.calls)
	require.Len(t, res.PerStepResults, 2)
	assert.Equal(t, "skipped", res.PerStepResults[0].Status)
	// guarded_status was never written, so the placeholder survives.
	assert.Equal(t, "{{guarded_status}}", exec.args[0]["status"])
}

func TestRunPartialRangeIgnoresJumpAtBoundary(t *testing.T) {
	exec := newFakeExec()
	steps := make([]workflow.Step, 0, 6)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		steps = append(steps, workflow.Step{ID: id, ToolName: "tool_" + id})
	}
	steps[4].Jumps = []workflow.Jump{{If: "true", ToID: "s2"}}

	w := &workflow.Workflow{
		Steps:             steps,
		StartFromStep:     "s3",
		EndAtStep:         "s5",
		ExecuteJumpsAtEnd: boolPtr(false),
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"tool_s3", "tool_s4", "tool_s5"}, exec.calls)
	assert.Equal(t, "success", res.Status)
	assert.Empty(t, res.Transfers)
}

func TestRunJumpTransfersControl(t *testing.T) {
	exec := newFakeExec()
	exec.on("check", func(map[string]any) (map[string]any, error) {
		return map[string]any{"ready": true}, nil
	})

	w := &workflow.Workflow{
		Steps: []workflow.Step{
			{ID: "s1", ToolName: "check", Jumps: []workflow.Jump{
				{If: "ready == false", ToID: "s2"},
				{If: "ready == true", ToID: "s3", Reason: "already prepared"},
			}},
			{ID: "s2", ToolName: "prepare"},
			{ID: "s3", ToolName: "finish"},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "finish"}, exec.calls)
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "already prepared", res.Transfers[0].Reason)
}

func TestRunContinueOnError(t *testing.T) {
	exec := newFakeExec()
	exec.on("broken", func(map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	})

	w := &workflow.Workflow{
		Steps: []workflow.Step{
			{ID: "s1", ToolName: "broken", ContinueOnError: true},
			{ID: "s2", ToolName: "fine"},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "partial_failure", res.Status)
	assert.Equal(t, []string{"broken", "fine"}, exec.calls)
}

func TestRunStopsOnErrorByDefault(t *testing.T) {
	exec := newFakeExec()
	exec.on("broken", func(map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	})

	w := &workflow.Workflow{
		Steps: []workflow.Step{
			{ID: "s1", ToolName: "broken"},
			{ID: "s2", ToolName: "fine"},
		},
	}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, "s1", res.FailedStepID)
	assert.Equal(t, []string{"broken"}, exec.calls)
}

func TestRunValidateElementNeverFails(t *testing.T) {
	exec := newFakeExec()
	exec.on("validate_element", func(map[string]any) (map[string]any, error) {
		return nil, uia.NewError(uia.KindElementNotFound, "nothing there")
	})

	w := &workflow.Workflow{Steps: []workflow.Step{
		{ID: "check", ToolName: "validate_element"},
		{ID: "after", ToolName: "next"},
	}}
	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	require.Len(t, res.PerStepResults, 2)
	assert.Equal(t, "success", res.PerStepResults[0].Status)
	assert.Equal(t, false, res.PerStepResults[0].Result["exists"])
}

func TestRunGroupSkippableToleratesMemberFailure(t *testing.T) {
	exec := newFakeExec()
	exec.on("bad", func(map[string]any) (map[string]any, error) {
		return nil, errors.New("nope")
	})

	w := &workflow.Workflow{Steps: []workflow.Step{
		{GroupName: "setup", Skippable: true, Steps: []workflow.Step{
			{ID: "g1", ToolName: "bad"},
			{ID: "g2", ToolName: "good"},
		}},
		{ID: "after", ToolName: "final"},
	}}

	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, []string{"bad", "good", "final"}, exec.calls)
}

func TestRunJumpCycleAborts(t *testing.T) {
	exec := newFakeExec()
	w := &workflow.Workflow{Steps: []workflow.Step{
		{ID: "s1", ToolName: "noop", Jumps: []workflow.Jump{{If: "true", ToID: "s1"}}},
	}}
	res, err := quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)
	assert.Contains(t, res.Error, "maximum iterations")
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	for _, tt := range []struct {
		name string
		w    *workflow.Workflow
		want string
	}{
		{
			name: "missing required input",
			w: &workflow.Workflow{
				Variables: map[string]workflow.VariableDefinition{"user": {Type: "string"}},
			},
			want: "inputs.user",
		},
		{
			name: "enum outside options",
			w: &workflow.Workflow{
				Variables: map[string]workflow.VariableDefinition{"env": {Type: "enum", Options: []string{"dev", "prod"}}},
				Inputs:    map[string]any{"env": "staging"},
			},
			want: "inputs.env",
		},
		{
			name: "regex mismatch",
			w: &workflow.Workflow{
				Variables: map[string]workflow.VariableDefinition{"code": {Type: "string", Regex: `^\d{4}$`}},
				Inputs:    map[string]any{"code": "12a4"},
			},
			want: "inputs.code",
		},
		{
			name: "array item type",
			w: &workflow.Workflow{
				Variables: map[string]workflow.VariableDefinition{
					"ids": {Type: "array", ItemSchema: &workflow.VariableDefinition{Type: "number"}},
				},
				Inputs: map[string]any{"ids": []any{1.0, "two"}},
			},
			want: "inputs.ids[1]",
		},
		{
			name: "duplicate step id",
			w: &workflow.Workflow{Steps: []workflow.Step{
				{ID: "x", ToolName: "a"},
				{ID: "x", ToolName: "b"},
			}},
			want: "unique step id",
		},
		{
			name: "unresolved fallback",
			w: &workflow.Workflow{Steps: []workflow.Step{
				{ID: "x", ToolName: "a", FallbackID: "missing"},
			}},
			want: "fallback_id",
		},
		{
			name: "unresolved jump target",
			w: &workflow.Workflow{Steps: []workflow.Step{
				{ID: "x", ToolName: "a", Jumps: []workflow.Jump{{If: "true", ToID: "missing"}}},
			}},
			want: "to_id",
		},
		{
			name: "output parser missing field",
			w: &workflow.Workflow{
				OutputParser: map[string]any{"uiTreeJsonPath": "t", "fieldsToExtract": map[string]any{}},
			},
			want: "itemContainerDefinition",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.w.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	w := &workflow.Workflow{
		Variables: map[string]workflow.VariableDefinition{
			"timeout": {Type: "number", Default: 5000.0},
			"note":    {Type: "string", Required: boolPtr(false)},
		},
	}
	inputs, err := w.Validate()
	require.NoError(t, err)
	assert.Equal(t, 5000.0, inputs["timeout"])
	_, present := inputs["note"]
	assert.False(t, present)
}

func TestLoadInlineRejectsUnknownFields(t *testing.T) {
	_, err := workflow.Load(context.Background(), workflow.Source{Inline: map[string]any{
		"steps":      []any{},
		"stepz_typo": true,
	}})
	require.Error(t, err)
	assert.True(t, uia.IsKind(err, uia.KindInvalidArgument))
}

func TestLoadNormalizesSelectorJSONString(t *testing.T) {
	w, err := workflow.Load(context.Background(), workflow.Source{Inline: map[string]any{
		"selectors": `{"ok":"role:Button|name:OK"}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": "role:Button|name:OK"}, w.SelectorMap())
}

func TestLoadFileRemembersDirAndName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - id: s1\n    tool_name: click_element\n"), 0o644))

	w, err := workflow.Load(context.Background(), workflow.Source{URL: path})
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())
	assert.Equal(t, "checkout", w.Name())
	require.Len(t, w.Steps, 1)
	assert.Equal(t, "click_element", w.Steps[0].ToolName)
}

func TestStatePersistedAfterEachStepAndResumable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.yaml")
	doc := "steps:\n" +
		"  - id: s1\n    tool_name: fetch\n" +
		"  - id: s2\n    tool_name: record\n    arguments:\n      note: \"{{order_id}}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	exec := newFakeExec()
	exec.on("fetch", func(map[string]any) (map[string]any, error) {
		return map[string]any{"order_id": "ORD-7"}, nil
	})

	w, err := workflow.Load(context.Background(), workflow.Source{URL: path})
	require.NoError(t, err)
	_, err = quietRunner(exec).Run(context.Background(), w)
	require.NoError(t, err)

	stateFile := filepath.Join(dir, ".workflow_state", "order.json")
	data, err := os.ReadFile(stateFile)
	require.NoError(t, err)
	var st workflow.State
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "s2", st.LastCompletedStepID)
	assert.Equal(t, []string{"s1", "s2"}, st.StepsExecuted)
	assert.Equal(t, "ORD-7", st.Environment["order_id"])

	// A fresh run resuming at s2 sees the persisted environment: the
	// substituted argument carries the value produced before the "crash".
	exec2 := newFakeExec()
	w2, err := workflow.Load(context.Background(), workflow.Source{URL: path})
	require.NoError(t, err)
	w2.StartFromStep = "s2"
	_, err = quietRunner(exec2).Run(context.Background(), w2)
	require.NoError(t, err)
	require.Equal(t, []string{"record"}, exec2.calls)
	assert.Equal(t, "ORD-7", exec2.args[0]["note"])
}

func TestParseOutputExtractsRecords(t *testing.T) {
	tree := map[string]any{
		"role": "Window", "name": "Results",
		"children": []any{
			map[string]any{
				"role": "DataItem", "name": "row",
				"children": []any{
					map[string]any{"role": "Text", "name": "Acme Corp"},
					map[string]any{"role": "Edit", "name": "price", "value": "42.50"},
				},
			},
			map[string]any{
				"role": "DataItem", "name": "row",
				"children": []any{
					map[string]any{"role": "Text", "name": "Globex"},
					map[string]any{"role": "Edit", "name": "price", "value": "13.00"},
				},
			},
		},
	}
	w := &workflow.Workflow{OutputParser: map[string]any{
		"uiTreeJsonPath":          "capture.tree",
		"itemContainerDefinition": map[string]any{"role": "DataItem"},
		"fieldsToExtract": map[string]any{
			"company": "Text",
			"price":   map[string]any{"role": "Edit", "attribute": "value"},
		},
	}}

	out, err := w.ParseOutput(map[string]any{"capture": map[string]any{"tree": tree}})
	require.NoError(t, err)
	records, ok := out.([]map[string]any)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, "Acme Corp", records[0]["company"])
	assert.Equal(t, "42.50", records[0]["price"])
	assert.Equal(t, "Globex", records[1]["company"])
	assert.Equal(t, "13.00", records[1]["price"])
}
