// Copyright 2025 Joseph Cumines

package uia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Selector
	}{
		{"id", "#save-button", Selector{Kind: SelectorID, Value: "save-button"}},
		{"native id", "nativeid:SaveButton", Selector{Kind: SelectorNativeID, Value: "SaveButton"}},
		{"native id mixed case prefix", "NativeId:SaveButton", Selector{Kind: SelectorNativeID, Value: "SaveButton"}},
		{"position", "pos:100,200", Selector{Kind: SelectorPosition, X: 100, Y: 200}},
		{"position with spaces", "pos: 12 , -4", Selector{Kind: SelectorPosition, X: 12, Y: -4}},
		{"explicit role", "role:button", Selector{Kind: SelectorRole, Value: "button"}},
		{"bare role", "button", Selector{Kind: SelectorRole, Value: "button"}},
		{"explicit name", "name:Save As...", Selector{Kind: SelectorName, Value: "Save As..."}},
		{"role and name", "button|Save", Selector{Kind: SelectorRoleAndName, Value: "button", Name: "Save"}},
		{"role and name trims", " button | Save Document ", Selector{Kind: SelectorRoleAndName, Value: "button", Name: "Save Document"}},
		{
			"indexed role", "listitem|nth:2",
			Selector{Kind: SelectorIndexed, Index: 2, Base: &Selector{Kind: SelectorRole, Value: "listitem"}},
		},
		{
			"indexed role and name", "button|OK|nth:1",
			Selector{Kind: SelectorIndexed, Index: 1, Base: &Selector{Kind: SelectorRoleAndName, Value: "button", Name: "OK"}},
		},
		{
			"name that looks almost like nth", "button|nth",
			Selector{Kind: SelectorRoleAndName, Value: "button", Name: "nth"},
		},
		{
			"chain", "window|Settings >> role:pane >> button|Apply",
			Selector{Kind: SelectorChain, Parts: []Selector{
				{Kind: SelectorRoleAndName, Value: "window", Name: "Settings"},
				{Kind: SelectorRole, Value: "pane"},
				{Kind: SelectorRoleAndName, Value: "button", Name: "Apply"},
			}},
		},
		{
			"chain with index", "#root >> listitem|nth:0",
			Selector{Kind: SelectorChain, Parts: []Selector{
				{Kind: SelectorID, Value: "root"},
				{Kind: SelectorIndexed, Index: 0, Base: &Selector{Kind: SelectorRole, Value: "listitem"}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelector(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "parsed %#v, want %#v", got, tt.want)
		})
	}
}

func TestParseSelectorErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"empty id", "#"},
		{"empty native id", "nativeid:"},
		{"empty role", "role:"},
		{"empty name", "name:"},
		{"position too few coords", "pos:100"},
		{"position too many coords", "pos:1,2,3"},
		{"position non-numeric", "pos:a,b"},
		{"negative nth", "button|nth:-1"},
		{"nth not a number", "button|nth:two"},
		{"empty chain segment", "button >> "},
		{"role and name missing name", "button|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelector(tt.input)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidArgument), "kind = %v", KindOf(err))
		})
	}
}

func TestSelectorStringRoundTrip(t *testing.T) {
	inputs := []string{
		"#save",
		"nativeid:EditBox1",
		"role:button",
		"name:Untitled - Notepad",
		"button|Save",
		"pos:640,480",
		"list|nth:3",
		"window|Mail >> role:pane >> button|Send|nth:1",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := ParseSelector(input)
			require.NoError(t, err)
			second, err := ParseSelector(first.String())
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "round trip changed %q -> %q", input, first.String())
		})
	}
}

func TestSplitSelectorList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "button|Save", []string{"button|Save"}},
		{"multiple", "button|Save, #fallback , name:OK", []string{"button|Save", "#fallback", "name:OK"}},
		{"position keeps its comma", "pos:10,20, button|Save", []string{"pos:10,20", "button|Save"}},
		{"trailing comma", "button|Save,", []string{"button|Save"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSelectorList(tt.input))
		})
	}
}
