// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"strings"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// modifierNames maps the curly-brace modifier tokens to canonical names.
var modifierNames = map[string]string{
	"ctrl":    "Ctrl",
	"control": "Ctrl",
	"alt":     "Alt",
	"shift":   "Shift",
	"win":     "Win",
	"windows": "Win",
	"cmd":     "Win",
	"meta":    "Win",
}

// ParseKeys parses the curly-brace key syntax into chords. `{Ctrl}c` holds
// Ctrl around c; `{Ctrl}{Shift}s` stacks modifiers; `{Enter}` and `{F5}`
// are named keys; bare characters are their own chords. Unbalanced braces
// fail with KindInvalidArgument.
func ParseKeys(sequence string) ([]uia.KeyChord, error) {
	var chords []uia.KeyChord
	var modifiers []string

	emit := func(key string) {
		chords = append(chords, uia.KeyChord{Modifiers: modifiers, Key: key})
		modifiers = nil
	}

	for i := 0; i < len(sequence); {
		c := sequence[i]
		if c == '{' {
			end := strings.IndexByte(sequence[i:], '}')
			if end < 0 {
				return nil, uia.Errorf(uia.KindInvalidArgument, "unterminated '{' in key sequence %q", sequence)
			}
			token := sequence[i+1 : i+end]
			if token == "" {
				return nil, uia.Errorf(uia.KindInvalidArgument, "empty braces in key sequence %q", sequence)
			}
			if canonical, ok := modifierNames[strings.ToLower(token)]; ok {
				modifiers = append(modifiers, canonical)
			} else {
				emit(token)
			}
			i += end + 1
			continue
		}
		if c == '}' {
			return nil, uia.Errorf(uia.KindInvalidArgument, "stray '}' in key sequence %q", sequence)
		}
		emit(string(c))
		i++
	}
	if len(modifiers) > 0 {
		return nil, uia.Errorf(uia.KindInvalidArgument,
			"key sequence %q ends with held modifiers and no key", sequence)
	}
	if len(chords) == 0 {
		return nil, uia.NewError(uia.KindInvalidArgument, "empty key sequence")
	}
	return chords, nil
}

// PressKey focuses the element and sends the key sequence to it.
func (a *Actor) PressKey(ctx context.Context, res uia.Resolution, sequence string) (Result, error) {
	chords, err := ParseKeys(sequence)
	if err != nil {
		return Result{}, err
	}
	el := res.Element
	if err := el.Focus(); err != nil {
		return Result{}, err
	}
	if err := a.sendChords(ctx, chords); err != nil {
		return Result{}, err
	}
	out := a.result("press_key", el, res)
	out.detail("key", sequence)
	return out, nil
}

// PressKeyGlobal sends the key sequence to whatever currently has focus.
func (a *Actor) PressKeyGlobal(ctx context.Context, sequence string) (Result, error) {
	chords, err := ParseKeys(sequence)
	if err != nil {
		return Result{}, err
	}
	if err := a.sendChords(ctx, chords); err != nil {
		return Result{}, err
	}
	var el uia.Element
	if focused, err := a.driver.FocusedElement(); err == nil {
		el = focused
	}
	out := a.result("press_key_global", el, uia.Resolution{})
	out.detail("key", sequence)
	return out, nil
}

func (a *Actor) sendChords(ctx context.Context, chords []uia.KeyChord) error {
	for _, chord := range chords {
		if err := ctx.Err(); err != nil {
			return uia.Errorf(uia.KindTimeout, "key dispatch cancelled: %w", err)
		}
		if err := a.driver.SendChord(chord); err != nil {
			return err
		}
	}
	return nil
}

// TypeOptions tunes TypeInto.
type TypeOptions struct {
	// ClearBefore selects all existing text and overwrites it.
	ClearBefore bool
	// UseClipboard pastes via the clipboard instead of per-character
	// synthesis; on clipboard failure the per-character path is used
	// transparently.
	UseClipboard bool
	// VerifyAction re-reads focus and enabled state after typing.
	VerifyAction bool
}

// TypeInto focuses the element and writes text into it.
func (a *Actor) TypeInto(ctx context.Context, res uia.Resolution, text string, opts TypeOptions) (Result, error) {
	el := res.Element
	if err := el.Focus(); err != nil {
		return Result{}, err
	}
	if opts.ClearBefore {
		if err := a.driver.SendChord(uia.KeyChord{Modifiers: []string{"Ctrl"}, Key: "a"}); err != nil {
			return Result{}, err
		}
		if err := a.driver.SendChord(uia.KeyChord{Key: "Delete"}); err != nil {
			return Result{}, err
		}
	}

	method := "keyboard"
	if opts.UseClipboard {
		if err := a.pasteText(text); err != nil {
			a.log.WithError(err).Debug("clipboard paste failed, falling back to key synthesis")
		} else {
			method = "clipboard"
		}
	}
	if method == "keyboard" {
		if err := a.driver.TypeText(text); err != nil {
			return Result{}, err
		}
	}

	out := a.result("type_into_element", el, res)
	out.detail("method", method)
	out.detail("text_length", len(text))

	if opts.VerifyAction {
		verified := true
		if focused, err := el.Focused(); err != nil || !focused {
			verified = false
		}
		if enabled, err := el.Enabled(); err != nil || !enabled {
			verified = false
		}
		out.detail("verified", verified)
	}
	return out, nil
}

// pasteText round-trips the text through the clipboard and synthesises a
// paste chord. The previous clipboard content is restored afterwards.
func (a *Actor) pasteText(text string) error {
	previous, prevErr := a.driver.ReadText()
	if err := a.driver.WriteText(text); err != nil {
		return err
	}
	if err := a.driver.SendChord(uia.KeyChord{Modifiers: []string{"Ctrl"}, Key: "v"}); err != nil {
		return err
	}
	if prevErr == nil {
		_ = a.driver.WriteText(previous)
	}
	return nil
}
