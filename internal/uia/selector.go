// Copyright 2025 Joseph Cumines

package uia

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectorKind discriminates the selector variants.
type SelectorKind string

const (
	// SelectorID matches the stable cache-assigned id, written `#x`.
	SelectorID SelectorKind = "id"
	// SelectorNativeID matches the platform automation id, written `nativeid:x`.
	SelectorNativeID SelectorKind = "nativeid"
	// SelectorRole matches by control role, written `role:button` or bare `button`.
	SelectorRole SelectorKind = "role"
	// SelectorName matches by accessible name, written `name:Save`.
	SelectorName SelectorKind = "name"
	// SelectorRoleAndName matches role and name together, written `button|Save`.
	SelectorRoleAndName SelectorKind = "roleandname"
	// SelectorPosition resolves the deepest element under a screen point,
	// written `pos:x,y`.
	SelectorPosition SelectorKind = "pos"
	// SelectorChain scopes each part within the previous match, written
	// `A >> B`.
	SelectorChain SelectorKind = "chain"
	// SelectorIndexed picks the k-th match of its base, written `atom|nth:k`.
	SelectorIndexed SelectorKind = "indexed"
)

// Selector is the parsed form of a selector expression. Exactly the fields
// relevant to Kind are populated.
type Selector struct {
	Kind SelectorKind

	// Value holds the id, native id, role, or name for the scalar kinds,
	// and the role for SelectorRoleAndName.
	Value string
	// Name is the name half of SelectorRoleAndName.
	Name string

	// X, Y are the screen coordinates for SelectorPosition.
	X, Y int

	// Parts are the chain links for SelectorChain, outermost first.
	Parts []Selector

	// Base and Index describe SelectorIndexed; Index is zero-based.
	Base  *Selector
	Index int
}

// ParseSelector parses a selector expression. The grammar is:
//
//	selector  := atom ('>>' atom)*
//	atom      := primitive ('|nth:' int)?
//	primitive := '#' id | 'nativeid:' id | 'pos:' int ',' int
//	           | role '|' name | 'role:' role | 'name:' name | role
//
// Whitespace around '>>' and '|' is skipped. Names may contain any
// character except '|' and the '>>' separator.
func ParseSelector(input string) (Selector, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Selector{}, invalidSelector(input, "empty selector")
	}

	parts := strings.Split(trimmed, ">>")
	if len(parts) == 1 {
		return parseAtom(parts[0], input)
	}

	chain := Selector{Kind: SelectorChain, Parts: make([]Selector, 0, len(parts))}
	for _, part := range parts {
		atom, err := parseAtom(part, input)
		if err != nil {
			return Selector{}, err
		}
		chain.Parts = append(chain.Parts, atom)
	}
	return chain, nil
}

func parseAtom(part, input string) (Selector, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return Selector{}, invalidSelector(input, "empty chain segment")
	}

	// An '|nth:k' suffix wraps whatever precedes it. Only the last pipe
	// segment is considered so `button|nth:2` and `list|item|nth:0` both
	// index, while `button|nth` is a name.
	if i := strings.LastIndex(part, "|"); i >= 0 {
		suffix := strings.TrimSpace(part[i+1:])
		if rest, ok := strings.CutPrefix(suffix, "nth:"); ok {
			k, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return Selector{}, invalidSelector(input, fmt.Sprintf("bad nth index %q", rest))
			}
			if k < 0 {
				return Selector{}, invalidSelector(input, fmt.Sprintf("negative nth index %d", k))
			}
			base, err := parsePrimitive(part[:i], input)
			if err != nil {
				return Selector{}, err
			}
			return Selector{Kind: SelectorIndexed, Base: &base, Index: k}, nil
		}
	}

	return parsePrimitive(part, input)
}

func parsePrimitive(part, input string) (Selector, error) {
	part = strings.TrimSpace(part)
	switch {
	case part == "":
		return Selector{}, invalidSelector(input, "empty selector atom")
	case strings.HasPrefix(part, "#"):
		id := part[1:]
		if id == "" {
			return Selector{}, invalidSelector(input, "empty id after '#'")
		}
		return Selector{Kind: SelectorID, Value: id}, nil
	case strings.HasPrefix(strings.ToLower(part), "nativeid:"):
		id := strings.TrimSpace(part[len("nativeid:"):])
		if id == "" {
			return Selector{}, invalidSelector(input, "empty native id")
		}
		return Selector{Kind: SelectorNativeID, Value: id}, nil
	case strings.HasPrefix(strings.ToLower(part), "pos:"):
		coords := strings.Split(part[len("pos:"):], ",")
		if len(coords) != 2 {
			return Selector{}, invalidSelector(input, "position needs exactly 'pos:x,y'")
		}
		x, errX := strconv.Atoi(strings.TrimSpace(coords[0]))
		y, errY := strconv.Atoi(strings.TrimSpace(coords[1]))
		if errX != nil || errY != nil {
			return Selector{}, invalidSelector(input, fmt.Sprintf("bad position coordinates %q", part))
		}
		return Selector{Kind: SelectorPosition, X: x, Y: y}, nil
	case strings.HasPrefix(part, "role:"):
		role := strings.TrimSpace(part[len("role:"):])
		if role == "" {
			return Selector{}, invalidSelector(input, "empty role")
		}
		return Selector{Kind: SelectorRole, Value: role}, nil
	case strings.HasPrefix(part, "name:"):
		// Names keep interior whitespace; only the edges are trimmed.
		name := strings.TrimSpace(part[len("name:"):])
		if name == "" {
			return Selector{}, invalidSelector(input, "empty name")
		}
		return Selector{Kind: SelectorName, Value: name}, nil
	case strings.Contains(part, "|"):
		role, name, _ := strings.Cut(part, "|")
		role = strings.TrimSpace(role)
		name = strings.TrimSpace(name)
		if role == "" || name == "" {
			return Selector{}, invalidSelector(input, fmt.Sprintf("bad role|name pair %q", part))
		}
		return Selector{Kind: SelectorRoleAndName, Value: role, Name: name}, nil
	default:
		return Selector{Kind: SelectorRole, Value: part}, nil
	}
}

func invalidSelector(input, reason string) error {
	return Errorf(KindInvalidArgument, "invalid selector %q: %s", input, reason).WithSelector(input)
}

// String renders the selector back to its textual form. The rendering
// parses back to an equal Selector.
func (s Selector) String() string {
	switch s.Kind {
	case SelectorID:
		return "#" + s.Value
	case SelectorNativeID:
		return "nativeid:" + s.Value
	case SelectorRole:
		// Bare roles are ambiguous when they contain grammar
		// metacharacters, so always render the explicit prefix.
		return "role:" + s.Value
	case SelectorName:
		return "name:" + s.Value
	case SelectorRoleAndName:
		return s.Value + "|" + s.Name
	case SelectorPosition:
		return fmt.Sprintf("pos:%d,%d", s.X, s.Y)
	case SelectorChain:
		parts := make([]string, len(s.Parts))
		for i, p := range s.Parts {
			parts[i] = p.String()
		}
		return strings.Join(parts, " >> ")
	case SelectorIndexed:
		return fmt.Sprintf("%s|nth:%d", s.Base.String(), s.Index)
	default:
		return fmt.Sprintf("<unknown selector kind %q>", s.Kind)
	}
}

// Equal reports structural equality.
func (s Selector) Equal(other Selector) bool {
	if s.Kind != other.Kind || s.Value != other.Value || s.Name != other.Name ||
		s.X != other.X || s.Y != other.Y || s.Index != other.Index {
		return false
	}
	if (s.Base == nil) != (other.Base == nil) {
		return false
	}
	if s.Base != nil && !s.Base.Equal(*other.Base) {
		return false
	}
	if len(s.Parts) != len(other.Parts) {
		return false
	}
	for i := range s.Parts {
		if !s.Parts[i].Equal(other.Parts[i]) {
			return false
		}
	}
	return true
}

// SplitSelectorList splits a comma-separated list of selector expressions,
// trimming whitespace and dropping empty entries. Commas inside a selector
// are not escapable; callers that need a literal comma in a name should pass
// expressions individually.
func SplitSelectorList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	raw := strings.Split(list, ",")
	out := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		part := raw[i]
		// Re-join the comma that `pos:x,y` legitimately contains.
		if i+1 < len(raw) && strings.HasPrefix(strings.ToLower(strings.TrimSpace(part)), "pos:") &&
			!strings.Contains(part, ">>") {
			part = part + "," + raw[i+1]
			i++
		}
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
