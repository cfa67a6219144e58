// Copyright 2025 Joseph Cumines

package uia

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Attributes is the serialisable view of an element. The fast set (ObjectID,
// Role, Name, NativeID) is always populated; the remaining fields are only
// fetched when detail is requested, and pointer-typed so omitted properties
// stay out of JSON output.
type Attributes struct {
	ObjectID string `json:"object_id"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	NativeID string `json:"native_id,omitempty"`

	Bounds            *Bounds `json:"bounds,omitempty"`
	Enabled           *bool   `json:"enabled,omitempty"`
	Visible           *bool   `json:"visible,omitempty"`
	Focused           *bool   `json:"focused,omitempty"`
	KeyboardFocusable *bool   `json:"keyboard_focusable,omitempty"`
	Toggled           *bool   `json:"toggled,omitempty"`
	Selected          *bool   `json:"selected,omitempty"`
	Value             *string `json:"value,omitempty"`
	Description       *string `json:"description,omitempty"`
	ProcessID         *int32  `json:"process_id,omitempty"`
	WindowTitle       *string `json:"window_title,omitempty"`
	ApplicationName   *string `json:"application_name,omitempty"`
	ChildrenCount     *int    `json:"children_count,omitempty"`
	IndexInParent     *int    `json:"index_in_parent,omitempty"`
}

type fastAttributes struct {
	role     string
	name     string
	nativeID string
}

// Cache interns element handles under stable 64-bit object ids and memoises
// their cheap attribute set. Ids are deterministic for a given handle within
// a session, so `#id` selectors resolve across tool calls. Volatile
// properties (bounds, focus, value and friends) are never cached.
//
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	elements *lru.Cache[uint64, Element]
	attrs    *lru.Cache[uint64, fastAttributes]
}

// DefaultCacheSize bounds the number of interned handles; old entries are
// evicted least-recently-used, after which their `#id` no longer resolves.
const DefaultCacheSize = 4096

// NewCache returns a cache holding up to size interned handles. Size must be
// positive; DefaultCacheSize suits interactive sessions.
func NewCache(size int) (*Cache, error) {
	elements, err := lru.New[uint64, Element](size)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "element cache: %w", err)
	}
	attrs, err := lru.New[uint64, fastAttributes](size)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "element cache: %w", err)
	}
	return &Cache{elements: elements, attrs: attrs}, nil
}

// ID interns the element and returns its stable object id. The id is a
// 64-bit FNV-1a hash of the platform runtime id, so re-interning the same
// handle (or a fresh handle to the same node) yields the same id.
func (c *Cache) ID(el Element) uint64 {
	id := hashRuntimeID(el.RuntimeID())
	c.mu.Lock()
	c.elements.Add(id, el)
	c.mu.Unlock()
	return id
}

// FormatID renders an object id the way selectors spell it, without the
// leading '#'.
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 16)
}

// ParseID parses the `#id` payload produced by FormatID.
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 64)
	if err != nil {
		return 0, Errorf(KindInvalidArgument, "bad object id %q: %w", s, err)
	}
	return id, nil
}

// Lookup returns the interned element for an object id.
func (c *Cache) Lookup(id uint64) (Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elements.Get(id)
}

// LookupString resolves the textual `#id` form used by selectors.
func (c *Cache) LookupString(s string) (Element, error) {
	id, err := ParseID(s)
	if err != nil {
		return nil, err
	}
	el, ok := c.Lookup(id)
	if !ok {
		return nil, Errorf(KindElementNotFound, "no cached element with id #%s", FormatID(id)).
			WithSelector("#" + FormatID(id))
	}
	return el, nil
}

// Invalidate drops the cached attributes and intern entry for the element,
// typically after a KindElementDetached failure.
func (c *Cache) Invalidate(el Element) {
	id := hashRuntimeID(el.RuntimeID())
	c.mu.Lock()
	c.elements.Remove(id)
	c.attrs.Remove(id)
	c.mu.Unlock()
}

// Attributes answers the fast attribute set from cache when possible and
// from a live query otherwise. When detail is true the volatile properties
// are additionally fetched live; individual property failures are tolerated
// and simply leave the field unset, except that a detached element fails the
// whole call.
func (c *Cache) Attributes(el Element, detail bool) (Attributes, error) {
	id := c.ID(el)

	c.mu.Lock()
	fast, ok := c.attrs.Get(id)
	c.mu.Unlock()
	if !ok {
		role, err := el.Role()
		if err != nil {
			c.Invalidate(el)
			return Attributes{}, err
		}
		name, err := el.Name()
		if err != nil {
			c.Invalidate(el)
			return Attributes{}, err
		}
		nativeID, err := el.NativeID()
		if err != nil {
			c.Invalidate(el)
			return Attributes{}, err
		}
		fast = fastAttributes{role: role, name: name, nativeID: nativeID}
		c.mu.Lock()
		c.attrs.Add(id, fast)
		c.mu.Unlock()
	}

	out := Attributes{
		ObjectID: FormatID(id),
		Role:     fast.role,
		Name:     fast.name,
		NativeID: fast.nativeID,
	}
	if !detail {
		return out, nil
	}

	if err := c.fillDetail(el, &out); err != nil {
		c.Invalidate(el)
		return Attributes{}, err
	}
	return out, nil
}

func (c *Cache) fillDetail(el Element, out *Attributes) error {
	detached := func(err error) bool { return IsKind(err, KindElementDetached) }

	if b, err := el.Bounds(); err == nil {
		out.Bounds = &b
	} else if detached(err) {
		return err
	}
	if v, err := el.Enabled(); err == nil {
		out.Enabled = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Visible(); err == nil {
		out.Visible = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Focused(); err == nil {
		out.Focused = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.KeyboardFocusable(); err == nil {
		out.KeyboardFocusable = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Toggled(); err == nil {
		out.Toggled = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Selected(); err == nil {
		out.Selected = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Value(); err == nil {
		out.Value = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.Description(); err == nil {
		out.Description = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.ProcessID(); err == nil {
		out.ProcessID = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.WindowTitle(); err == nil {
		out.WindowTitle = &v
	} else if detached(err) {
		return err
	}
	if v, err := el.ApplicationName(); err == nil {
		out.ApplicationName = &v
	} else if detached(err) {
		return err
	}
	if children, err := el.Children(); err == nil {
		n := len(children)
		out.ChildrenCount = &n
	} else if detached(err) {
		return err
	}
	if v, err := el.IndexInParent(); err == nil {
		out.IndexInParent = &v
	} else if detached(err) {
		return err
	}
	return nil
}

func hashRuntimeID(runtimeID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runtimeID))
	return h.Sum64()
}
