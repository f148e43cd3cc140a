package rules

import (
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// Handle identifies a registered listener. The zero Handle is never issued.
type Handle int

// AttributeChange describes one committed attribute change.
type AttributeChange struct {
	EntityID  int
	Attribute attrs.ID
	Previous  int
	Current   int
}

// FragmentListener is called when a fragment of type F commits.
type FragmentListener[F any] func(frag F)

// AttributeListener is called when an attribute changes while frag is committing.
type AttributeListener[F any] func(frag F, change AttributeChange)

type fragmentEntry[F any] struct {
	handle Handle
	fn     FragmentListener[F]
}

type attributeEntry[F any] struct {
	handle Handle
	fn     AttributeListener[F]
}

// Registry dispatches fragment commits and attribute changes to listeners in
// registration order. It is owned by a single duel and is not safe for concurrent use.
type Registry[F any] struct {
	nextHandle Handle
	fragments  []fragmentEntry[F]
	attributes map[attrs.ID][]attributeEntry[F]
	live       map[Handle]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{
		nextHandle: 1,
		attributes: make(map[attrs.ID][]attributeEntry[F]),
		live:       make(map[Handle]struct{}),
	}
}

func (r *Registry[F]) issue() Handle {
	h := r.nextHandle
	r.nextHandle++
	r.live[h] = struct{}{}
	return h
}

// OnFragment registers a listener for every fragment commit.
func (r *Registry[F]) OnFragment(fn FragmentListener[F]) Handle {
	if fn == nil {
		return 0
	}
	h := r.issue()
	r.fragments = append(r.fragments, fragmentEntry[F]{handle: h, fn: fn})
	return h
}

// OnAttribute registers a listener for changes of one attribute on any entity.
func (r *Registry[F]) OnAttribute(id attrs.ID, fn AttributeListener[F]) Handle {
	if fn == nil {
		return 0
	}
	h := r.issue()
	r.attributes[id] = append(r.attributes[id], attributeEntry[F]{handle: h, fn: fn})
	return h
}

// Revoke removes a listener. Revoking an unknown or already revoked handle is a no-op.
func (r *Registry[F]) Revoke(h Handle) {
	if _, ok := r.live[h]; !ok {
		return
	}
	delete(r.live, h)
	for i, e := range r.fragments {
		if e.handle == h {
			r.fragments = append(r.fragments[:i:i], r.fragments[i+1:]...)
			return
		}
	}
	for id, entries := range r.attributes {
		for i, e := range entries {
			if e.handle == h {
				r.attributes[id] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Active reports whether the handle is still registered.
func (r *Registry[F]) Active(h Handle) bool {
	_, ok := r.live[h]
	return ok
}

// Len returns the number of registered listeners.
func (r *Registry[F]) Len() int {
	return len(r.live)
}

// NotifyFragment invokes fragment listeners registered before the call.
// Listeners revoked during dispatch are skipped.
func (r *Registry[F]) NotifyFragment(frag F) {
	snapshot := r.fragments
	for _, e := range snapshot {
		if !r.Active(e.handle) {
			continue
		}
		e.fn(frag)
	}
}

// NotifyAttribute invokes the listeners of change.Attribute registered before the call.
func (r *Registry[F]) NotifyAttribute(frag F, change AttributeChange) {
	snapshot := r.attributes[change.Attribute]
	for _, e := range snapshot {
		if !r.Active(e.handle) {
			continue
		}
		e.fn(frag, change)
	}
}
