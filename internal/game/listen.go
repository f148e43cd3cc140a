package game

import (
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/cardlab/duel-server-go/internal/game/rules"
)

// ListenFragment registers fn for committed fragments whose op has type T.
func ListenFragment[T Op](d *Duel, fn func(f *Frag, op T)) rules.Handle {
	return d.listeners.OnFragment(func(f *Frag) {
		if op, ok := f.Op.(T); ok {
			fn(f, op)
		}
	})
}

// ListenAttribute registers fn for changes of one attribute on any entity.
func ListenAttribute(d *Duel, id attrs.ID, fn func(f *Frag, change rules.AttributeChange)) rules.Handle {
	return d.listeners.OnAttribute(id, fn)
}
