package game

// MutationEvent is published after every mutation that produced deltas. Views and
// propositions are computed per seat so observers never need to read the duel.
type MutationEvent struct {
	DuelID       string
	Iteration    int
	Status       Status
	WhoseTurn    PlayerIndex
	Deltas       []Delta
	Views        [2]StateView
	Spectator    StateView
	Propositions [2]Propositions
}

// Observer receives mutation events. It is called with the duel locked and must
// not call back into the duel or block.
type Observer func(ev MutationEvent)

type observerEntry struct {
	id int
	fn Observer
}

// Subscribe registers an observer and returns a function removing it.
func (d *Duel) Subscribe(fn Observer) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribe(fn)
}

// Watch hands the snapshot of viewer to welcome and subscribes fn under the same
// lock, so fn receives exactly the mutations that follow the snapshot. Like an
// observer, welcome must not call back into the duel.
func (d *Duel) Watch(viewer PlayerIndex, welcome func(Snapshot), fn Observer) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	welcome(d.snapshot(viewer))
	return d.subscribe(fn)
}

func (d *Duel) subscribe(fn Observer) func() {
	d.observerSeq++
	id := d.observerSeq
	d.observers = append(d.observers, observerEntry{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Duel) publish(deltas []Delta) {
	if len(d.observers) == 0 {
		return
	}
	ev := MutationEvent{
		DuelID:    d.id,
		Iteration: d.iteration,
		Status:    d.status,
		WhoseTurn: d.whoseTurn,
		Deltas:    deltas,
		Spectator: d.view(Spectator),
	}
	for _, p := range []PlayerIndex{P1, P2} {
		ev.Views[p] = d.view(p)
		ev.Propositions[p] = d.propositions(p)
	}
	for _, o := range d.observers {
		o.fn(ev)
	}
}

// Snapshot is the welcome state of a connection.
type Snapshot struct {
	State        StateView
	Iteration    int
	Status       Status
	Propositions Propositions
	You          PlayerIndex
}

// Snapshot returns the state, iteration and propositions of viewer atomically.
func (d *Duel) Snapshot(viewer PlayerIndex) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot(viewer)
}

func (d *Duel) snapshot(viewer PlayerIndex) Snapshot {
	s := Snapshot{
		State:     d.view(viewer),
		Iteration: d.iteration,
		Status:    d.status,
		You:       viewer,
	}
	if viewer.Valid() {
		s.Propositions = d.propositions(viewer)
	} else {
		s.Propositions = Propositions{Card: []CardProposition{}, Unit: []UnitProposition{}}
	}
	return s
}
