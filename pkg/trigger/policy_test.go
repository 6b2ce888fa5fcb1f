package trigger

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeGate struct {
	mu      sync.Mutex
	hasMore bool
	loading bool
}

func (g *fakeGate) HasMore() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasMore
}

func (g *fakeGate) IsLoading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

func (g *fakeGate) set(hasMore, loading bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasMore = hasMore
	g.loading = loading
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) fire() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newPolicy(hasMore, loading bool) (*Policy, *fakeGate, *counter) {
	gate := &fakeGate{hasMore: hasMore, loading: loading}
	c := &counter{}
	return NewPolicy(gate, c.fire, zerolog.Nop()), gate, c
}

func TestShouldLoad(t *testing.T) {
	tests := []struct {
		name    string
		active  bool
		hasMore bool
		loading bool
		want    bool
	}{
		{name: "all conditions hold", active: true, hasMore: true, loading: false, want: true},
		{name: "not in proximity", active: false, hasMore: true, loading: false, want: false},
		{name: "end of collection", active: true, hasMore: false, loading: false, want: false},
		{name: "fetch outstanding", active: true, hasMore: true, loading: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newPolicy(tt.hasMore, tt.loading)
			if got := p.ShouldLoad(tt.active); got != tt.want {
				t.Errorf("ShouldLoad(%v) = %v, want %v", tt.active, got, tt.want)
			}
		})
	}
}

func TestObserve_Fires(t *testing.T) {
	p, _, c := newPolicy(true, false)
	o := p.Register()

	if !o.Observe(true) {
		t.Error("Observe(true) should fire")
	}
	if o.Observe(false) {
		t.Error("Observe(false) should not fire")
	}
	if c.count() != 1 {
		t.Errorf("fired %d times, want 1", c.count())
	}
}

func TestObserve_IgnoredWhileLoading(t *testing.T) {
	p, _, c := newPolicy(true, true)
	o := p.Register()

	for i := 0; i < 10; i++ {
		o.Observe(true)
	}
	if c.count() != 0 {
		t.Errorf("fired %d times while loading, want 0", c.count())
	}
}

func TestObserve_TerminalAtEnd(t *testing.T) {
	p, _, c := newPolicy(false, false)
	o := p.Register()

	for i := 0; i < 10; i++ {
		o.Observe(true)
	}
	if p.Reevaluate() {
		t.Error("Reevaluate should not fire at end of collection")
	}
	if c.count() != 0 {
		t.Errorf("fired %d times at end of collection, want 0", c.count())
	}
}

func TestReevaluate_LevelTriggered(t *testing.T) {
	p, gate, c := newPolicy(true, true)
	o := p.Register()

	// Observed while a fetch is outstanding: nothing fires yet.
	o.Observe(true)
	if c.count() != 0 {
		t.Fatalf("fired %d times, want 0", c.count())
	}

	// The fetch completes; the sentinel is still visible.
	gate.set(true, false)
	if !p.Reevaluate() {
		t.Error("Reevaluate should fire for a still-active observer")
	}

	// A reset re-arms detection the same way.
	gate.set(true, false)
	if !p.Reevaluate() {
		t.Error("Reevaluate after reset should fire again")
	}
	if c.count() != 2 {
		t.Errorf("fired %d times, want 2", c.count())
	}
}

func TestReevaluate_FiresOnceForManyObservers(t *testing.T) {
	p, _, c := newPolicy(true, true)
	for i := 0; i < 3; i++ {
		p.Register().Observe(true)
	}

	p.gate.(*fakeGate).set(true, false)
	p.Reevaluate()
	if c.count() != 1 {
		t.Errorf("fired %d times, want 1", c.count())
	}
}

func TestReevaluate_InactiveObservers(t *testing.T) {
	p, _, c := newPolicy(true, false)
	p.Register()

	if p.Reevaluate() {
		t.Error("Reevaluate should not fire without an active observer")
	}
	if c.count() != 0 {
		t.Errorf("fired %d times, want 0", c.count())
	}
}

func TestObserver_CloseStopsFiring(t *testing.T) {
	p, _, c := newPolicy(true, false)
	o := p.Register()
	o.Observe(true)
	o.Close()

	if o.Observe(true) {
		t.Error("closed observer fired")
	}
	if p.Reevaluate() {
		t.Error("Reevaluate fired for a closed observer")
	}
	if o.Active() {
		t.Error("closed observer reports active")
	}
	if p.Observers() != 0 {
		t.Errorf("Observers = %d, want 0", p.Observers())
	}
	if c.count() != 1 {
		t.Errorf("fired %d times, want 1", c.count())
	}
}

func TestPolicy_Close(t *testing.T) {
	p, _, c := newPolicy(true, false)
	o := p.Register()
	p.Close()

	if o.Observe(true) {
		t.Error("observer of a closed policy fired")
	}
	late := p.Register()
	if late.Observe(true) {
		t.Error("observer registered after Close fired")
	}
	if p.Reevaluate() {
		t.Error("closed policy fired on Reevaluate")
	}
	if c.count() != 0 {
		t.Errorf("fired %d times, want 0", c.count())
	}
}

func TestRegister_UniqueIDs(t *testing.T) {
	p, _, _ := newPolicy(true, false)
	a, b := p.Register(), p.Register()
	if a.ID() == b.ID() {
		t.Errorf("observer ids collide: %d", a.ID())
	}
}
