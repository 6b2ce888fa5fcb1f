// Package trigger decides when the next page of a collection should be
// requested.
//
// Views register an Observer and report a proximity level ("the end of the
// list is visible") through Observe. The policy fires when any live observer
// is active, the collection has more pages and no fetch is outstanding. It is
// level-triggered: after every load completion or reset the owner calls
// Reevaluate, and an observer that is still active fires again. The loading
// flag is the only de-duplication mechanism.
package trigger

import (
	"sync"

	"github.com/rs/zerolog"
)

// Gate exposes the collection flags the policy depends on.
type Gate interface {
	HasMore() bool
	IsLoading() bool
}

// Policy turns proximity observations into load requests.
type Policy struct {
	mu        sync.Mutex
	gate      Gate
	fire      func()
	observers map[uint64]*Observer
	nextID    uint64
	closed    bool
	logger    zerolog.Logger
}

// NewPolicy creates a policy that calls fire whenever a load should start.
// fire must not block; it is invoked without the policy lock held.
func NewPolicy(gate Gate, fire func(), logger zerolog.Logger) *Policy {
	if gate == nil || fire == nil {
		panic("trigger: gate and fire are required")
	}
	return &Policy{
		gate:      gate,
		fire:      fire,
		observers: make(map[uint64]*Observer),
		logger:    logger,
	}
}

// ShouldLoad reports whether an observation at the given level should
// request the next page.
func (p *Policy) ShouldLoad(active bool) bool {
	return active && p.gate.HasMore() && !p.gate.IsLoading()
}

// Register attaches a new observer. A closed policy hands out observers
// that never fire.
func (p *Policy) Register() *Observer {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	o := &Observer{id: p.nextID, policy: p}
	if p.closed {
		o.closed = true
		return o
	}
	p.observers[o.id] = o
	return o
}

// Reevaluate re-checks every live observer after a state change and fires
// at most once. It returns whether a load was requested.
func (p *Policy) Reevaluate() bool {
	p.mu.Lock()
	active := false
	if !p.closed {
		for _, o := range p.observers {
			if o.active {
				active = true
				break
			}
		}
	}
	fire := active && p.ShouldLoad(true)
	p.mu.Unlock()

	if fire {
		p.logger.Debug().Msg("Proximity still active, requesting next page")
		p.fire()
	}
	return fire
}

// Observers returns the number of live observers.
func (p *Policy) Observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

// Close detaches all observers; none of them fires afterwards.
func (p *Policy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for id, o := range p.observers {
		o.closed = true
		delete(p.observers, id)
	}
}

func (p *Policy) observe(o *Observer, active bool) bool {
	p.mu.Lock()
	if o.closed || p.closed {
		p.mu.Unlock()
		return false
	}
	o.active = active
	fire := p.ShouldLoad(active)
	p.mu.Unlock()

	if fire {
		p.logger.Debug().Uint64("observer", o.id).Msg("Proximity signal, requesting next page")
		p.fire()
	}
	return fire
}

func (p *Policy) detach(o *Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o.closed = true
	o.active = false
	delete(p.observers, o.id)
}

// Observer is one view's proximity signal.
type Observer struct {
	id     uint64
	policy *Policy

	// guarded by policy.mu
	active bool
	closed bool
}

// ID returns the observer id, unique within its policy.
func (o *Observer) ID() uint64 {
	return o.id
}

// Observe records the current proximity level and returns whether a load
// was requested.
func (o *Observer) Observe(active bool) bool {
	return o.policy.observe(o, active)
}

// Active reports the last observed level.
func (o *Observer) Active() bool {
	o.policy.mu.Lock()
	defer o.policy.mu.Unlock()
	return o.active && !o.closed
}

// Close detaches the observer, for example when its view is torn down.
func (o *Observer) Close() {
	o.policy.detach(o)
}
