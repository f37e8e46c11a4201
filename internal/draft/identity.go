package draft

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdentityInterval is the quiet period before an identity-driven key
// migration is attempted.
const DefaultIdentityInterval = 1500 * time.Millisecond

// ResolveState is the resolver's migration state.
type ResolveState int

const (
	// StateResolving: still on the base key, watching identity fields.
	StateResolving ResolveState = iota
	// StateMigrating: a move or switch is in progress.
	StateMigrating
	// StateResolved: an identity-qualified key is in use; no further
	// automatic migration happens for this form's lifetime.
	StateResolved
)

// Resolver decides, as the user types, whether the form's storage key should
// move from the generic base key to an identity-qualified one, and performs
// that migration through the Manager. Decisions are debounced so a key never
// migrates on every keystroke, and migration only ever fires while the
// current key still equals the base key, so a resolved key never oscillates.
type Resolver struct {
	baseKey  string
	interval time.Duration
	mgr      *Manager
	log      *zap.SugaredLogger

	// onSwitch, when set, observes every key change. adopted is true when
	// an existing record at the target key took precedence over a move.
	onSwitch func(from, to string, adopted bool)

	mu         sync.Mutex
	state      ResolveState
	currentKey string
	timer      *time.Timer
}

// NewResolver starts a resolver on baseKey. interval <= 0 falls back to
// DefaultIdentityInterval.
func NewResolver(baseKey string, interval time.Duration, mgr *Manager, log *zap.SugaredLogger) *Resolver {
	if interval <= 0 {
		interval = DefaultIdentityInterval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		baseKey:    baseKey,
		interval:   interval,
		mgr:        mgr,
		log:        log,
		state:      StateResolving,
		currentKey: baseKey,
	}
}

// OnSwitch registers a key-change observer. Must be set before typing starts.
func (r *Resolver) OnSwitch(fn func(from, to string, adopted bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwitch = fn
}

func (r *Resolver) CurrentKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentKey
}

func (r *Resolver) State() ResolveState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Observe feeds the latest identity fields. It restarts the quiet-period
// timer; the migration decision runs only once typing pauses.
func (r *Resolver) Observe(clientName, clientPhone string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateResolved || r.currentKey != r.baseKey {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.interval, func() {
		r.resolve(clientName, clientPhone)
	})
}

// Adopt switches to key immediately, bypassing debounce and migration. Used
// when loading a previously saved draft whose key is already known.
func (r *Resolver) Adopt(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key == r.currentKey {
		return
	}
	from := r.currentKey
	r.currentKey = key
	if key == r.baseKey {
		r.state = StateResolving
	} else {
		r.state = StateResolved
	}
	if r.onSwitch != nil {
		r.onSwitch(from, key, true)
	}
}

// Cancel stops any pending migration decision. Called on form teardown.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// resolve runs after the quiet period. Migration is best effort: a failed
// store write leaves the current key unchanged and the source record intact.
func (r *Resolver) resolve(clientName, clientPhone string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateResolving || r.currentKey != r.baseKey {
		return
	}
	if !hasIdentity(clientName, clientPhone) {
		return
	}

	target := IdentityKey(r.baseKey, clientName, clientPhone)
	if target == r.currentKey {
		return
	}

	r.state = StateMigrating
	from := r.currentKey

	if r.mgr.Exists(target) {
		// An existing draft for this identity takes precedence; switch
		// without copying. The caller may load it afterwards.
		r.currentKey = target
		r.state = StateResolved
		r.log.Infow("adopted existing draft key", "from", from, "to", target)
		if r.onSwitch != nil {
			r.onSwitch(from, target, true)
		}
		return
	}

	if err := r.mgr.Move(from, target); err != nil {
		// Leave the active key alone rather than risk losing the draft.
		r.log.Warnw("draft key migration failed", "from", from, "to", target, "err", err)
		r.state = StateResolving
		return
	}

	r.currentKey = target
	r.state = StateResolved
	r.log.Infow("migrated draft key", "from", from, "to", target)
	if r.onSwitch != nil {
		r.onSwitch(from, target, false)
	}
}
