package draft

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"movedocs/internal/store"
)

// Config carries everything one engine instance needs. One engine serves one
// mounted form; nothing is shared process-wide.
type Config struct {
	// BaseKey is the form-type key, fixed for the form's lifetime,
	// e.g. "quotation-create".
	BaseKey string

	// Local is the durable store. Nil selects an in-memory store, making
	// drafts session-only (the remote-only variant).
	Local store.Store

	// Remote is the authoritative remote store. Nil disables sync; the
	// status controller then stays offline.
	Remote RemoteStore

	DebounceInterval time.Duration
	IdentityInterval time.Duration
	MaxDrafts        int
	Retention        time.Duration

	Log *zap.SugaredLogger
}

// Engine keeps one form's in-progress state alive across reloads and
// identity changes: form changes flow through the debounced scheduler into
// the local manager and, when authenticated, the remote store, with the
// status controller reporting the result to the UI.
type Engine struct {
	baseKey string
	log     *zap.SugaredLogger

	mgr    *Manager
	res    *Resolver
	sched  *Scheduler
	status *StatusController
	remote RemoteStore

	// ownedLocal is set when the engine opened the store itself (Open)
	// and is responsible for closing it.
	ownedLocal store.Store

	mu       sync.Mutex
	authed   bool
	lastSnap *Snapshot
}

// NewEngine builds an engine for one form. The caller owns teardown via
// Close.
func NewEngine(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	local := cfg.Local
	if local == nil {
		local = store.NewMemory(0)
	}

	e := &Engine{
		baseKey: cfg.BaseKey,
		log:     log,
		remote:  cfg.Remote,
		status:  NewStatusController(),
	}
	e.mgr = NewManager(local, log, cfg.MaxDrafts, cfg.Retention)
	e.mgr.SetActiveKey(cfg.BaseKey)

	e.res = NewResolver(cfg.BaseKey, cfg.IdentityInterval, e.mgr, log)
	e.res.OnSwitch(func(from, to string, adopted bool) {
		e.mgr.SetActiveKey(to)
	})

	e.sched = NewScheduler(cfg.DebounceInterval, e.commit)
	return e
}

// NoteChange feeds the latest form state. data must be JSON-serializable; a
// non-serializable payload is logged and the write abandoned. The actual
// persistence happens after the debounce quiet period.
func (e *Engine) NoteChange(data any, title, clientName, clientPhone string) {
	raw, err := json.Marshal(data)
	if err != nil {
		e.log.Errorw("draft payload not serializable, write abandoned", "key", e.baseKey, "err", err)
		return
	}

	snap := Snapshot{
		Data:        raw,
		Title:       title,
		ClientName:  clientName,
		ClientPhone: clientPhone,
	}

	e.mu.Lock()
	e.lastSnap = &snap
	e.mu.Unlock()

	e.res.Observe(clientName, clientPhone)
	e.sched.Schedule(snap)
}

// commit is the scheduler's debounced write: local save first, then a full
// remote snapshot when authenticated.
func (e *Engine) commit(snap Snapshot) {
	key := e.res.CurrentKey()
	err := e.mgr.Save(key, snap.Data, snap.Title, snap.ClientName, snap.ClientPhone)
	if err != nil {
		e.log.Errorw("draft save failed", "key", key, "err", err)
	}

	if e.remote == nil {
		return
	}
	if !e.authenticated() {
		e.log.Warnw("skipping remote draft write, not authenticated", "form", e.baseKey)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	e.status.Begin()
	if err := e.remote.Put(ctx, e.baseKey, snap.Data); err != nil {
		e.status.Fail(err.Error())
		return
	}
	e.status.Succeed()
}

// LoadDraft returns the draft to pre-populate the form with, preferring the
// remote copy when authenticated and falling back to the newest local record
// for this form. Adopting a local identity-qualified key happens immediately,
// with no debounce. A nil payload with nil error means no draft exists.
func (e *Engine) LoadDraft(ctx context.Context) (json.RawMessage, error) {
	if e.remote != nil && e.authenticated() {
		e.status.Begin()
		snap, err := e.remote.Get(ctx, e.baseKey)
		if err != nil {
			e.status.Fail(err.Error())
			e.log.Warnw("remote draft load failed, falling back to local", "form", e.baseKey, "err", err)
		} else {
			e.status.Succeed()
			if snap != nil {
				return snap.Data, nil
			}
		}
	}

	for _, entry := range e.mgr.List() {
		if entry.FormKey != e.baseKey && !strings.HasPrefix(entry.FormKey, e.baseKey+"-") {
			continue
		}
		e.res.Adopt(entry.FormKey)
		data, err := e.mgr.Load(entry.FormKey)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if data != nil {
			e.lastSnap = &Snapshot{
				Data:        data,
				Title:       entry.Title,
				ClientName:  entry.ClientName,
				ClientPhone: entry.ClientPhone,
			}
		}
		e.mu.Unlock()
		return data, nil
	}
	return nil, nil
}

// ClearDraft removes every local record for this form and, when
// authenticated, the remote copy. Any pending debounced write is cancelled
// first so it cannot resurrect the draft.
func (e *Engine) ClearDraft(ctx context.Context) error {
	e.sched.Cancel()
	e.res.Cancel()

	if err := e.mgr.DeleteAllForBaseKey(e.baseKey); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastSnap = nil
	e.mu.Unlock()

	if e.remote == nil || !e.authenticated() {
		return nil
	}

	e.status.Begin()
	if err := e.remote.Delete(ctx, e.baseKey); err != nil {
		e.status.Fail(err.Error())
		return err
	}
	e.status.Succeed()
	return nil
}

// SyncDraft is the manual retry: push the last known snapshot remotely.
func (e *Engine) SyncDraft(ctx context.Context) error {
	if e.remote == nil {
		return nil
	}
	if !e.authenticated() {
		e.log.Warnw("manual sync requested while unauthenticated", "form", e.baseKey)
		return nil
	}

	e.mu.Lock()
	snap := e.lastSnap
	e.mu.Unlock()
	if snap == nil {
		// nothing observed this session; fall back to the stored draft
		data, err := e.mgr.Load(e.res.CurrentKey())
		if err != nil || data == nil {
			return err
		}
		snap = &Snapshot{Data: data}
	}

	e.status.Begin()
	if err := e.remote.Put(ctx, e.baseKey, snap.Data); err != nil {
		e.status.Fail(err.Error())
		return err
	}
	e.status.Succeed()
	return nil
}

// SetAuthenticated feeds the external authentication signal. Turning it on
// runs the initial remote existence check; turning it off forces offline and
// suppresses remote writes until it returns.
func (e *Engine) SetAuthenticated(ctx context.Context, authed bool) {
	e.mu.Lock()
	e.authed = authed
	e.mu.Unlock()

	if e.remote == nil {
		return
	}
	if !authed {
		e.status.Offline()
		return
	}

	e.status.Resume()
	if _, err := e.remote.Exists(ctx, e.baseKey); err != nil {
		e.status.Fail(err.Error())
		return
	}
	e.status.Succeed()
}

// Deduplicate collapses same-identity drafts for this form.
func (e *Engine) Deduplicate() error {
	return e.mgr.Deduplicate(e.baseKey)
}

func (e *Engine) authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authed
}

func (e *Engine) Status() Status        { return e.status.Status() }
func (e *Engine) StatusMessage() string { return e.status.Message() }
func (e *Engine) Saving() bool          { return e.sched.Saving() }
func (e *Engine) HasDraft() bool        { return e.mgr.HasDraft() }
func (e *Engine) LastSaved() time.Time  { return e.mgr.LastSaved() }
func (e *Engine) CurrentKey() string    { return e.res.CurrentKey() }
func (e *Engine) Drafts() []MetaEntry   { return e.mgr.List() }

// OnStatusChange registers a UI observer for sync status transitions.
func (e *Engine) OnStatusChange(fn func(Status, string)) {
	e.status.OnChange(fn)
}

// Close cancels pending timers. Must run on form teardown or a stale write
// can land against an unmounted form.
func (e *Engine) Close() {
	e.sched.Cancel()
	e.res.Cancel()
	if e.ownedLocal != nil {
		if err := e.ownedLocal.Close(); err != nil {
			e.log.Warnw("draft store close failed", "err", err)
		}
	}
}
