package draft

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"movedocs/internal/store"
)

const (
	// DefaultMaxDrafts caps how many drafts survive count eviction.
	DefaultMaxDrafts = 5
	// DefaultRetention is the age eviction window.
	DefaultRetention = 30 * 24 * time.Hour

	// quotaRecoveryKeep is how many recent drafts survive the aggressive
	// eviction pass after the store reports capacity exhaustion.
	quotaRecoveryKeep = 3
)

// Manager owns every read and write of draft payloads and the metadata
// index. Payload and index are one logical resource: each mutation touches
// both in the same operation, so no orphaned payloads or dangling index rows
// survive a completed call.
type Manager struct {
	store     store.Store
	log       *zap.SugaredLogger
	sessionID string
	maxDrafts int
	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	activeKey string
	hasDraft  bool
	lastSaved time.Time
}

// NewManager wires a Manager over s. maxDrafts <= 0 and retention <= 0 fall
// back to the defaults.
func NewManager(s store.Store, log *zap.SugaredLogger, maxDrafts int, retention time.Duration) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxDrafts <= 0 {
		maxDrafts = DefaultMaxDrafts
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		store:     s,
		log:       log,
		sessionID: uuid.NewString(),
		maxDrafts: maxDrafts,
		retention: retention,
		now:       time.Now,
	}
}

func (m *Manager) SessionID() string { return m.sessionID }

// SetActiveKey records which form key the mounted form is editing under.
// Delete with an empty key and the hasDraft/lastSaved flags refer to it.
func (m *Manager) SetActiveKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeKey = key
}

func (m *Manager) ActiveKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeKey
}

func (m *Manager) HasDraft() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasDraft
}

func (m *Manager) LastSaved() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSaved
}

// Save writes a draft under key: payload plus insert-or-replace of its index
// row, index re-sorted by SavedAt descending, then eviction. A quota error
// triggers one aggressive recovery pass and a single retry before surfacing.
func (m *Manager) Save(key string, data json.RawMessage, title, clientName, clientPhone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		FormKey:     key,
		Data:        data,
		SavedAt:     m.now(),
		Title:       title,
		ClientName:  clientName,
		ClientPhone: clientPhone,
		SessionID:   m.sessionID,
	}

	err := m.putRecordLocked(rec)
	if errors.Is(err, store.ErrQuotaExceeded) {
		m.log.Warnw("draft store full, running recovery eviction", "key", key)
		m.recoverQuotaLocked()
		err = m.putRecordLocked(rec)
	}
	if err != nil {
		return err
	}

	m.evictLocked()
	m.hasDraft = true
	m.lastSaved = rec.SavedAt
	return nil
}

// Load returns the stored payload for key, or nil when absent. A record past
// the retention window is evicted on access and reported as absent. The
// hasDraft/lastSaved flags are untouched.
func (m *Manager) Load(key string) (json.RawMessage, error) {
	rec, err := m.readRecord(key)
	if err != nil || rec == nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.SavedAt.Before(m.now().Add(-m.retention)) {
		if err := m.store.Delete(payloadKey(key)); err != nil {
			return nil, err
		}
		if err := m.writeIndexLocked(removeEntry(m.readIndexLocked(), key)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return rec.Data, nil
}

// Exists reports whether a record is stored under key.
func (m *Manager) Exists(key string) bool {
	_, ok, err := m.store.Get(payloadKey(key))
	if err != nil {
		m.log.Warnw("draft existence check failed", "key", key, "err", err)
		return false
	}
	return ok
}

// Delete removes the record and index row for key. An empty key targets the
// active key; deleting the active key resets hasDraft and lastSaved.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key == "" {
		key = m.activeKey
	}
	if key == "" {
		return nil
	}

	if err := m.store.Delete(payloadKey(key)); err != nil {
		return err
	}
	entries := m.readIndexLocked()
	entries = removeEntry(entries, key)
	if err := m.writeIndexLocked(entries); err != nil {
		return err
	}

	if key == m.activeKey {
		m.hasDraft = false
		m.lastSaved = time.Time{}
	}
	return nil
}

// DeleteAllForBaseKey removes every record whose key starts with baseKey,
// identity-qualified variants included. Called after successful submission.
func (m *Manager) DeleteAllForBaseKey(baseKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.store.Keys(payloadKey(baseKey))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := m.store.Delete(k); err != nil {
			return err
		}
	}

	entries := m.readIndexLocked()
	kept := entries[:0]
	for _, e := range entries {
		if !strings.HasPrefix(e.FormKey, baseKey) {
			kept = append(kept, e)
		}
	}
	if err := m.writeIndexLocked(kept); err != nil {
		return err
	}

	if strings.HasPrefix(m.activeKey, baseKey) {
		m.hasDraft = false
		m.lastSaved = time.Time{}
	}
	return nil
}

// Deduplicate collapses records under baseKey that share a normalized
// (clientName, clientPhone) identity, keeping only the most recent of each
// group, then rewrites the index to match what storage actually holds.
func (m *Manager) Deduplicate(baseKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.store.Keys(payloadKey(baseKey))
	if err != nil {
		return err
	}

	groups := map[string][]Record{}
	for _, k := range keys {
		formKey := strings.TrimPrefix(k, payloadPrefix)
		rec, err := m.readRecord(formKey)
		if err != nil || rec == nil {
			// unreadable records self-heal out of existence
			m.log.Warnw("dropping unreadable draft", "key", formKey, "err", err)
			_ = m.store.Delete(k)
			continue
		}
		g := identityGroup(rec.ClientName, rec.ClientPhone)
		groups[g] = append(groups[g], *rec)
	}

	var survivors []Record
	for _, recs := range groups {
		sort.Slice(recs, func(i, j int) bool { return recs[i].SavedAt.After(recs[j].SavedAt) })
		survivors = append(survivors, recs[0])
		for _, loser := range recs[1:] {
			if err := m.store.Delete(payloadKey(loser.FormKey)); err != nil {
				return err
			}
		}
	}

	// Rebuild this base key's slice of the index from surviving records.
	entries := m.readIndexLocked()
	kept := entries[:0]
	for _, e := range entries {
		if !strings.HasPrefix(e.FormKey, baseKey) {
			kept = append(kept, e)
		}
	}
	for _, rec := range survivors {
		kept = append(kept, entryOf(rec))
	}
	return m.writeIndexLocked(kept)
}

// Move renames the record at from to to: destination payload and index row
// are written first, the source removed only after both succeed. A missing
// source is a no-op.
func (m *Manager) Move(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.readRecord(from)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	rec.FormKey = to
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := m.store.Set(payloadKey(to), string(b)); err != nil {
		return err
	}

	entries := m.readIndexLocked()
	entries = removeEntry(entries, from)
	entries = upsertEntry(entries, entryOf(*rec))
	if err := m.writeIndexLocked(entries); err != nil {
		return err
	}

	return m.store.Delete(payloadKey(from))
}

// List returns a copy of the metadata index, most recent first.
func (m *Manager) List() []MetaEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.readIndexLocked()
	out := make([]MetaEntry, len(entries))
	copy(out, entries)
	return out
}

func (m *Manager) readRecord(formKey string) (*Record, error) {
	raw, ok, err := m.store.Get(payloadKey(formKey))
	if err != nil || !ok {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// putRecordLocked writes the payload and upserts its index row.
func (m *Manager) putRecordLocked(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := m.store.Set(payloadKey(rec.FormKey), string(b)); err != nil {
		return err
	}
	entries := m.readIndexLocked()
	entries = upsertEntry(entries, entryOf(rec))
	return m.writeIndexLocked(entries)
}

// recoverQuotaLocked keeps only the most recent drafts and drops the rest,
// payloads and index rows together. Best effort: errors are logged, the
// caller's retry decides whether the write ultimately fails.
func (m *Manager) recoverQuotaLocked() {
	entries := m.readIndexLocked()
	sortBySavedAt(entries)

	if len(entries) > quotaRecoveryKeep {
		for _, e := range entries[quotaRecoveryKeep:] {
			if err := m.store.Delete(payloadKey(e.FormKey)); err != nil {
				m.log.Warnw("recovery delete failed", "key", e.FormKey, "err", err)
			}
		}
		entries = entries[:quotaRecoveryKeep]
	}
	if err := m.writeIndexLocked(entries); err != nil {
		m.log.Warnw("recovery index rewrite failed", "err", err)
	}
}

// evictLocked applies age eviction, then count eviction, after a save.
func (m *Manager) evictLocked() {
	entries := m.readIndexLocked()
	cutoff := m.now().Add(-m.retention)

	kept := entries[:0]
	evicted := 0
	for _, e := range entries {
		if e.SavedAt.Before(cutoff) {
			_ = m.store.Delete(payloadKey(e.FormKey))
			evicted++
			continue
		}
		kept = append(kept, e)
	}

	sortBySavedAt(kept)
	if len(kept) > m.maxDrafts {
		for _, e := range kept[m.maxDrafts:] {
			_ = m.store.Delete(payloadKey(e.FormKey))
			evicted++
		}
		kept = kept[:m.maxDrafts]
	}

	if evicted == 0 && len(kept) == len(entries) {
		return
	}
	if err := m.writeIndexLocked(kept); err != nil {
		m.log.Warnw("eviction index rewrite failed", "err", err)
	}
}

func (m *Manager) readIndexLocked() []MetaEntry {
	raw, ok, err := m.store.Get(indexKey)
	if err != nil {
		m.log.Warnw("draft index read failed", "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entries []MetaEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		m.log.Warnw("draft index corrupt, resetting", "err", err)
		return nil
	}
	return entries
}

// writeIndexLocked sorts by SavedAt descending and persists the index.
func (m *Manager) writeIndexLocked(entries []MetaEntry) error {
	sortBySavedAt(entries)
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return m.store.Set(indexKey, string(b))
}

func entryOf(rec Record) MetaEntry {
	return MetaEntry{
		FormKey:     rec.FormKey,
		SavedAt:     rec.SavedAt,
		Title:       rec.Title,
		ClientName:  rec.ClientName,
		ClientPhone: rec.ClientPhone,
		SessionID:   rec.SessionID,
	}
}

func sortBySavedAt(entries []MetaEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
}

func upsertEntry(entries []MetaEntry, e MetaEntry) []MetaEntry {
	entries = removeEntry(entries, e.FormKey)
	return append(entries, e)
}

func removeEntry(entries []MetaEntry, formKey string) []MetaEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.FormKey != formKey {
			out = append(out, e)
		}
	}
	return out
}
