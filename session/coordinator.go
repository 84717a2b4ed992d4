package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
	"github.com/ifsi-tools/dossier-api/logging"
	"github.com/ifsi-tools/dossier-api/metrics"
)

// State is the coordinator lifecycle state. Ready re-enters Loading on
// every slot switch.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

// DefaultDebounce is the delay between the last local edit and the save it
// triggers.
const DefaultDebounce = 500 * time.Millisecond

// Notifier surfaces non-blocking user notifications (toast-level). The
// level is "info", "warn" or "error".
type Notifier func(level, msg string)

// Coordinator owns one editing session: the active slot identity, the
// debounce machinery coalescing local edits into saves, and the
// application of remote updates from other sessions on the same slot.
//
// Concurrency policy is last-writer-wins over the full record; there is no
// field-level merge. Two sessions saving inside the same debounce window
// will have one silently overwrite the other, which is the documented
// behavior of the slot channel, not a defect of this layer.
type Coordinator struct {
	mu sync.Mutex

	store interfaces.RecordStore
	hub   *Hub
	form  *dossier.Form
	perms Permissions

	sessionID string
	state     State
	slotID    string
	label     string

	dirty          bool
	applyingRemote bool
	debounce       time.Duration
	timer          *time.Timer

	sub    *Subscription
	notify Notifier
}

// Option customizes a coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithNotifier installs the user notification callback.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notify = n }
}

// NewCoordinator builds a coordinator for one user session. The form is
// the UI-owned snapshot the codec reads from and writes into.
func NewCoordinator(store interfaces.RecordStore, hub *Hub, form *dossier.Form, perms Permissions, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		hub:       hub,
		form:      form,
		perms:     perms,
		sessionID: uuid.NewString(),
		state:     StateIdle,
		debounce:  DefaultDebounce,
		notify:    func(string, string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the identity attached to this session's publishes.
func (c *Coordinator) SessionID() string { return c.sessionID }

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SlotID returns the active slot, or "" before the first load.
func (c *Coordinator) SlotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotID
}

// Label returns the visible slot label.
func (c *Coordinator) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// Dirty reports whether local edits are awaiting a save.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// SwitchActiveSlot flushes the old slot if it is dirty, moves the
// subscription, fetches the new slot's record and applies it. The save of
// the old slot is always issued before the new slot is fetched. On the
// initial load there is no old slot and nothing to flush.
func (c *Coordinator) SwitchActiveSlot(newID string) error {
	if !c.perms.CanUseRoom(newID) {
		// Policy gate: silently refuse, the caller keeps the current slot.
		logging.Debug("Slot switch refused by permissions", "slot_id", newID)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Save old, then load new, strictly in that order.
	if c.state == StateReady && c.dirty {
		if err := c.saveLocked(); err != nil {
			// The record stays dirty in memory; switching away anyway would
			// lose it, so the switch is abandoned.
			c.notify("error", "Sauvegarde du dossier précédent impossible")
			return fmt.Errorf("session: flush before switch: %w", err)
		}
	}
	c.stopTimerLocked()

	if c.sub != nil {
		c.hub.Unsubscribe(c.sub)
		c.sub = nil
	}

	c.state = StateLoading
	record, err := c.store.FetchRecord(newID)
	if err != nil {
		c.state = StateIdle
		c.notify("error", "Chargement du dossier impossible")
		return fmt.Errorf("session: fetch %s: %w", newID, err)
	}
	metrics.LoadsTotal.Inc()

	c.sub = c.hub.Subscribe(newID, c.sessionID)
	if c.sub != nil {
		go c.consume(c.sub)
	}

	c.applyingRemote = true
	dossier.Apply(record, c.form)
	c.applyingRemote = false

	c.slotID = newID
	c.label = slotLabel(newID, record)
	c.dirty = false
	c.state = StateReady

	return nil
}

// OnLocalEdit marks the session dirty and arms the debounce timer. Edits
// arriving while a remote update is being applied are programmatic writes,
// not user input, and are ignored. Edits on a section the permission set
// forbids are silent no-ops.
func (c *Coordinator) OnLocalEdit(section string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.applyingRemote || c.state != StateReady {
		return
	}
	if !c.perms.CanEditSection(section) {
		return
	}

	c.dirty = true
	if c.timer != nil {
		// Coalesce: later edits extend the window.
		c.timer.Reset(c.debounce)
		metrics.DebounceCoalescedTotal.Inc()
		return
	}
	c.timer = time.AfterFunc(c.debounce, c.debounceFired)
}

// Flush saves immediately when dirty, bypassing the debounce window.
func (c *Coordinator) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	if !c.dirty || c.state != StateReady {
		return nil
	}
	return c.saveLocked()
}

// ImportDocument validates and applies an external JSON document to the
// active record. A malformed document is rejected before anything is
// touched.
func (c *Coordinator) ImportDocument(data []byte) error {
	record, err := dossier.DecodeRecord(data, c.entryDate())
	if err != nil {
		c.notify("error", "Document importé invalide")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || !c.perms.CanEditAny() {
		return nil
	}
	dossier.Apply(record, c.form)
	c.dirty = true
	if c.timer == nil {
		c.timer = time.AfterFunc(c.debounce, c.debounceFired)
	} else {
		c.timer.Reset(c.debounce)
	}
	return nil
}

// ExportDocument renders the current screen state as a standalone JSON
// document.
func (c *Coordinator) ExportDocument() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dossier.EncodeRecord(dossier.Collect(c.form))
}

// Close flushes pending edits and releases the subscription.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	var err error
	if c.dirty && c.state == StateReady {
		err = c.saveLocked()
	}
	if c.sub != nil {
		c.hub.Unsubscribe(c.sub)
		c.sub = nil
	}
	c.state = StateIdle
	return err
}

// debounceFired runs on the timer goroutine when the window elapses.
func (c *Coordinator) debounceFired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer = nil
	if c.applyingRemote || !c.dirty || c.state != StateReady {
		return
	}
	if err := c.saveLocked(); err != nil {
		// The record stays dirty; the next edit re-arms the save.
		c.notify("error", "Sauvegarde automatique impossible")
		logging.Error("Debounced save failed", "slot_id", c.slotID, "error", err)
	}
}

// saveLocked collects the form and persists it. Caller holds mu.
func (c *Coordinator) saveLocked() error {
	record := dossier.Collect(c.form)
	name := record.SidebarPatientName
	if err := c.store.SaveRecord(c.slotID, record, name); err != nil {
		return err
	}
	metrics.SavesTotal.WithLabelValues("slot").Inc()
	c.dirty = false
	c.label = slotLabel(c.slotID, record)
	c.hub.Publish(Update{
		SlotID:      c.slotID,
		SessionID:   c.sessionID,
		DisplayName: name,
		Record:      record,
	})
	return nil
}

// consume applies remote updates arriving on the slot channel. Another
// session's save lands here; this session's own publishes are filtered out
// by the hub.
func (c *Coordinator) consume(sub *Subscription) {
	for u := range sub.C {
		c.applyRemote(u)
	}
}

func (c *Coordinator) applyRemote(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady || u.SlotID != c.slotID {
		return
	}

	// Reentrancy guard: programmatic form writes during the apply must not
	// be misread as user edits and re-broadcast as an echo.
	c.applyingRemote = true
	dossier.Apply(u.Record, c.form)
	c.applyingRemote = false

	// Last writer wins over the full record: pending local edits inside
	// the debounce window are superseded by the incoming state.
	c.stopTimerLocked()
	c.dirty = false
	c.label = slotLabel(u.SlotID, u.Record)
}

func (c *Coordinator) entryDate() (t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.EntryDate()
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func slotLabel(slotID string, r *dossier.Record) string {
	if r != nil && r.SidebarPatientName != "" {
		return r.SidebarPatientName
	}
	return slotID
}
