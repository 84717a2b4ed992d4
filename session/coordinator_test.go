package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
)

// fakeStore is an in-memory RecordStore recording every save.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*dossier.Record
	saves    int
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*dossier.Record)}
}

func (s *fakeStore) FetchRecord(slotID string) (*dossier.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[slotID]; ok {
		return r, nil
	}
	return dossier.NewRecord(), nil
}

func (s *fakeStore) SaveRecord(slotID string, r *dossier.Record, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	s.records[slotID] = r
	s.saves++
	return nil
}

func (s *fakeStore) SaveArchive(r *dossier.Record, displayName string) (string, error) {
	return "save_fake", nil
}

func (s *fakeStore) DeleteArchive(archiveID string) error { return nil }

func (s *fakeStore) ListSlots() ([]interfaces.SlotInfo, error) { return nil, nil }

func (s *fakeStore) LastSaved(slotID string) time.Time { return time.Time{} }

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeStore) record(slotID string) *dossier.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[slotID]
}

func (s *fakeStore) setFailSave(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = fail
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSwitchActiveSlotLoadsRecord(t *testing.T) {
	store := newFakeStore()
	stored := dossier.NewRecord()
	stored.Fields["nom"] = "Martin"
	stored.SidebarPatientName = "Hélène Martin"
	store.records["chambre_1"] = stored

	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions())
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if c.State() != StateReady {
		t.Errorf("Expected ready state, got %v", c.State())
	}
	if c.SlotID() != "chambre_1" {
		t.Errorf("Expected chambre_1 active, got %s", c.SlotID())
	}
	if c.Label() != "Hélène Martin" {
		t.Errorf("Expected the patient name as label, got %q", c.Label())
	}
	if form.Fields["nom"] != "Martin" {
		t.Errorf("Expected the record applied to the form, got %q", form.Fields["nom"])
	}
	if c.Dirty() {
		t.Error("Expected a freshly loaded slot not dirty")
	}
}

func TestSwitchToEmptySlotResetsForm(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	form.Fields["nom"] = "leftover"

	c := NewCoordinator(store, NewHub(), form, TrainerPermissions())
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_5"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(form.Fields) != 0 {
		t.Error("Expected the form cleared for a never-saved slot")
	}
	if c.Label() != "chambre_5" {
		t.Errorf("Expected the slot id as label, got %q", c.Label())
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(50*time.Millisecond))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A burst of edits inside one debounce window saves exactly once.
	for i := 0; i < 5; i++ {
		form.Fields["motif"] = "Pneumopathie"
		c.OnLocalEdit(SectionHeader)
		time.Sleep(5 * time.Millisecond)
	}
	if !c.Dirty() {
		t.Fatal("Expected the session dirty after edits")
	}

	waitFor(t, func() bool { return store.saveCount() == 1 }, "Expected exactly one save")
	time.Sleep(100 * time.Millisecond)
	if got := store.saveCount(); got != 1 {
		t.Errorf("Expected the burst coalesced into 1 save, got %d", got)
	}
	if c.Dirty() {
		t.Error("Expected the session clean after the save")
	}
	if store.record("chambre_1").Fields["motif"] != "Pneumopathie" {
		t.Error("Expected the edit persisted")
	}
}

func TestEditIgnoredBeforeFirstLoad(t *testing.T) {
	c := NewCoordinator(newFakeStore(), NewHub(), dossier.NewForm(), TrainerPermissions())
	defer c.Close()

	c.OnLocalEdit(SectionHeader)
	if c.Dirty() {
		t.Error("Expected edits before the first load ignored")
	}
}

func TestEditIgnoredWithoutSectionPermission(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, NewHub(), dossier.NewForm(),
		Permissions{Observations: true})
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	c.OnLocalEdit(SectionHeader)
	if c.Dirty() {
		t.Error("Expected a forbidden section edit to be a silent no-op")
	}

	c.OnLocalEdit(SectionObservations)
	if !c.Dirty() {
		t.Error("Expected an allowed section edit to mark the session dirty")
	}
}

func TestSwitchRefusedByRoomPermission(t *testing.T) {
	store := newFakeStore()
	student := Permissions{IsStudent: true, AllowedRooms: []string{"3"}, Header: true}
	c := NewCoordinator(store, NewHub(), dossier.NewForm(), student)
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_9"); err != nil {
		t.Fatalf("Expected a silent refusal, got %v", err)
	}
	if c.SlotID() != "" || c.State() != StateIdle {
		t.Error("Expected the coordinator untouched by the refused switch")
	}

	if err := c.SwitchActiveSlot("chambre_3"); err != nil {
		t.Fatalf("Expected the allowed room to load, got %v", err)
	}
	if c.SlotID() != "chambre_3" {
		t.Errorf("Expected chambre_3 active, got %s", c.SlotID())
	}
}

// Switching away saves the old slot before the new one is fetched; nothing
// pending is lost.
func TestSwitchFlushesOldSlot(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "Martin"
	c.OnLocalEdit(SectionHeader)

	if err := c.SwitchActiveSlot("chambre_2"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	saved := store.record("chambre_1")
	if saved == nil || saved.Fields["nom"] != "Martin" {
		t.Error("Expected the pending edit flushed before the switch")
	}
	if c.SlotID() != "chambre_2" {
		t.Errorf("Expected chambre_2 active, got %s", c.SlotID())
	}
	if c.Dirty() {
		t.Error("Expected the new slot clean")
	}
}

func TestSwitchAbandonedWhenFlushFails(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "Martin"
	c.OnLocalEdit(SectionHeader)

	store.setFailSave(true)
	if err := c.SwitchActiveSlot("chambre_2"); err == nil {
		t.Fatal("Expected the switch abandoned when the flush fails")
	}
	if c.SlotID() != "chambre_1" {
		t.Errorf("Expected chambre_1 still active, got %s", c.SlotID())
	}
	if !c.Dirty() {
		t.Error("Expected the unsaved edit still pending")
	}

	store.setFailSave(false)
	if err := c.Flush(); err != nil {
		t.Fatalf("Expected the retry to succeed, got %v", err)
	}
	if c.Dirty() {
		t.Error("Expected the session clean after the retried save")
	}
}

// One session's save shows up in the other session's form, and never
// echoes back to the writer.
func TestRemoteUpdateAppliedWithoutEcho(t *testing.T) {
	store := newFakeStore()
	hub := NewHub()

	f1 := dossier.NewForm()
	c1 := NewCoordinator(store, hub, f1, TrainerPermissions(),
		WithDebounce(20*time.Millisecond))
	defer c1.Close()

	f2 := dossier.NewForm()
	c2 := NewCoordinator(store, hub, f2, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c2.Close()

	if err := c1.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := c2.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f1.Fields["prenom"] = "Hélène"
	f1.Fields["nom"] = "Martin"
	c1.OnLocalEdit(SectionHeader)

	waitFor(t, func() bool { return c2.Label() == "Hélène Martin" },
		"Expected the other session relabeled by the remote update")
	if c2.Dirty() {
		t.Error("Expected the receiving session not marked dirty")
	}

	// Applying the remote update must not trigger a save of its own: one
	// writer, one save.
	time.Sleep(100 * time.Millisecond)
	if got := store.saveCount(); got != 1 {
		t.Errorf("Expected exactly 1 save (no echo loop), got %d", got)
	}
}

// An incoming remote update supersedes edits still waiting in the debounce
// window: last writer wins over the whole record.
func TestRemoteUpdateSupersedesPendingEdits(t *testing.T) {
	store := newFakeStore()
	hub := NewHub()

	f1 := dossier.NewForm()
	c1 := NewCoordinator(store, hub, f1, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c1.Close()

	f2 := dossier.NewForm()
	c2 := NewCoordinator(store, hub, f2, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c2.Close()

	if err := c1.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := c2.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f2.Fields["motif"] = "draft never saved"
	c2.OnLocalEdit(SectionHeader)
	if !c2.Dirty() {
		t.Fatal("Expected the second session dirty")
	}

	f1.Fields["prenom"] = "Pierre"
	f1.Fields["nom"] = "Durand"
	c1.OnLocalEdit(SectionHeader)
	if err := c1.Flush(); err != nil {
		t.Fatalf("Expected the flush to succeed, got %v", err)
	}

	waitFor(t, func() bool { return !c2.Dirty() },
		"Expected the pending edit superseded by the remote update")
	time.Sleep(100 * time.Millisecond)
	if got := store.saveCount(); got != 1 {
		t.Errorf("Expected only the winning writer's save, got %d", got)
	}
}

func TestFlushWithoutEditsIsNoop(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, NewHub(), dossier.NewForm(), TrainerPermissions())
	defer c.Close()

	if err := c.Flush(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.saveCount() != 0 {
		t.Error("Expected no save without edits")
	}
}

func TestFailedSaveKeepsSessionDirty(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(time.Hour))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "Martin"
	c.OnLocalEdit(SectionHeader)

	store.setFailSave(true)
	if err := c.Flush(); err == nil {
		t.Fatal("Expected the flush to fail")
	}
	if !c.Dirty() {
		t.Error("Expected the session still dirty after a failed save")
	}

	store.setFailSave(false)
	if err := c.Flush(); err != nil {
		t.Fatalf("Expected the retried flush to succeed, got %v", err)
	}
	if c.Dirty() {
		t.Error("Expected the session clean after the retried save")
	}
}

func TestFailedDebouncedSaveNotifiesUser(t *testing.T) {
	store := newFakeStore()
	store.setFailSave(true)

	levels := make(chan string, 4)
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(20*time.Millisecond),
		WithNotifier(func(level, msg string) { levels <- level }))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "Martin"
	c.OnLocalEdit(SectionHeader)

	select {
	case level := <-levels:
		if level != "error" {
			t.Errorf("Expected an error notification, got %q", level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the failed autosave surfaced to the user")
	}
	if !c.Dirty() {
		t.Error("Expected the session still dirty after the failed autosave")
	}
	store.setFailSave(false)
}

func TestImportDocument(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions(),
		WithDebounce(20*time.Millisecond))
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	doc := []byte(`{
		"fields": {"entry-date": "2025-11-08", "nom": "Martin"},
		"observations": [{"author": "IDE", "text": "x", "date": "2025-11-10"}]
	}`)
	if err := c.ImportDocument(doc); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	waitFor(t, func() bool { return store.saveCount() == 1 },
		"Expected the imported document saved after the debounce")
	saved := store.record("chambre_1")
	if saved.Fields["nom"] != "Martin" {
		t.Error("Expected the imported fields persisted")
	}
	if saved.Observations[0].DateOffset != 2 {
		t.Errorf("Expected the legacy date migrated to offset 2, got %d",
			saved.Observations[0].DateOffset)
	}
}

func TestImportDocumentRejectsMalformed(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions())
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "untouched"

	if err := c.ImportDocument([]byte(`[1, 2, 3]`)); err == nil {
		t.Fatal("Expected an error for a non-object document")
	}
	if form.Fields["nom"] != "untouched" {
		t.Error("Expected the active record untouched by the rejected import")
	}
}

func TestExportDocument(t *testing.T) {
	store := newFakeStore()
	form := dossier.NewForm()
	c := NewCoordinator(store, NewHub(), form, TrainerPermissions())
	defer c.Close()

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["entry-date"] = "2025-11-08"
	form.Fields["nom"] = "Martin"

	data, err := c.ExportDocument()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	r, err := dossier.DecodeRecord(data, time.Time{})
	if err != nil {
		t.Fatalf("Expected the export to decode, got %v", err)
	}
	if r.Fields["nom"] != "Martin" {
		t.Errorf("Expected the exported fields, got %+v", r.Fields)
	}
}

func TestCloseFlushesAndUnsubscribes(t *testing.T) {
	store := newFakeStore()
	hub := NewHub()
	form := dossier.NewForm()
	c := NewCoordinator(store, hub, form, TrainerPermissions(),
		WithDebounce(time.Hour))

	if err := c.SwitchActiveSlot("chambre_1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	form.Fields["nom"] = "Martin"
	c.OnLocalEdit(SectionHeader)

	if err := c.Close(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.record("chambre_1") == nil {
		t.Error("Expected the pending edit flushed on close")
	}
	if hub.SubscriberCount() != 0 {
		t.Error("Expected the subscription released on close")
	}
}
