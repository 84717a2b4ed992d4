// Package store provides file-backed persistence for dossier records.
// Each slot or archive is one JSON document under the data directory; a
// small index file maps identifiers to display names. Display names are
// additionally cached in an atomic value so listings never block saves.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
	"github.com/ifsi-tools/dossier-api/logging"
)

// Compile-time check to ensure Store implements RecordStore
var _ interfaces.RecordStore = (*Store)(nil)

// ErrMissingDisplayName rejects archive saves without a patient name,
// synchronously and before anything is written.
var ErrMissingDisplayName = errors.New("store: archive requires a patient name")

// ErrNotAnArchive rejects delete attempts on anything but a save_ id.
var ErrNotAnArchive = errors.New("store: only archives can be deleted")

// ErrNotAChambre rejects slot saves on anything but a chambre_ id.
var ErrNotAChambre = errors.New("store: records save only to chambre slots")

const indexFile = ".slots.json"

type indexEntry struct {
	DisplayName string    `json:"displayName"`
	SavedAt     time.Time `json:"savedAt"`
}

// Store persists records with diskv, one document per key. Keys are the
// slot ids themselves; the key-to-path transform shards chambre and save
// documents into separate directories.
type Store struct {
	d        *diskv.Diskv
	basePath string

	mu    sync.Mutex   // serializes index writes
	index atomic.Value // map[string]indexEntry, lock-free reads
}

// Open creates a store rooted at basePath, loading the existing index.
func Open(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("store: base path required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}

	s := &Store{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024, // 1MB
		}),
		basePath: basePath,
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	s.index.Store(idx)

	return s, nil
}

// FetchRecord loads and decodes a record. A slot that was never saved
// yields an empty record, not an error; legacy documents are migrated in
// memory by the decoder.
func (s *Store) FetchRecord(slotID string) (*dossier.Record, error) {
	data, err := s.d.Read(slotID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dossier.NewRecord(), nil
		}
		return nil, fmt.Errorf("store: read %s: %w", slotID, err)
	}

	r, err := dossier.DecodeRecord(data, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", slotID, err)
	}
	return r, nil
}

// SaveRecord persists a record under a chambre slot and updates its display
// name in the index.
func (s *Store) SaveRecord(slotID string, r *dossier.Record, displayName string) error {
	if !dossier.IsChambreSlot(slotID) {
		return ErrNotAChambre
	}
	return s.write(slotID, r, displayName)
}

// SaveArchive writes a named snapshot under a fresh save_ id. The display
// name is mandatory; an archive without a patient name is rejected before
// any write happens.
func (s *Store) SaveArchive(r *dossier.Record, displayName string) (string, error) {
	if strings.TrimSpace(displayName) == "" {
		return "", ErrMissingDisplayName
	}
	id := dossier.ArchivePrefix + uuid.NewString()
	if err := s.write(id, r, displayName); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteArchive removes an archive document and its index entry.
func (s *Store) DeleteArchive(archiveID string) error {
	if !dossier.IsArchiveID(archiveID) {
		return ErrNotAnArchive
	}
	if err := s.d.Erase(archiveID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: erase %s: %w", archiveID, err)
	}
	return s.updateIndex(func(idx map[string]indexEntry) {
		delete(idx, archiveID)
	})
}

// ListSlots returns every indexed slot and archive sorted by id.
func (s *Store) ListSlots() ([]interfaces.SlotInfo, error) {
	idx := s.currentIndex()
	out := make([]interfaces.SlotInfo, 0, len(idx))
	for id, e := range idx {
		out = append(out, interfaces.SlotInfo{ID: id, DisplayName: e.DisplayName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LastSaved returns the most recent save time for a slot.
func (s *Store) LastSaved(slotID string) time.Time {
	if e, ok := s.currentIndex()[slotID]; ok {
		return e.SavedAt
	}
	return time.Time{}
}

func (s *Store) write(id string, r *dossier.Record, displayName string) error {
	data, err := dossier.EncodeRecord(r)
	if err != nil {
		return err
	}
	if err := s.d.Write(id, data); err != nil {
		return fmt.Errorf("store: write %s: %w", id, err)
	}
	return s.updateIndex(func(idx map[string]indexEntry) {
		idx[id] = indexEntry{DisplayName: displayName, SavedAt: time.Now()}
	})
}

// currentIndex returns the cached index map. Callers must not mutate it.
func (s *Store) currentIndex() map[string]indexEntry {
	if v := s.index.Load(); v != nil {
		if idx, ok := v.(map[string]indexEntry); ok {
			return idx
		}
	}

	logging.Warn("Slot index cache is empty or invalid")
	return make(map[string]indexEntry)
}

// updateIndex applies fn to a copy of the index, persists it atomically
// (tmp file + rename), then swaps the cache.
func (s *Store) updateIndex(fn func(map[string]indexEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.currentIndex()
	idx := make(map[string]indexEntry, len(old)+1)
	for k, v := range old {
		idx[k] = v
	}
	fn(idx)

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal index: %w", err)
	}
	path := filepath.Join(s.basePath, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit index: %w", err)
	}

	s.index.Store(idx)
	return nil
}

func (s *Store) loadIndex() (map[string]indexEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, indexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]indexEntry), nil
		}
		return nil, fmt.Errorf("store: load index: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]indexEntry), nil
	}
	idx := make(map[string]indexEntry)
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("store: parse index: %w", err)
	}
	return idx, nil
}

// keyToPathTransform shards "chambre_12" into chambre/12 and
// "save_<uuid>" into save/<uuid>.
func keyToPathTransform(key string) *diskv.PathKey {
	if i := strings.Index(key, "_"); i > 0 {
		return &diskv.PathKey{Path: []string{key[:i]}, FileName: key[i+1:] + ".json"}
	}
	return &diskv.PathKey{Path: []string{}, FileName: key + ".json"}
}

func pathToKeyTransform(pk *diskv.PathKey) string {
	name := strings.TrimSuffix(pk.FileName, ".json")
	if len(pk.Path) == 0 {
		return name
	}
	return fmt.Sprintf("%s_%s", strings.Join(pk.Path, "_"), name)
}
