// Package scheduler provides automated slot backups and data-age health
// monitoring for the dossier API. Backups run on a cron cadence and copy
// every chambre slot into the backup directory; the watchdog warns when a
// subscribed slot has not been saved for too long.
package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
	"github.com/ifsi-tools/dossier-api/logging"
	"github.com/ifsi-tools/dossier-api/session"
)

// StaleThreshold is how old a watched slot's last save may get before the
// watchdog logs a warning.
const StaleThreshold = 24 * time.Hour

// Scheduler handles slot backups and health monitoring using dependency
// injection.
type Scheduler struct {
	store     interfaces.RecordStore
	hub       *session.Hub
	backupDir string
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.RecordStore, hub *session.Hub, backupDir string) *Scheduler {
	return &Scheduler{
		store:     store,
		hub:       hub,
		backupDir: backupDir,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start schedules the twice-daily backups and the hourly watchdog.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.BackupAll(); err != nil {
			logging.Error("Failed to back up slots", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule backups: %w", err)
	}

	_, err = s.scheduler.Every(1).Hour().Do(s.watchStaleSlots)
	if err != nil {
		return fmt.Errorf("scheduler: schedule watchdog: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// BackupAll copies every chambre slot into a timestamped file under the
// backup directory. Archives are immutable and already their own backup.
func (s *Scheduler) BackupAll() error {
	slots, err := s.store.ListSlots()
	if err != nil {
		return fmt.Errorf("scheduler: list slots: %w", err)
	}

	stamp := time.Now().Format("2006-01-02_1504")
	dir := filepath.Join(s.backupDir, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scheduler: create backup directory: %w", err)
	}

	start := time.Now()
	count := 0
	for _, slot := range slots {
		if !dossier.IsChambreSlot(slot.ID) {
			continue
		}
		record, err := s.store.FetchRecord(slot.ID)
		if err != nil {
			logging.Error("Failed to fetch slot for backup", "slot_id", slot.ID, "error", err)
			continue
		}
		if record.IsEmpty() {
			continue
		}
		data, err := dossier.EncodeRecord(record)
		if err != nil {
			logging.Error("Failed to encode slot for backup", "slot_id", slot.ID, "error", err)
			continue
		}
		path := filepath.Join(dir, slot.ID+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logging.Error("Failed to write backup file", "file", path, "error", err)
			continue
		}
		count++
	}

	logging.Info("Slot backup completed",
		"duration", time.Since(start).String(),
		"slot_count", count,
		"directory", dir)
	return nil
}

// watchStaleSlots warns about slots that still have live subscribers but
// have not been saved in over a day; usually a sign of a wedged client.
func (s *Scheduler) watchStaleSlots() {
	slots, err := s.store.ListSlots()
	if err != nil {
		logging.Error("Watchdog could not list slots", "error", err)
		return
	}
	for _, slot := range slots {
		if !dossier.IsChambreSlot(slot.ID) {
			continue
		}
		if !s.hub.HasSubscribers(slot.ID) {
			continue
		}
		last := s.store.LastSaved(slot.ID)
		if last.IsZero() {
			continue
		}
		if time.Since(last) > StaleThreshold {
			logging.Warn("Slot has not been saved in over 24 hours",
				"slot_id", slot.ID,
				"last_saved", last.Format(time.RFC3339))
		}
	}
}

// CalculateNextBackup returns the next scheduled backup time.
func CalculateNextBackup() time.Time {
	now := time.Now()

	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}
	if now.Before(sixPM) {
		return sixPM
	}
	return sixAM.AddDate(0, 0, 1)
}
