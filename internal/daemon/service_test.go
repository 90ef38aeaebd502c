package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"barobak/internal/config"
	"barobak/internal/db"
	"barobak/internal/model"
	"barobak/internal/pipeline"
	"barobak/internal/repository"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig(t *testing.T, strategy string) *config.Config {
	t.Helper()
	saves := t.TempDir()
	if err := os.Mkdir(filepath.Join(saves, "Multiplayer"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default
	cfg.BackupService = config.BackupServiceConfig{
		SaveFolder:              saves,
		BackupSingleplayerSaves: true,
		BackupMultiplayerSaves:  true,
		BackupStrategy:          strategy,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &cfg
}

func setupRepo(t *testing.T) *repository.HistoryRepository {
	t.Helper()
	if err := db.Init(filepath.Join(t.TempDir(), "barobak.db")); err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewHistoryRepository()
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNewServiceRequiresEnabledMode(t *testing.T) {
	cfg := testConfig(t, "copy")
	cfg.BackupService.BackupSingleplayerSaves = false
	cfg.BackupService.BackupMultiplayerSaves = false

	if _, err := NewService(cfg, nil); err == nil {
		t.Fatal("expected error when no backup mode is enabled")
	}
}

func TestNewServiceFailsWithoutMultiplayerDir(t *testing.T) {
	cfg := testConfig(t, "copy")
	if err := os.Remove(filepath.Join(cfg.BackupService.SaveFolder, "Multiplayer")); err != nil {
		t.Fatal(err)
	}

	if _, err := NewService(cfg, nil); err == nil {
		t.Fatal("expected watch setup error for missing Multiplayer folder")
	}
}

func TestServiceBacksUpChangedSave(t *testing.T) {
	cfg := testConfig(t, "copy")
	repo := setupRepo(t)

	svc, err := NewService(cfg, repo, pipeline.WithSleep(noSleep))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Give the monitor a moment to start delivering events.
	eventually(t, 2*time.Second, func() bool { return len(svc.Snapshot().Targets) == 2 })
	time.Sleep(100 * time.Millisecond)

	save := filepath.Join(cfg.BackupService.SaveFolder, "campaign.save")
	if err := os.WriteFile(save, []byte("state"), 0644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 10*time.Second, func() bool { return svc.Snapshot().Succeeded >= 1 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := svc.Shutdown(waitCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, err := os.ReadDir(cfg.BackupService.SaveFolder)
	if err != nil {
		t.Fatal(err)
	}
	var artifacts int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "campaign-") && strings.HasSuffix(e.Name(), ".save.bak") {
			artifacts++
		}
	}
	if artifacts == 0 {
		t.Fatal("expected a backup artifact next to the save")
	}

	rows, err := repo.GetRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) == 0 || rows[0].FileName != "campaign.save" {
		t.Fatalf("expected history rows for campaign.save, got %+v", rows)
	}

	snap := svc.Snapshot()
	if snap.Accepted < 1 || snap.LastBackup == nil || len(snap.InFlight) != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestBackupOnce(t *testing.T) {
	cfg := testConfig(t, "archive")
	out := t.TempDir()
	cfg.BackupService.BackupFolder = out
	repo := setupRepo(t)

	save := filepath.Join(cfg.BackupService.SaveFolder, "solo.save")
	if err := os.WriteFile(save, []byte("state"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := BackupOnce(context.Background(), cfg, repo, save, false)
	if err != nil {
		t.Fatalf("BackupOnce: %v", err)
	}
	if result.Status != model.StatusSuccess || len(result.Artifacts) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if filepath.Dir(result.Artifacts[0]) != out || !strings.HasSuffix(result.Artifacts[0], ".zip") {
		t.Fatalf("expected zip in %s, got %s", out, result.Artifacts[0])
	}

	stats, err := repo.GetStats()
	if err != nil || stats.Success != 1 {
		t.Fatalf("expected one successful history row, got %+v, err %v", stats, err)
	}
}

func TestBackupOnceMissingFile(t *testing.T) {
	cfg := testConfig(t, "copy")

	result, err := BackupOnce(context.Background(), cfg, nil, filepath.Join(cfg.BackupService.SaveFolder, "gone.save"), false)
	if err == nil {
		t.Fatal("expected error for missing save")
	}
	if result.Status != model.StatusFailed {
		t.Fatalf("expected failed status, got %q", result.Status)
	}
}

func TestStateCounters(t *testing.T) {
	s := NewState()
	s.RecordEvent(true)
	s.RecordEvent(false)
	s.RecordEvent(false)

	finished := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s.RecordResult(model.BackupResult{Status: model.StatusSuccess, FinishedAt: finished})
	s.RecordResult(model.BackupResult{Status: model.StatusAbandoned})

	var snap model.ServiceSnapshot
	s.fill(&snap)

	if snap.Accepted != 1 || snap.Dropped != 2 || snap.Succeeded != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
	if snap.LastBackup == nil || !snap.LastBackup.Equal(finished) {
		t.Fatalf("unexpected last backup %v", snap.LastBackup)
	}
}
