package daemon

import (
	"context"
	"fmt"
	"path/filepath"

	"barobak/internal/backup"
	"barobak/internal/config"
	"barobak/internal/logger"
	"barobak/internal/model"
	"barobak/internal/pipeline"
	"barobak/internal/repository"
	"barobak/internal/watcher"

	"go.uber.org/zap"
)

// Service wires the directory monitor to the backup debouncer.
type Service struct {
	cfg       *config.Config
	monitor   *watcher.Monitor
	debouncer *pipeline.Debouncer
	state     *State
	repo      *repository.HistoryRepository
}

// NewService registers every enabled watch. repo may be nil to skip history.
func NewService(cfg *config.Config, repo *repository.HistoryRepository, opts ...pipeline.Option) (*Service, error) {
	writer, err := backup.New(cfg.Strategy(), cfg.BackupService.BackupFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup writer: %w", err)
	}

	s := &Service{
		cfg:   cfg,
		state: NewState(),
		repo:  repo,
	}

	opts = append(opts, pipeline.WithResultHandler(s.record))
	s.debouncer = pipeline.NewDebouncer(writer, pipeline.NewCompanionResolver(), opts...)

	bs := cfg.BackupService
	targets := watcher.Targets(bs.SaveFolder, bs.BackupSingleplayerSaves, bs.BackupMultiplayerSaves)

	s.monitor, err = watcher.New(targets, cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Run starts delivering events and dispatches them until ctx is done.
// Accepted backups keep running after Run returns; see Shutdown.
func (s *Service) Run(ctx context.Context) error {
	s.monitor.Start()
	defer s.monitor.Stop()

	logger.Log.Info("service started",
		zap.String("save_folder", s.cfg.BackupService.SaveFolder),
		zap.String("strategy", string(s.cfg.Strategy())))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("service stopping")
			return nil

		case event, ok := <-s.monitor.Events():
			if !ok {
				return nil
			}

			s.state.RecordEvent(s.debouncer.Handle(ctx, event))
		}
	}
}

// Shutdown disposes the watches and waits for in-flight backups until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.monitor.Stop()

	if err := s.debouncer.Wait(ctx); err != nil {
		logger.Log.Warn("in-flight backups still running at shutdown",
			zap.Strings("files", s.debouncer.InFlight()),
			zap.Error(err))
		return err
	}

	logger.Log.Info("service stopped")
	return nil
}

func (s *Service) Snapshot() model.ServiceSnapshot {
	snap := model.ServiceSnapshot{
		Strategy:  string(s.cfg.Strategy()),
		OutputDir: s.cfg.BackupService.BackupFolder,
		InFlight:  s.debouncer.InFlight(),
	}

	for _, t := range s.monitor.Targets() {
		snap.Targets = append(snap.Targets, model.TargetSnapshot{
			Dir:         t.Dir,
			Pattern:     t.Pattern,
			Multiplayer: t.Multiplayer,
		})
	}

	s.state.fill(&snap)
	return snap
}

func (s *Service) record(result model.BackupResult) {
	s.state.RecordResult(result)
	saveHistory(s.repo, result)
}

func saveHistory(repo *repository.HistoryRepository, result model.BackupResult) {
	if repo == nil {
		return
	}

	if err := repo.Save(result); err != nil {
		logger.Log.Warn("failed to save history",
			zap.String("file", result.Event.Name),
			zap.Error(err))
	}
}

// BackupOnce runs a single backup of path through the same workflow the
// monitor uses, without the grace period.
func BackupOnce(ctx context.Context, cfg *config.Config, repo *repository.HistoryRepository, path string, multiplayer bool) (model.BackupResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return model.BackupResult{}, fmt.Errorf("invalid path: %w", err)
	}

	writer, err := backup.New(cfg.Strategy(), cfg.BackupService.BackupFolder)
	if err != nil {
		return model.BackupResult{}, fmt.Errorf("failed to create backup writer: %w", err)
	}

	var result model.BackupResult
	d := pipeline.NewDebouncer(writer, pipeline.NewCompanionResolver(),
		pipeline.WithGracePeriod(0),
		pipeline.WithResultHandler(func(r model.BackupResult) {
			result = r
			saveHistory(repo, r)
		}))

	event := model.ChangeEvent{
		Name: filepath.Base(absPath),
		Path: absPath,
		Type: model.EventWrite,
		Target: model.WatchTarget{
			Dir:         filepath.Dir(absPath),
			Pattern:     watcher.SavePattern,
			Multiplayer: multiplayer,
		},
	}

	if !d.Handle(ctx, event) {
		return result, fmt.Errorf("backup of %s was not started", path)
	}

	if err := d.Wait(ctx); err != nil {
		return result, err
	}

	return result, result.Err
}
