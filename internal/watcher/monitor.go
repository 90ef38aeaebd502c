package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"barobak/internal/logger"
	"barobak/internal/model"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	SavePattern    = "*.save"
	MultiplayerDir = "Multiplayer"
)

var ErrWatchSetup = errors.New("watch setup failed")

// Targets lists the watch targets enabled for a save folder.
func Targets(saveFolder string, singleplayer, multiplayer bool) []model.WatchTarget {
	var targets []model.WatchTarget
	if singleplayer {
		targets = append(targets, model.WatchTarget{
			Dir:     saveFolder,
			Pattern: SavePattern,
		})
	}
	if multiplayer {
		targets = append(targets, model.WatchTarget{
			Dir:         filepath.Join(saveFolder, MultiplayerDir),
			Pattern:     SavePattern,
			Multiplayer: true,
		})
	}
	return targets
}

// Monitor watches target directories (non-recursively) and emits change events
// for files matching each target's pattern. Events flow only after Start.
type Monitor struct {
	fw      *fsnotify.Watcher
	targets []model.WatchTarget
	eventCh chan model.ChangeEvent
	doneCh  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New registers a watch for every target. Any failure disposes the watches
// already registered and returns an error wrapping ErrWatchSetup.
func New(targets []model.WatchTarget, bufferSize int) (*Monitor, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no watch targets enabled", ErrWatchSetup)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create watcher: %v", ErrWatchSetup, err)
	}

	m := &Monitor{
		fw:      fw,
		eventCh: make(chan model.ChangeEvent, bufferSize),
		doneCh:  make(chan struct{}),
	}

	watched := make(map[string]bool)
	for _, target := range targets {
		absDir, err := filepath.Abs(target.Dir)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("%w: failed to resolve %s: %v", ErrWatchSetup, target.Dir, err)
		}

		info, err := os.Stat(absDir)
		if err != nil || !info.IsDir() {
			_ = fw.Close()
			return nil, fmt.Errorf("%w: directory %s cannot be found or is not a directory", ErrWatchSetup, absDir)
		}

		if !watched[absDir] {
			if err := fw.Add(absDir); err != nil {
				_ = fw.Close()
				return nil, fmt.Errorf("%w: failed to watch %s: %v", ErrWatchSetup, absDir, err)
			}
			watched[absDir] = true
		}

		target.Dir = absDir
		m.targets = append(m.targets, target)

		logger.Log.Debug("watch registered",
			zap.String("dir", absDir),
			zap.String("pattern", target.Pattern),
			zap.Bool("multiplayer", target.Multiplayer))
	}

	return m, nil
}

func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.stopped {
		return
	}
	m.started = true

	m.wg.Add(1)
	go m.run()

	logger.Log.Info("monitor started",
		zap.Int("targets", len(m.targets)))
}

func (m *Monitor) run() {
	defer m.wg.Done()
	defer close(m.eventCh)

	for {
		select {
		case <-m.doneCh:
			return

		case fsEvent, ok := <-m.fw.Events:
			if !ok {
				return
			}

			eventType := toEventType(fsEvent.Op)
			if eventType == "" {
				continue
			}

			for _, target := range m.targets {
				if !target.Matches(fsEvent.Name) {
					continue
				}

				event := model.ChangeEvent{
					Name:      filepath.Base(fsEvent.Name),
					Path:      fsEvent.Name,
					Type:      eventType,
					Target:    target,
					Timestamp: time.Now(),
				}

				select {
				case m.eventCh <- event:
				default:
					logger.Log.Warn("event queue is full, dropping event",
						zap.String("path", fsEvent.Name))
				}
			}

		case err, ok := <-m.fw.Errors:
			if !ok {
				return
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Log.Error("watcher buffer overflow, changes may have been missed",
					zap.Error(err))
				continue
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (m *Monitor) Events() <-chan model.ChangeEvent {
	return m.eventCh
}

func (m *Monitor) Targets() []model.WatchTarget {
	return m.targets
}

// Stop disposes every watch. No event is delivered after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.doneCh)
	_ = m.fw.Close()
	m.wg.Wait()

	if !started {
		close(m.eventCh)
	}

	logger.Log.Info("monitor stopped")
}

func toEventType(op fsnotify.Op) model.EventType {
	switch {
	case op.Has(fsnotify.Create):
		return model.EventCreate
	case op.Has(fsnotify.Write):
		return model.EventWrite
	default:
		return ""
	}
}
