package daemon

import (
	"sync"
	"time"

	"barobak/internal/model"
)

type State struct {
	mu         sync.RWMutex
	startedAt  time.Time
	accepted   int
	dropped    int
	succeeded  int
	failed     int
	lastBackup *time.Time
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) RecordEvent(accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if accepted {
		s.accepted++
	} else {
		s.dropped++
	}
}

func (s *State) RecordResult(result model.BackupResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.Status == model.StatusSuccess {
		s.succeeded++
		s.lastBackup = new(result.FinishedAt)
	} else {
		s.failed++
	}
}

func (s *State) fill(snap *model.ServiceSnapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap.StartedAt = s.startedAt
	snap.Accepted = s.accepted
	snap.Dropped = s.dropped
	snap.Succeeded = s.succeeded
	snap.Failed = s.failed
	snap.LastBackup = s.lastBackup
}
