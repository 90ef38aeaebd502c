package model

import (
	"path/filepath"
	"time"
)

type EventType string

const (
	EventCreate EventType = "CREATE"
	EventWrite  EventType = "WRITE"
)

// WatchTarget is one monitored (directory, pattern) pair.
type WatchTarget struct {
	Dir         string
	Pattern     string
	Multiplayer bool
}

func (t WatchTarget) Matches(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(t.Dir) {
		return false
	}

	matched, err := filepath.Match(t.Pattern, filepath.Base(path))
	return err == nil && matched
}

type ChangeEvent struct {
	Name      string
	Path      string
	Type      EventType
	Target    WatchTarget
	Timestamp time.Time
}
