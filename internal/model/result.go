package model

import "time"

type BackupStatus string

const (
	StatusSuccess   BackupStatus = "SUCCESS"
	StatusFailed    BackupStatus = "FAILED"
	StatusAbandoned BackupStatus = "ABANDONED"
)

// BackupResult describes one finished backup attempt.
type BackupResult struct {
	AttemptID  string
	Event      ChangeEvent
	Companion  string
	Artifacts  []string
	Status     BackupStatus
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}
