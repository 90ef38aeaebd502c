package model

import (
	"time"

	"gorm.io/gorm"
)

type History struct {
	gorm.Model
	AttemptID   string       `gorm:"not null;uniqueIndex" json:"attempt_id"`
	FileName    string       `gorm:"not null;index" json:"file_name"`
	SrcPath     string       `gorm:"not null" json:"src_path"`
	Multiplayer bool         `gorm:"not null;default:false" json:"multiplayer"`
	Artifacts   string       `json:"artifacts"`
	Checksum    string       `json:"checksum"`
	Status      BackupStatus `gorm:"not null" json:"status"`
	ErrMsg      string       `json:"err_msg,omitempty"`
	StartedAt   time.Time    `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time    `gorm:"not null" json:"finished_at"`
}
