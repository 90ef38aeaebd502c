package model

import "time"

type TargetSnapshot struct {
	Dir         string `json:"dir"`
	Pattern     string `json:"pattern"`
	Multiplayer bool   `json:"multiplayer"`
}

type ServiceSnapshot struct {
	Strategy   string           `json:"strategy"`
	OutputDir  string           `json:"output_dir"`
	Targets    []TargetSnapshot `json:"targets"`
	InFlight   []string         `json:"in_flight"`
	Accepted   int              `json:"accepted"`
	Dropped    int              `json:"dropped"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	StartedAt  time.Time        `json:"started_at"`
	LastBackup *time.Time       `json:"last_backup"`
}
