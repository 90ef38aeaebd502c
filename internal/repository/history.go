package repository

import (
	"strings"
	"time"

	"barobak/internal/db"
	"barobak/internal/model"
	"barobak/internal/util"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Save(result model.BackupResult) error {
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	checksum := ""
	if len(result.Artifacts) > 0 {
		if sum, err := util.FileChecksum(result.Artifacts[0]); err == nil {
			checksum = sum
		}
	}

	finishedAt := result.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	history := model.History{
		AttemptID:   result.AttemptID,
		FileName:    result.Event.Name,
		SrcPath:     result.Event.Path,
		Multiplayer: result.Event.Target.Multiplayer,
		Artifacts:   strings.Join(result.Artifacts, ";"),
		Checksum:    checksum,
		Status:      result.Status,
		ErrMsg:      errMsg,
		StartedAt:   result.StartedAt,
		FinishedAt:  finishedAt,
	}

	return db.DB.Create(&history).Error
}

type Stats struct {
	Total     int64 `json:"total"`
	Success   int64 `json:"success"`
	Failed    int64 `json:"failed"`
	Abandoned int64 `json:"abandoned"`
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).
		Where("status = ?", model.StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).
		Where("status = ?", model.StatusAbandoned).
		Count(&stats.Abandoned).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success - stats.Abandoned
	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetByFile(name string, limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("file_name = ?", name).
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}
