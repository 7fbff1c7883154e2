package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/homecare-hr/models"
	"gorm.io/gorm"
)

// JobRunRepositoryImpl implements JobRunRepository interface
type JobRunRepositoryImpl struct {
	*BaseRepository[models.JobRun, models.JobRunFilter]
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *gorm.DB) JobRunRepository {
	return &JobRunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.JobRun, models.JobRunFilter](db),
	}
}

// Finish stores the outcome columns of a run started with Save
func (r *JobRunRepositoryImpl) Finish(ctx context.Context, run *models.JobRun) error {
	db := r.getDB(ctx)
	err := db.Model(&models.JobRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"success":       run.Success,
			"counts":        run.Counts,
			"error_message": run.ErrorMessage,
			"finished_at":   run.FinishedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish job run %d: %w", run.ID, err)
	}
	return nil
}

func (r *JobRunRepositoryImpl) applyFilter(db *gorm.DB, f models.JobRunFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Job != nil {
		db = db.Where("job = ?", *f.Job)
	}
	if f.Success != nil {
		db = db.Where("success = ?", *f.Success)
	}
	if f.RequestID != nil {
		db = db.Where("request_id = ?", *f.RequestID)
	}
	if f.StartedAfter != nil {
		db = db.Where("started_at >= ?", *f.StartedAfter)
	}
	if f.StartedBefore != nil {
		db = db.Where("started_at < ?", *f.StartedBefore)
	}
	return db
}

// ByFilter retrieves job runs based on filter criteria
func (r *JobRunRepositoryImpl) ByFilter(ctx context.Context, filter models.JobRunFilter, orderBy string, limit, offset int) ([]*models.JobRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.JobRun{}), filter)
	if orderBy == "" {
		orderBy = "started_at DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var runs []*models.JobRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to find job runs by filter: %w", err)
	}
	return runs, nil
}

// Count returns the number of job runs matching the filter
func (r *JobRunRepositoryImpl) Count(ctx context.Context, filter models.JobRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.JobRun{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count job runs: %w", err)
	}
	return count, nil
}

// Exists checks if any job run matches the filter
func (r *JobRunRepositoryImpl) Exists(ctx context.Context, filter models.JobRunFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
