package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/homecare-hr/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignupRepositoryImpl implements SignupRepository
type SignupRepositoryImpl struct {
	*BaseRepository[models.Signup, models.SignupFilter]
}

func NewSignupRepository(db *gorm.DB) SignupRepository {
	return &SignupRepositoryImpl{BaseRepository: NewBaseRepository[models.Signup, models.SignupFilter](db)}
}

func (r *SignupRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Signup, error) {
	db := r.getDB(ctx)
	var row models.Signup
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find signup by uuid %s: %w", id, err)
	}
	return &row, nil
}

func (r *SignupRepositoryImpl) InitialContactIDs(ctx context.Context) ([]uint, error) {
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.Signup{}).
		Where("initial_contact_id IS NOT NULL").
		Distinct().
		Pluck("initial_contact_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list signup contact ids: %w", err)
	}
	return ids, nil
}

func (r *SignupRepositoryImpl) MarkReminderSent(ctx context.Context, signupID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Signup{}).
		Where("id = ?", signupID).
		Where("signature_reminder_sent IS NOT TRUE").
		Update("signature_reminder_sent", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark reminder sent for signup %d: %w", signupID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *SignupRepositoryImpl) applyFilter(db *gorm.DB, f models.SignupFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.InitialContactID != nil {
		db = db.Where("initial_contact_id = ?", *f.InitialContactID)
	}
	if f.ReminderNotSent {
		db = db.Where("signature_reminder_sent IS NOT TRUE")
	}
	if f.UpdatedBefore != nil {
		db = db.Where("last_updated_at < ?", *f.UpdatedBefore)
	}
	if f.UpdatedAfter != nil {
		db = db.Where("last_updated_at >= ?", *f.UpdatedAfter)
	}
	return db
}

func (r *SignupRepositoryImpl) ByFilter(ctx context.Context, filter models.SignupFilter, orderBy string, limit, offset int) ([]*models.Signup, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Signup{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Signup
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find signups by filter: %w", err)
	}
	return rows, nil
}

func (r *SignupRepositoryImpl) Count(ctx context.Context, filter models.SignupFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Signup{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SignupRepositoryImpl) Exists(ctx context.Context, filter models.SignupFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
