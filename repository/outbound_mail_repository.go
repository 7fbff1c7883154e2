package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboundMailRepositoryImpl implements OutboundMailRepository
type OutboundMailRepositoryImpl struct {
	*BaseRepository[models.OutboundMail, models.OutboundMailFilter]
}

func NewOutboundMailRepository(db *gorm.DB) OutboundMailRepository {
	return &OutboundMailRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OutboundMail, models.OutboundMailFilter](db),
	}
}

// ClaimPending must run inside a transaction; the row locks are held until it ends.
func (r *OutboundMailRepositoryImpl) ClaimPending(ctx context.Context, limit int) ([]*models.OutboundMail, error) {
	db := r.getDB(ctx)
	var rows []*models.OutboundMail
	err := db.Model(&models.OutboundMail{}).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboundMailStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending mails: %w", err)
	}
	return rows, nil
}

func (r *OutboundMailRepositoryImpl) MarkSent(ctx context.Context, id uint, sentAt time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.OutboundMail{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.OutboundMailStatusSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"sent_at":    sentAt,
			"last_error": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark mail %d sent: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed attempt. The mail goes back to pending until maxAttempts is reached.
func (r *OutboundMailRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string, maxAttempts int) error {
	db := r.getDB(ctx)
	status := gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
		maxAttempts, models.OutboundMailStatusFailed, models.OutboundMailStatusPending)
	err := db.Model(&models.OutboundMail{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark mail %d failed: %w", id, err)
	}
	return nil
}

func (r *OutboundMailRepositoryImpl) applyFilter(db *gorm.DB, f models.OutboundMailFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Source != nil {
		db = db.Where("source = ?", *f.Source)
	}
	if f.ContactID != nil {
		db = db.Where("contact_id = ?", *f.ContactID)
	}
	if f.SignupID != nil {
		db = db.Where("signup_id = ?", *f.SignupID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *OutboundMailRepositoryImpl) ByFilter(ctx context.Context, filter models.OutboundMailFilter, orderBy string, limit, offset int) ([]*models.OutboundMail, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OutboundMail{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.OutboundMail
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find outbound mails by filter: %w", err)
	}
	return rows, nil
}

func (r *OutboundMailRepositoryImpl) Count(ctx context.Context, filter models.OutboundMailFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OutboundMail{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *OutboundMailRepositoryImpl) Exists(ctx context.Context, filter models.OutboundMailFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
