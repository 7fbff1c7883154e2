package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact by uuid %s: %w", id, err)
	}
	return &row, nil
}

func (r *ContactRepositoryImpl) AppendFollowUp(ctx context.Context, contactID uint, entry models.FollowUpEntry) (bool, error) {
	probe, err := json.Marshal([]map[string]string{{"templateId": entry.TemplateID}})
	if err != nil {
		return false, fmt.Errorf("failed to marshal history probe: %w", err)
	}
	appended, err := json.Marshal(models.FollowUpHistory{entry})
	if err != nil {
		return false, fmt.Errorf("failed to marshal history entry: %w", err)
	}

	db := r.getDB(ctx)
	res := db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Where("NOT (COALESCE(follow_up_history, '[]'::jsonb) @> ?::jsonb)", string(probe)).
		Updates(map[string]any{
			"follow_up_history": gorm.Expr("COALESCE(follow_up_history, '[]'::jsonb) || ?::jsonb", string(appended)),
			"updated_at":        utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to append follow-up for contact %d: %w", contactID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ContactRepositoryImpl) ListWithFollowUpHistory(ctx context.Context, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Contact{}).
		Where("jsonb_array_length(COALESCE(follow_up_history, '[]'::jsonb)) > 0").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list contacts with history: %w", err)
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.LeadSource != nil {
		db = db.Where("lead_source = ?", *f.LeadSource)
	}
	if f.NotOptedOut {
		db = db.Where("send_follow_up_campaigns IS DISTINCT FROM FALSE")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find contacts by filter: %w", err)
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
