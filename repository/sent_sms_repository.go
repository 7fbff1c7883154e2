package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"gorm.io/gorm"
)

// SentSMSRepositoryImpl stores the SMS follow-ups accepted by the provider
type SentSMSRepositoryImpl struct {
	*BaseRepository[models.SentSMS, models.SentSMSFilter]
}

func NewSentSMSRepository(db *gorm.DB) SentSMSRepository {
	return &SentSMSRepositoryImpl{BaseRepository: NewBaseRepository[models.SentSMS, models.SentSMSFilter](db)}
}

// ListSentBetween returns the SMS rows created within [from, to], oldest first.
// A nil bound leaves that side open.
func (r *SentSMSRepositoryImpl) ListSentBetween(ctx context.Context, from, to *time.Time, limit int) ([]*models.SentSMS, error) {
	query := r.getDB(ctx).Model(&models.SentSMS{}).Scopes(createdWithin(from, to)).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.SentSMS
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sent sms: %w", err)
	}
	return rows, nil
}

func createdWithin(from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}

func sentSMSScope(f models.SentSMSFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		conds := map[string]any{}
		if f.ID != nil {
			conds["id"] = *f.ID
		}
		if f.ContactID != nil {
			conds["contact_id"] = *f.ContactID
		}
		if f.TemplateUUID != nil {
			conds["template_uuid"] = *f.TemplateUUID
		}
		if f.PhoneNumber != nil {
			conds["phone_number"] = *f.PhoneNumber
		}
		if f.Status != nil {
			conds["status"] = string(*f.Status)
		}
		if len(conds) > 0 {
			db = db.Where(conds)
		}
		if f.CreatedAfter != nil {
			db = db.Where("created_at >= ?", *f.CreatedAfter)
		}
		if f.CreatedBefore != nil {
			db = db.Where("created_at < ?", *f.CreatedBefore)
		}
		return db
	}
}

func (r *SentSMSRepositoryImpl) ByFilter(ctx context.Context, filter models.SentSMSFilter, orderBy string, limit, offset int) ([]*models.SentSMS, error) {
	if orderBy == "" {
		orderBy = "id ASC"
	}
	query := r.getDB(ctx).Model(&models.SentSMS{}).Scopes(sentSMSScope(filter)).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	var rows []*models.SentSMS
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find sent sms by filter: %w", err)
	}
	return rows, nil
}

func (r *SentSMSRepositoryImpl) Count(ctx context.Context, filter models.SentSMSFilter) (int64, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.SentSMS{}).Scopes(sentSMSScope(filter)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sent sms: %w", err)
	}
	return count, nil
}

func (r *SentSMSRepositoryImpl) Exists(ctx context.Context, filter models.SentSMSFilter) (bool, error) {
	var probe models.SentSMS
	err := r.getDB(ctx).Model(&models.SentSMS{}).Scopes(sentSMSScope(filter)).Select("id").Limit(1).Take(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sent sms existence: %w", err)
	}
	return true, nil
}
