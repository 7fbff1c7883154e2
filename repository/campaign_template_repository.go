package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/homecare-hr/models"
	"gorm.io/gorm"
)

// CampaignTemplateRepositoryImpl implements CampaignTemplateRepository
type CampaignTemplateRepositoryImpl struct {
	*BaseRepository[models.CampaignTemplate, models.CampaignTemplateFilter]
}

func NewCampaignTemplateRepository(db *gorm.DB) CampaignTemplateRepository {
	return &CampaignTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignTemplate, models.CampaignTemplateFilter](db),
	}
}

// ListActiveByType returns active templates of the given channel ordered by id
func (r *CampaignTemplateRepositoryImpl) ListActiveByType(ctx context.Context, templateType models.TemplateType) ([]*models.CampaignTemplate, error) {
	active := true
	return r.ByFilter(ctx, models.CampaignTemplateFilter{Type: &templateType, IsActive: &active}, "id ASC", 0, 0)
}

func (r *CampaignTemplateRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignTemplateFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.IsActive != nil {
		if *f.IsActive {
			db = db.Where("is_active IS NOT FALSE")
		} else {
			db = db.Where("is_active = FALSE")
		}
	}
	if f.IntervalHours != nil {
		db = db.Where("interval_hours = ?", *f.IntervalHours)
	}
	return db
}

func (r *CampaignTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignTemplateFilter, orderBy string, limit, offset int) ([]*models.CampaignTemplate, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignTemplate{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaign templates by filter: %w", err)
	}
	return rows, nil
}

func (r *CampaignTemplateRepositoryImpl) Count(ctx context.Context, filter models.CampaignTemplateFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignTemplate{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignTemplateRepositoryImpl) Exists(ctx context.Context, filter models.CampaignTemplateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
