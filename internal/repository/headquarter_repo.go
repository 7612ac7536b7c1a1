package repository

import (
	"context"
	"errors"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"

	"gorm.io/gorm"
)

type HeadquarterRepository struct {
	db *gorm.DB
}

func NewHeadquarterRepository(db *gorm.DB) *HeadquarterRepository {
	return &HeadquarterRepository{db: db}
}

func (r *HeadquarterRepository) Create(ctx context.Context, cfg *model.HeadquarterConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// ListActive classTypeID 为空时查全局配置，否则查该班型的专属配置
func (r *HeadquarterRepository) ListActive(ctx context.Context, classTypeID *int64) ([]*model.HeadquarterConfig, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true)
	if classTypeID == nil {
		query = query.Where("class_type_id IS NULL")
	} else {
		query = query.Where("class_type_id = ?", *classTypeID)
	}
	var configs []*model.HeadquarterConfig
	err := query.Order("effective_date DESC, id DESC").Find(&configs).Error
	return configs, err
}

func (r *HeadquarterRepository) List(ctx context.Context) ([]*model.HeadquarterConfig, error) {
	var configs []*model.HeadquarterConfig
	err := r.db.WithContext(ctx).Order("id DESC").Find(&configs).Error
	return configs, err
}

func (r *HeadquarterRepository) Deactivate(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.HeadquarterConfig{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrHeadquarterNotFound
	}
	return nil
}

func (r *HeadquarterRepository) GetClassType(ctx context.Context, id int64) (*model.ClassType, error) {
	var ct model.ClassType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound.Wrap("班型 %d", id)
		}
		return nil, err
	}
	return &ct, nil
}
