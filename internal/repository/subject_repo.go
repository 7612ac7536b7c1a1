package repository

import (
	"context"
	"errors"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, tx *gorm.DB, subject *model.Subject) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(subject).Error
}

func (r *SubjectRepository) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Subject, error) {
	if tx == nil {
		tx = r.db
	}
	var subject model.Subject
	err := tx.WithContext(ctx).Where("code = ?", code).First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSubjectNotFound.Wrap("%s", code)
		}
		return nil, err
	}
	return &subject, nil
}

// GetByCodes 批量查询，返回 code -> 科目
func (r *SubjectRepository) GetByCodes(ctx context.Context, tx *gorm.DB, codes []string) (map[string]*model.Subject, error) {
	if tx == nil {
		tx = r.db
	}
	var subjects []*model.Subject
	if err := tx.WithContext(ctx).Where("code IN ?", codes).Find(&subjects).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*model.Subject, len(subjects))
	for _, s := range subjects {
		result[s.Code] = s
	}
	return result, nil
}

func (r *SubjectRepository) List(ctx context.Context, subjectType string, activeOnly bool) ([]*model.Subject, error) {
	query := r.db.WithContext(ctx).Model(&model.Subject{})
	if subjectType != "" {
		query = query.Where("type = ?", subjectType)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var subjects []*model.Subject
	err := query.Order("code ASC").Find(&subjects).Error
	return subjects, err
}

// CodesByType 按科目类别返回 code -> 科目，报表用
func (r *SubjectRepository) CodesByType(ctx context.Context, subjectType model.SubjectType) (map[string]*model.Subject, error) {
	var subjects []*model.Subject
	if err := r.db.WithContext(ctx).Where("type = ?", subjectType).Find(&subjects).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*model.Subject, len(subjects))
	for _, s := range subjects {
		result[s.Code] = s
	}
	return result, nil
}

func (r *SubjectRepository) Update(ctx context.Context, tx *gorm.DB, code string, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Model(&model.Subject{}).Where("code = ?", code).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrSubjectNotFound.Wrap("%s", code)
	}
	return nil
}

func (r *SubjectRepository) Delete(ctx context.Context, tx *gorm.DB, code string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("code = ?", code).Delete(&model.Subject{}).Error
}

// IsReferenced 科目是否已被凭证分录引用
func (r *SubjectRepository) IsReferenced(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).Model(&model.VoucherItem{}).Where("subject_code = ?", code).Count(&count).Error
	return count > 0, err
}

// ============================================================================
// 用途映射
// ============================================================================

func (r *SubjectRepository) GetUsage(ctx context.Context, tx *gorm.DB, usage string) (*model.UsageMapping, error) {
	if tx == nil {
		tx = r.db
	}
	var m model.UsageMapping
	err := tx.WithContext(ctx).Where("usage_code = ?", usage).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUsageNotFound.Wrap("%s", usage)
		}
		return nil, err
	}
	return &m, nil
}

// UpsertUsage 用途存在则改映射，不存在则新增
func (r *SubjectRepository) UpsertUsage(ctx context.Context, tx *gorm.DB, m *model.UsageMapping) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "usage_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"subject_code", "description", "updated_at"}),
		}).
		Create(m).Error
}

func (r *SubjectRepository) ListUsages(ctx context.Context) ([]*model.UsageMapping, error) {
	var usages []*model.UsageMapping
	err := r.db.WithContext(ctx).Order("usage_code ASC").Find(&usages).Error
	return usages, err
}
