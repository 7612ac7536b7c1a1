package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SalaryRepository struct {
	db *gorm.DB
}

func NewSalaryRepository(db *gorm.DB) *SalaryRepository {
	return &SalaryRepository{db: db}
}

func (r *SalaryRepository) ListActiveCoaches(ctx context.Context, tx *gorm.DB) ([]*model.Coach, error) {
	if tx == nil {
		tx = r.db
	}
	var coaches []*model.Coach
	err := tx.WithContext(ctx).
		Where("status = ?", model.CoachStatusActive).
		Order("id ASC").
		Find(&coaches).Error
	return coaches, err
}

// EffectiveConfig 取生效日期不晚于 date 的最近一条工资标准
func (r *SalaryRepository) EffectiveConfig(ctx context.Context, tx *gorm.DB, date time.Time) (*model.SalaryConfig, error) {
	if tx == nil {
		tx = r.db
	}
	var cfg model.SalaryConfig
	err := tx.WithContext(ctx).
		Where("effective_date <= ?", date).
		Order("effective_date DESC, id DESC").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSalaryConfigMissing.Wrap("%s", date.Format(model.DateLayout))
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *SalaryRepository) CreateConfig(ctx context.Context, cfg *model.SalaryConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// PassCountsByCoach 统计 [from, to) 内各教练科目二、科目三通过人数
func (r *SalaryRepository) PassCountsByCoach(ctx context.Context, tx *gorm.DB, from, to time.Time) (map[int64]model.SalaryCounts, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []struct {
		CoachID int64
		Subject int
		Cnt     int
	}
	err := tx.WithContext(ctx).
		Model(&model.ExamResult{}).
		Select("coach_id, subject, COUNT(*) AS cnt").
		Where("result = ? AND exam_date >= ? AND exam_date < ?", model.ExamResultPass, from, to).
		Where("subject IN ?", []int{model.ExamSubject2, model.ExamSubject3}).
		Group("coach_id, subject").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[int64]model.SalaryCounts)
	for _, row := range rows {
		c := result[row.CoachID]
		if row.Subject == model.ExamSubject2 {
			c.Subject2Pass = row.Cnt
		} else {
			c.Subject3Pass = row.Cnt
		}
		result[row.CoachID] = c
	}
	return result, nil
}

// CreateIfAbsent 批量插入，(coach_id, salary_month) 已存在的静默跳过，返回实际插入条数
func (r *SalaryRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, records []*model.CoachMonthlySalary) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if tx == nil {
		tx = r.db
	}
	inserted := 0
	for _, rec := range records {
		result := tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "coach_id"}, {Name: "salary_month"}},
				DoNothing: true,
			}).
			Create(rec)
		if result.Error != nil {
			return inserted, result.Error
		}
		inserted += int(result.RowsAffected)
	}
	return inserted, nil
}

func (r *SalaryRepository) ListByMonth(ctx context.Context, tx *gorm.DB, month string) ([]*model.CoachMonthlySalary, error) {
	if tx == nil {
		tx = r.db
	}
	var records []*model.CoachMonthlySalary
	err := tx.WithContext(ctx).
		Where("salary_month = ?", month).
		Order("coach_id ASC").
		Find(&records).Error
	return records, err
}

// ListUnpaidForUpdate 锁住某月全部未发放的工资单
func (r *SalaryRepository) ListUnpaidForUpdate(ctx context.Context, tx *gorm.DB, month string) ([]*model.CoachMonthlySalary, error) {
	var records []*model.CoachMonthlySalary
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("salary_month = ? AND status <> ?", month, model.SalaryStatusPaid).
		Order("coach_id ASC").
		Find(&records).Error
	return records, err
}

func (r *SalaryRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.CoachMonthlySalary, error) {
	var record model.CoachMonthlySalary
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSalaryNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *SalaryRepository) Save(ctx context.Context, tx *gorm.DB, record *model.CoachMonthlySalary) error {
	return tx.WithContext(ctx).Save(record).Error
}

// DeleteUnpaid 删除某月草稿和已确认的工资单，已发放的保留
func (r *SalaryRepository) DeleteUnpaid(ctx context.Context, tx *gorm.DB, month string) (int, error) {
	result := tx.WithContext(ctx).
		Where("salary_month = ? AND status IN ?", month, []string{model.SalaryStatusDraft, model.SalaryStatusConfirmed}).
		Delete(&model.CoachMonthlySalary{})
	return int(result.RowsAffected), result.Error
}
