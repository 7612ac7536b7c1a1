package repository

import (
	"context"
	"errors"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpenseRepository 固定月度费用、年度费用分摊
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) CreateConfig(ctx context.Context, cfg *model.ExpenseConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *ExpenseRepository) ListConfigs(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*model.ExpenseConfig, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Model(&model.ExpenseConfig{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var configs []*model.ExpenseConfig
	err := query.Order("id ASC").Find(&configs).Error
	return configs, err
}

// CreateMonthlyIfAbsent (config_id, expense_month) 已存在时跳过，返回实际插入条数
func (r *ExpenseRepository) CreateMonthlyIfAbsent(ctx context.Context, tx *gorm.DB, records []*model.MonthlyExpense) (int, error) {
	inserted := 0
	for _, rec := range records {
		result := tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "config_id"}, {Name: "expense_month"}},
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

func (r *ExpenseRepository) GetMonthlyForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.MonthlyExpense, error) {
	var record model.MonthlyExpense
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrExpenseNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *ExpenseRepository) SaveMonthly(ctx context.Context, tx *gorm.DB, record *model.MonthlyExpense) error {
	return tx.WithContext(ctx).Save(record).Error
}

func (r *ExpenseRepository) ListMonthly(ctx context.Context, month, status string) ([]*model.MonthlyExpense, error) {
	query := r.db.WithContext(ctx).Model(&model.MonthlyExpense{})
	if month != "" {
		query = query.Where("expense_month = ?", month)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var records []*model.MonthlyExpense
	err := query.Order("due_date ASC, id ASC").Find(&records).Error
	return records, err
}

// ============================================================================
// 年度费用分摊
// ============================================================================

func (r *ExpenseRepository) CreateAllocation(ctx context.Context, a *model.ExpenseAllocation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ExpenseRepository) ListAllocations(ctx context.Context, year int) ([]*model.ExpenseAllocation, error) {
	query := r.db.WithContext(ctx).Model(&model.ExpenseAllocation{})
	if year > 0 {
		query = query.Where("allocation_year = ?", year)
	}
	var allocations []*model.ExpenseAllocation
	err := query.Order("start_month ASC, id ASC").Find(&allocations).Error
	return allocations, err
}

func (r *ExpenseRepository) DeleteAllocation(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ExpenseAllocation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrAllocationNotFound
	}
	return nil
}
