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

var ErrOptimisticLock = errors.New("乐观锁冲突，请重试")

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) Create(ctx context.Context, tx *gorm.DB, student *model.Student) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(student).Error
}

func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

// GetByIDForUpdate 锁住学员行，同一学员的账务操作在这里串行
func (r *StudentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Student, error) {
	var student model.Student
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

// SaveLedger 写回账务字段
//
// 【关键点】行锁之外再带上 version 条件，行锁失效（例如数据库不支持 FOR UPDATE）时
// 仍能发现并发修改，而不是静默覆盖
func (r *StudentRepository) SaveLedger(ctx context.Context, tx *gorm.DB, s *model.Student) error {
	result := tx.WithContext(ctx).
		Model(&model.Student{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]interface{}{
			"discount_amount":   s.DiscountAmount,
			"actual_amount":     s.ActualAmount,
			"debt_amount":       s.DebtAmount,
			"account_balance":   s.AccountBalance,
			"payment_status":    s.PaymentStatus,
			"enrollment_status": s.EnrollmentStatus,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	s.Version++
	return nil
}

// CountNewStudentsByCoach 统计 [from, to) 内各教练名下的新报名学员数
func (r *StudentRepository) CountNewStudentsByCoach(ctx context.Context, tx *gorm.DB, from, to time.Time) (map[int64]int, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []struct {
		CoachID int64
		Cnt     int
	}
	err := tx.WithContext(ctx).
		Model(&model.Student{}).
		Select("coach_id, COUNT(*) AS cnt").
		Where("coach_id IS NOT NULL AND enroll_date >= ? AND enroll_date < ?", from, to).
		Where("enrollment_status NOT IN ?", []model.EnrollmentStatus{model.EnrollmentInquiring, model.EnrollmentReserved}).
		Group("coach_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int64]int, len(rows))
	for _, row := range rows {
		result[row.CoachID] = row.Cnt
	}
	return result, nil
}
