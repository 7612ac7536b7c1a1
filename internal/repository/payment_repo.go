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

// PaymentRepository 缴费记录和优惠/退费记录
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PaymentRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *PaymentRepository) SetVoucher(ctx context.Context, tx *gorm.DB, id, voucherID int64) error {
	return tx.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("id = ?", id).
		Update("voucher_id", voucherID).Error
}

// MarkReversed 条件更新，同一条缴费记录只能冲销一次
func (r *PaymentRepository) MarkReversed(ctx context.Context, tx *gorm.DB, id, reversalVoucherID int64) error {
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("id = ? AND reversed = ?", id, false).
		Updates(map[string]interface{}{
			"reversed":            true,
			"reversed_at":         &now,
			"reversal_voucher_id": reversalVoucherID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrAlreadyReversed
	}
	return nil
}

func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("pay_date DESC, id DESC").
		Find(&records).Error
	return records, err
}

// ============================================================================
// 优惠 / 退费记录
// ============================================================================

func (r *PaymentRepository) CreateAdjustment(ctx context.Context, tx *gorm.DB, adj *model.TuitionAdjustment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(adj).Error
}

func (r *PaymentRepository) SetAdjustmentVoucher(ctx context.Context, tx *gorm.DB, id, voucherID int64) error {
	return tx.WithContext(ctx).
		Model(&model.TuitionAdjustment{}).
		Where("id = ?", id).
		Update("voucher_id", voucherID).Error
}

func (r *PaymentRepository) ListAdjustments(ctx context.Context, studentID int64) ([]*model.TuitionAdjustment, error) {
	var adjustments []*model.TuitionAdjustment
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id DESC").
		Find(&adjustments).Error
	return adjustments, err
}
