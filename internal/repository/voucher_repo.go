package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// NextSequence 分配某天的下一个凭证序号
//
// 【关键点】先插入当天的序列行（已存在则忽略），再 SELECT ... FOR UPDATE 锁住该行递增，
// 并发的凭证在这里串行，同一天的序号连续且不重复
func (r *VoucherRepository) NextSequence(ctx context.Context, tx *gorm.DB, seqDate string) (int, error) {
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "seq_date"}}, DoNothing: true}).
		Create(&model.VoucherSequence{SeqDate: seqDate}).Error
	if err != nil {
		return 0, err
	}

	var seq model.VoucherSequence
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seq_date = ?", seqDate).
		First(&seq).Error
	if err != nil {
		return 0, err
	}

	next := seq.LastSeq + 1
	err = tx.WithContext(ctx).
		Model(&model.VoucherSequence{}).
		Where("id = ?", seq.ID).
		Update("last_seq", next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Create 写入凭证及分录
func (r *VoucherRepository) Create(ctx context.Context, tx *gorm.DB, voucher *model.Voucher) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(voucher).Error
}

func (r *VoucherRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Voucher, error) {
	if tx == nil {
		tx = r.db
	}
	var voucher model.Voucher
	err := tx.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("id = ?", id).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

func (r *VoucherRepository) GetByNo(ctx context.Context, voucherNo string) (*model.Voucher, error) {
	var voucher model.Voucher
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("voucher_no = ?", voucherNo).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// GetByIDForUpdate 锁住凭证行，冲销和删除前使用
func (r *VoucherRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Voucher, error) {
	var voucher model.Voucher
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrVoucherNotFound
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("voucher_id = ?", id).Order("line_no ASC").Find(&voucher.Items).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// MarkReversed 登记冲销凭证，条件更新保证一张凭证只能被冲销一次
func (r *VoucherRepository) MarkReversed(ctx context.Context, tx *gorm.DB, id, reversedBy int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ? AND reversed_by IS NULL", id).
		Update("reversed_by", reversedBy)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrAlreadyReversed
	}
	return nil
}

// Delete 删除凭证及其分录
func (r *VoucherRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if err := tx.WithContext(ctx).Where("voucher_id = ?", id).Delete(&model.VoucherItem{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Voucher{}).Error
}

// VoucherFilter 凭证查询条件
type VoucherFilter struct {
	From       *time.Time
	To         *time.Time // 不含
	SourceType string
	SourceID   *int64
	Page       int
	PageSize   int
}

func (r *VoucherRepository) List(ctx context.Context, f VoucherFilter) ([]*model.Voucher, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Voucher{})
	if f.From != nil {
		query = query.Where("voucher_date >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("voucher_date < ?", *f.To)
	}
	if f.SourceType != "" {
		query = query.Where("source_type = ?", f.SourceType)
	}
	if f.SourceID != nil {
		query = query.Where("source_id = ?", *f.SourceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}

	var vouchers []*model.Voucher
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Order("voucher_date DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&vouchers).Error
	return vouchers, total, err
}

// PostedLine 报表读取的分录行
type PostedLine struct {
	SubjectCode string
	EntryType   model.EntryType
	Amount      decimal.Decimal
}

// LinesBetween 读取 [from, to) 内所有凭证的分录
// 金额在 Go 里用 decimal 汇总，不依赖数据库的 SUM 精度
func (r *VoucherRepository) LinesBetween(ctx context.Context, from, to time.Time) ([]PostedLine, error) {
	var lines []PostedLine
	err := r.db.WithContext(ctx).
		Table("voucher_item AS vi").
		Select("vi.subject_code AS subject_code, vi.entry_type AS entry_type, vi.amount AS amount").
		Joins("JOIN voucher AS v ON v.id = vi.voucher_id").
		Where("v.voucher_date >= ? AND v.voucher_date < ?", from, to).
		Scan(&lines).Error
	return lines, err
}
