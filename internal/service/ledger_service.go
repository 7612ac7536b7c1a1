package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"
	"github.com/DT191220/YDJX-sub000/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 学员缴费台账
// ============================================================================
//
// 每个动作都是一个事务：锁学员行 -> 改金额 -> 重新推导状态 -> 过账 -> 写记录。
// 任何一步失败整体回滚，不会出现学员金额已改、凭证却没生成的情况。
//
//	收款   actual += amount，重新推导
//	优惠   actual -= amount，重新推导
//	退费   actual -= amount，强制置为退费（终态）
//	删收款 actual -= record.amount，重新推导，冲销原凭证
//
// ============================================================================

type LedgerService struct {
	db          *gorm.DB
	log         *zap.Logger
	locker      lock.Locker
	subjects    *SubjectService
	vouchers    *VoucherService
	studentRepo *repository.StudentRepository
	paymentRepo *repository.PaymentRepository
}

func NewLedgerService(db *gorm.DB, log *zap.Logger, locker lock.Locker, subjects *SubjectService, vouchers *VoucherService) *LedgerService {
	return &LedgerService{
		db:          db,
		log:         log,
		locker:      locker,
		subjects:    subjects,
		vouchers:    vouchers,
		studentRepo: repository.NewStudentRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
	}
}

type PaymentRequest struct {
	StudentID int64           `json:"student_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Date      string          `json:"date"` // YYYY-MM-DD，为空取当天
	Method    string          `json:"method" binding:"required"`
	Operator  string          `json:"operator"`
	Notes     string          `json:"notes"`
}

type AdjustmentRequest struct {
	StudentID int64           `json:"student_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Operator  string          `json:"operator"`
	Notes     string          `json:"notes"`
}

var payMethods = map[string]string{
	model.PayMethodCash:   model.UsageReceiptCash,
	model.PayMethodBank:   model.UsageReceiptBank,
	model.PayMethodWechat: model.UsageReceiptBank,
	model.PayMethodAlipay: model.UsageReceiptBank,
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return dateOnly(time.Now()), nil
	}
	d, err := time.ParseInLocation(model.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errs.Validation("日期格式应为 YYYY-MM-DD: %s", s)
	}
	return d, nil
}

// AddPayment 学费收款
func (s *LedgerService) AddPayment(ctx context.Context, req *PaymentRequest) (*model.PaymentRecord, error) {
	if err := requirePositive(req.Amount, "收款金额"); err != nil {
		return nil, err
	}
	if err := requireOperator(req.Operator); err != nil {
		return nil, err
	}
	debitUsage, ok := payMethods[req.Method]
	if !ok {
		return nil, errs.Validation("不支持的收款方式: %s", req.Method)
	}
	payDate, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	var record *model.PaymentRecord
	var voucherNo string
	err = withLock(ctx, s.locker, lock.StudentKey(req.StudentID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			student, err := s.studentRepo.GetByIDForUpdate(ctx, tx, req.StudentID)
			if err != nil {
				return err
			}

			student.ActualAmount = student.ActualAmount.Add(req.Amount)
			student.Rederive()

			record = &model.PaymentRecord{
				ReceiptNo: idgen.GenerateReceiptNo(),
				StudentID: student.ID,
				Amount:    req.Amount,
				PayDate:   payDate,
				Method:    req.Method,
				Operator:  req.Operator,
				Notes:     req.Notes,
			}
			if err := s.paymentRepo.Create(ctx, tx, record); err != nil {
				return fmt.Errorf("创建缴费记录失败: %w", err)
			}

			voucher, err := s.postTuition(ctx, tx, postTuitionArgs{
				date:        payDate,
				source:      model.SourceTuitionPayment,
				sourceID:    record.ID,
				debitUsage:  debitUsage,
				creditUsage: model.UsageTuitionIncome,
				amount:      req.Amount,
				operator:    req.Operator,
				summary:     fmt.Sprintf("收取学员 %s 学费", student.Name),
			})
			if err != nil {
				return err
			}
			record.VoucherID = voucher.ID
			voucherNo = voucher.VoucherNo
			if err := s.paymentRepo.SetVoucher(ctx, tx, record.ID, voucher.ID); err != nil {
				return fmt.Errorf("回写凭证失败: %w", err)
			}

			return s.studentRepo.SaveLedger(ctx, tx, student)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("学费收款成功",
		zap.Int64("student_id", req.StudentID),
		zap.String("receipt_no", record.ReceiptNo),
		zap.String("voucher_no", voucherNo),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return record, nil
}

// Discount 学费优惠，优惠金额从已收中扣减并重新推导状态
func (s *LedgerService) Discount(ctx context.Context, req *AdjustmentRequest) (*model.TuitionAdjustment, error) {
	if err := requirePositive(req.Amount, "优惠金额"); err != nil {
		return nil, err
	}
	if err := requireOperator(req.Operator); err != nil {
		return nil, err
	}

	var adj *model.TuitionAdjustment
	err := withLock(ctx, s.locker, lock.StudentKey(req.StudentID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			student, err := s.studentRepo.GetByIDForUpdate(ctx, tx, req.StudentID)
			if err != nil {
				return err
			}
			if req.Amount.GreaterThan(student.ActualAmount) {
				return errs.ErrExceedsReceivable.Wrap("优惠 %s，已收 %s", req.Amount.StringFixed(2), student.ActualAmount.StringFixed(2))
			}

			student.ActualAmount = student.ActualAmount.Sub(req.Amount)
			student.Rederive()

			adj, err = s.recordAdjustment(ctx, tx, student, model.AdjustmentDiscount, req, postTuitionArgs{
				source:      model.SourceTuitionDiscount,
				debitUsage:  model.UsageTuitionIncome,
				creditUsage: model.UsageTuitionDiscount,
				summary:     fmt.Sprintf("学员 %s 学费优惠", student.Name),
			})
			if err != nil {
				return err
			}
			return s.studentRepo.SaveLedger(ctx, tx, student)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("学费优惠成功",
		zap.Int64("student_id", req.StudentID),
		zap.String("adjustment_no", adj.AdjustmentNo),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return adj, nil
}

// Refund 退费，不论剩余实收多少都强制置为退费状态
func (s *LedgerService) Refund(ctx context.Context, req *AdjustmentRequest) (*model.TuitionAdjustment, error) {
	if err := requirePositive(req.Amount, "退费金额"); err != nil {
		return nil, err
	}
	if err := requireOperator(req.Operator); err != nil {
		return nil, err
	}

	var adj *model.TuitionAdjustment
	err := withLock(ctx, s.locker, lock.StudentKey(req.StudentID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			student, err := s.studentRepo.GetByIDForUpdate(ctx, tx, req.StudentID)
			if err != nil {
				return err
			}
			if student.PaymentStatus == model.PaymentRefunded && !student.ActualAmount.IsPositive() {
				return errs.ErrAlreadyRefunded
			}
			if req.Amount.GreaterThan(student.ActualAmount) {
				return errs.ErrExceedsReceivable.Wrap("退费 %s，已收 %s", req.Amount.StringFixed(2), student.ActualAmount.StringFixed(2))
			}

			student.ActualAmount = student.ActualAmount.Sub(req.Amount)
			student.MarkRefunded()

			adj, err = s.recordAdjustment(ctx, tx, student, model.AdjustmentRefund, req, postTuitionArgs{
				source:      model.SourcePaymentReversal,
				debitUsage:  model.UsageTuitionIncome,
				creditUsage: model.UsageRefundPayout,
				summary:     fmt.Sprintf("学员 %s 退费", student.Name),
			})
			if err != nil {
				return err
			}
			return s.studentRepo.SaveLedger(ctx, tx, student)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("学员退费成功",
		zap.Int64("student_id", req.StudentID),
		zap.String("adjustment_no", adj.AdjustmentNo),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return adj, nil
}

// DeletePaymentRecord 删除缴费记录：冲销原凭证，回滚学员金额并重新推导
func (s *LedgerService) DeletePaymentRecord(ctx context.Context, recordID int64, operator string) error {
	if err := requireOperator(operator); err != nil {
		return err
	}

	existing, err := s.paymentRepo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	studentID := existing.StudentID

	var reversalNo string
	err = withLock(ctx, s.locker, lock.StudentKey(studentID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			student, err := s.studentRepo.GetByIDForUpdate(ctx, tx, studentID)
			if err != nil {
				return err
			}
			record, err := s.paymentRepo.GetByIDForUpdate(ctx, tx, recordID)
			if err != nil {
				return err
			}
			if record.Reversed {
				return errs.ErrAlreadyReversed.Wrap("收据 %s", record.ReceiptNo)
			}
			// 已被退费或优惠消耗的收款不能再冲回
			if record.Amount.GreaterThan(student.ActualAmount) {
				return errs.ErrExceedsReceivable.Wrap("收据 %s 金额 %s，已收 %s",
					record.ReceiptNo, record.Amount.StringFixed(2), student.ActualAmount.StringFixed(2))
			}

			student.ActualAmount = student.ActualAmount.Sub(record.Amount)
			student.Rederive()

			reversal, err := s.vouchers.Reverse(ctx, tx, record.VoucherID, operator, "删除缴费记录 "+record.ReceiptNo)
			if err != nil {
				return err
			}
			reversalNo = reversal.VoucherNo
			if err := s.paymentRepo.MarkReversed(ctx, tx, record.ID, reversal.ID); err != nil {
				return err
			}
			return s.studentRepo.SaveLedger(ctx, tx, student)
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("删除缴费记录",
		zap.Int64("student_id", studentID),
		zap.Int64("record_id", recordID),
		zap.String("reversal_no", reversalNo),
		zap.String("operator", operator),
	)
	return nil
}

type postTuitionArgs struct {
	date        time.Time
	source      model.SourceType
	sourceID    int64
	debitUsage  string
	creditUsage string
	amount      decimal.Decimal
	operator    string
	summary     string
}

// postTuition 按用途解析科目后过一借一贷的凭证
func (s *LedgerService) postTuition(ctx context.Context, tx *gorm.DB, a postTuitionArgs) (*model.Voucher, error) {
	debit, err := s.subjects.ResolveUsage(ctx, tx, a.debitUsage)
	if err != nil {
		return nil, err
	}
	credit, err := s.subjects.ResolveUsage(ctx, tx, a.creditUsage)
	if err != nil {
		return nil, err
	}
	sourceID := a.sourceID
	return s.vouchers.Post(ctx, tx, &PostRequest{
		Date:        a.date,
		Description: a.summary,
		SourceType:  a.source,
		SourceID:    &sourceID,
		Creator:     a.operator,
		Items: []ItemRequest{
			{EntryType: model.EntryDebit, SubjectCode: debit, Amount: a.amount, Summary: a.summary},
			{EntryType: model.EntryCredit, SubjectCode: credit, Amount: a.amount, Summary: a.summary},
		},
	})
}

func (s *LedgerService) recordAdjustment(ctx context.Context, tx *gorm.DB, student *model.Student, kind string, req *AdjustmentRequest, a postTuitionArgs) (*model.TuitionAdjustment, error) {
	adj := &model.TuitionAdjustment{
		AdjustmentNo: idgen.GenerateAdjustmentNo(),
		StudentID:    student.ID,
		Type:         kind,
		Amount:       req.Amount,
		Operator:     req.Operator,
		Notes:        req.Notes,
	}
	if err := s.paymentRepo.CreateAdjustment(ctx, tx, adj); err != nil {
		return nil, fmt.Errorf("创建调整记录失败: %w", err)
	}

	a.date = time.Now()
	a.sourceID = adj.ID
	a.amount = req.Amount
	a.operator = req.Operator
	voucher, err := s.postTuition(ctx, tx, a)
	if err != nil {
		return nil, err
	}
	adj.VoucherID = voucher.ID
	if err := s.paymentRepo.SetAdjustmentVoucher(ctx, tx, adj.ID, voucher.ID); err != nil {
		return nil, fmt.Errorf("回写凭证失败: %w", err)
	}
	return adj, nil
}

// ============================================================================
// 查询
// ============================================================================

func (s *LedgerService) GetState(ctx context.Context, studentID int64) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, studentID)
}

func (s *LedgerService) ListPayments(ctx context.Context, studentID int64) ([]*model.PaymentRecord, error) {
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListByStudent(ctx, studentID)
}

func (s *LedgerService) ListAdjustments(ctx context.Context, studentID int64) ([]*model.TuitionAdjustment, error) {
	return s.paymentRepo.ListAdjustments(ctx, studentID)
}
