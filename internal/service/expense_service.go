package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpenseService 固定月度费用：配置 -> 按月生成应付 -> 确认支付过账
type ExpenseService struct {
	db          *gorm.DB
	log         *zap.Logger
	locker      lock.Locker
	subjects    *SubjectService
	vouchers    *VoucherService
	repo        *repository.ExpenseRepository
	subjectRepo *repository.SubjectRepository
}

func NewExpenseService(db *gorm.DB, log *zap.Logger, locker lock.Locker, subjects *SubjectService, vouchers *VoucherService) *ExpenseService {
	return &ExpenseService{
		db:          db,
		log:         log,
		locker:      locker,
		subjects:    subjects,
		vouchers:    vouchers,
		repo:        repository.NewExpenseRepository(db),
		subjectRepo: repository.NewSubjectRepository(db),
	}
}

// requireExpenseSubject 费用只能记到启用中的费用类科目
func requireExpenseSubject(ctx context.Context, repo *repository.SubjectRepository, code string) error {
	subject, err := repo.GetByCode(ctx, nil, code)
	if err != nil {
		return err
	}
	if subject.Type != model.SubjectTypeExpense {
		return errs.Validation("科目 %s 不是费用类科目", code)
	}
	if !subject.Active {
		return errs.ErrSubjectInactive.Wrap("%s", code)
	}
	return nil
}

type ExpenseConfigRequest struct {
	Name        string          `json:"name" binding:"required"`
	SubjectCode string          `json:"subject_code" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDay  int             `json:"payment_day" binding:"required"`
	Remarks     string          `json:"remarks"`
}

func (s *ExpenseService) CreateConfig(ctx context.Context, req *ExpenseConfigRequest) (*model.ExpenseConfig, error) {
	if req.Name == "" {
		return nil, errs.Validation("费用名称不能为空")
	}
	if err := requirePositive(req.Amount, "费用金额"); err != nil {
		return nil, err
	}
	if req.PaymentDay < 1 || req.PaymentDay > 31 {
		return nil, errs.Validation("付款日必须在 1-31 之间")
	}
	if err := requireExpenseSubject(ctx, s.subjectRepo, req.SubjectCode); err != nil {
		return nil, err
	}

	cfg := &model.ExpenseConfig{
		Name:        req.Name,
		SubjectCode: req.SubjectCode,
		Amount:      req.Amount,
		PaymentDay:  req.PaymentDay,
		Active:      true,
		Remarks:     req.Remarks,
	}
	if err := s.repo.CreateConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("保存费用配置失败: %w", err)
	}
	s.log.Info("新增固定费用配置", zap.Int64("id", cfg.ID), zap.String("name", cfg.Name))
	return cfg, nil
}

func (s *ExpenseService) ListConfigs(ctx context.Context, activeOnly bool) ([]*model.ExpenseConfig, error) {
	return s.repo.ListConfigs(ctx, nil, activeOnly)
}

// Generate 为启用中的配置生成当月应付，(config_id, month) 已存在的跳过
func (s *ExpenseService) Generate(ctx context.Context, month string) (int, error) {
	if _, _, err := model.ParseMonth(month); err != nil {
		return 0, errs.Validation("%s", err.Error())
	}

	var inserted int
	err := withLock(ctx, s.locker, lock.MonthKey("expense", month), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			configs, err := s.repo.ListConfigs(ctx, tx, true)
			if err != nil {
				return fmt.Errorf("查询费用配置失败: %w", err)
			}

			records := make([]*model.MonthlyExpense, 0, len(configs))
			for _, cfg := range configs {
				due, err := model.DueDate(month, cfg.PaymentDay)
				if err != nil {
					return err
				}
				records = append(records, &model.MonthlyExpense{
					ConfigID:     cfg.ID,
					ExpenseMonth: month,
					Name:         cfg.Name,
					SubjectCode:  cfg.SubjectCode,
					Amount:       cfg.Amount,
					DueDate:      due,
					Status:       model.ExpenseStatusPending,
				})
			}

			inserted, err = s.repo.CreateMonthlyIfAbsent(ctx, tx, records)
			if err != nil {
				return fmt.Errorf("生成月度费用失败: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("生成月度费用", zap.String("month", month), zap.Int("generated", inserted))
	return inserted, nil
}

func (s *ExpenseService) ListMonthly(ctx context.Context, month, status string) ([]*model.MonthlyExpense, error) {
	if month != "" {
		if _, _, err := model.ParseMonth(month); err != nil {
			return nil, errs.Validation("%s", err.Error())
		}
	}
	return s.repo.ListMonthly(ctx, month, status)
}

// ConfirmPayment 待付 -> 已付，借 费用科目，贷 费用付款科目
func (s *ExpenseService) ConfirmPayment(ctx context.Context, id int64, operator, method string) (*model.MonthlyExpense, error) {
	if err := requireOperator(operator); err != nil {
		return nil, err
	}

	var record *model.MonthlyExpense
	var voucherNo string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.GetMonthlyForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Status == model.ExpenseStatusPaid {
			return errs.ErrAlreadyPaid
		}

		credit, err := s.subjects.ResolveUsage(ctx, tx, model.UsageExpensePayout)
		if err != nil {
			return err
		}

		now := time.Now()
		summary := fmt.Sprintf("支付 %s %s", rec.ExpenseMonth, rec.Name)
		sourceID := rec.ID
		voucher, err := s.vouchers.Post(ctx, tx, &PostRequest{
			Date:        now,
			Description: summary,
			SourceType:  model.SourceExpensePayment,
			SourceID:    &sourceID,
			Creator:     operator,
			Items: []ItemRequest{
				{EntryType: model.EntryDebit, SubjectCode: rec.SubjectCode, Amount: rec.Amount, Summary: summary},
				{EntryType: model.EntryCredit, SubjectCode: credit, Amount: rec.Amount, Summary: summary},
			},
		})
		if err != nil {
			return err
		}

		rec.Status = model.ExpenseStatusPaid
		rec.PaidAt = &now
		rec.Operator = operator
		rec.PayMethod = method
		rec.VoucherID = &voucher.ID
		if err := s.repo.SaveMonthly(ctx, tx, rec); err != nil {
			return fmt.Errorf("更新费用状态失败: %w", err)
		}
		record = rec
		voucherNo = voucher.VoucherNo
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("月度费用支付成功",
		zap.Int64("id", id),
		zap.String("voucher_no", voucherNo),
		zap.String("amount", record.Amount.StringFixed(2)),
		zap.String("operator", operator),
	)
	return record, nil
}

// RevertPayment 冲销支付凭证，费用回到待付
func (s *ExpenseService) RevertPayment(ctx context.Context, id int64, operator string) (*model.MonthlyExpense, error) {
	if err := requireOperator(operator); err != nil {
		return nil, err
	}

	var record *model.MonthlyExpense
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.GetMonthlyForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Status != model.ExpenseStatusPaid {
			return errs.ErrNotPaid
		}

		if rec.VoucherID != nil {
			reason := fmt.Sprintf("撤销支付 %s %s", rec.ExpenseMonth, rec.Name)
			if _, err := s.vouchers.Reverse(ctx, tx, *rec.VoucherID, operator, reason); err != nil {
				return err
			}
		}

		rec.Status = model.ExpenseStatusPending
		rec.PaidAt = nil
		rec.PayMethod = ""
		rec.Operator = operator
		rec.VoucherID = nil
		if err := s.repo.SaveMonthly(ctx, tx, rec); err != nil {
			return fmt.Errorf("更新费用状态失败: %w", err)
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("撤销月度费用支付", zap.Int64("id", id), zap.String("operator", operator))
	return record, nil
}
