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

// SalaryService 教练月工资
//
// 派生字段（通过人数、提成、新招人数、基本工资、应发）只由 Generate / Refresh 计算，
// 人工字段（出勤、奖金、扣款、实发、备注）只由 Update 修改，两者互不覆盖。
// 已发放的工资单不可再修改、刷新或删除。
type SalaryService struct {
	db          *gorm.DB
	log         *zap.Logger
	locker      lock.Locker
	subjects    *SubjectService
	vouchers    *VoucherService
	repo        *repository.SalaryRepository
	studentRepo *repository.StudentRepository
}

func NewSalaryService(db *gorm.DB, log *zap.Logger, locker lock.Locker, subjects *SubjectService, vouchers *VoucherService) *SalaryService {
	return &SalaryService{
		db:          db,
		log:         log,
		locker:      locker,
		subjects:    subjects,
		vouchers:    vouchers,
		repo:        repository.NewSalaryRepository(db),
		studentRepo: repository.NewStudentRepository(db),
	}
}

// monthCounts 汇总某月各教练的考试通过人数和新招学员数
func (s *SalaryService) monthCounts(ctx context.Context, tx *gorm.DB, first time.Time) (map[int64]model.SalaryCounts, error) {
	next := first.AddDate(0, 1, 0)
	counts, err := s.repo.PassCountsByCoach(ctx, tx, first, next)
	if err != nil {
		return nil, fmt.Errorf("统计考试通过人数失败: %w", err)
	}
	recruits, err := s.studentRepo.CountNewStudentsByCoach(ctx, tx, first, next)
	if err != nil {
		return nil, fmt.Errorf("统计新招学员失败: %w", err)
	}
	for coachID, n := range recruits {
		c := counts[coachID]
		c.NewStudents = n
		counts[coachID] = c
	}
	return counts, nil
}

// Generate 为当月还没有工资单的在职教练生成草稿，重复调用不会重复生成
func (s *SalaryService) Generate(ctx context.Context, month string) (int, error) {
	first, last, err := model.ParseMonth(month)
	if err != nil {
		return 0, errs.Validation("%s", err.Error())
	}

	var inserted int
	err = withLock(ctx, s.locker, lock.MonthKey("salary", month), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			cfg, err := s.repo.EffectiveConfig(ctx, tx, last)
			if err != nil {
				return err
			}
			coaches, err := s.repo.ListActiveCoaches(ctx, tx)
			if err != nil {
				return fmt.Errorf("查询教练失败: %w", err)
			}
			counts, err := s.monthCounts(ctx, tx, first)
			if err != nil {
				return err
			}

			records := make([]*model.CoachMonthlySalary, 0, len(coaches))
			for _, coach := range coaches {
				rec := &model.CoachMonthlySalary{
					CoachID:     coach.ID,
					SalaryMonth: month,
					Status:      model.SalaryStatusDraft,
				}
				rec.ApplyDerived(cfg, counts[coach.ID])
				records = append(records, rec)
			}

			inserted, err = s.repo.CreateIfAbsent(ctx, tx, records)
			if err != nil {
				return fmt.Errorf("生成工资单失败: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("生成教练工资单", zap.String("month", month), zap.Int("generated", inserted))
	return inserted, nil
}

// Refresh 重算当月未发放工资单的派生字段，人工字段保持不变
func (s *SalaryService) Refresh(ctx context.Context, month string) (int, error) {
	first, last, err := model.ParseMonth(month)
	if err != nil {
		return 0, errs.Validation("%s", err.Error())
	}

	var refreshed int
	err = withLock(ctx, s.locker, lock.MonthKey("salary", month), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			cfg, err := s.repo.EffectiveConfig(ctx, tx, last)
			if err != nil {
				return err
			}
			records, err := s.repo.ListUnpaidForUpdate(ctx, tx, month)
			if err != nil {
				return fmt.Errorf("查询工资单失败: %w", err)
			}
			counts, err := s.monthCounts(ctx, tx, first)
			if err != nil {
				return err
			}
			for _, rec := range records {
				rec.ApplyDerived(cfg, counts[rec.CoachID])
				if err := s.repo.Save(ctx, tx, rec); err != nil {
					return fmt.Errorf("更新工资单失败: %w", err)
				}
			}
			refreshed = len(records)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("刷新教练工资单", zap.String("month", month), zap.Int("refreshed", refreshed))
	return refreshed, nil
}

// UpdateSalaryRequest 人工字段，nil 表示不修改
type UpdateSalaryRequest struct {
	AttendanceDays  *int             `json:"attendance_days"`
	Bonus           *decimal.Decimal `json:"bonus"`
	Deduction       *decimal.Decimal `json:"deduction"`
	DeductionReason *string          `json:"deduction_reason"`
	NetSalary       *decimal.Decimal `json:"net_salary"`
	ClearNetSalary  bool             `json:"clear_net_salary"`
	Status          string           `json:"status"`
	Remarks         *string          `json:"remarks"`
}

// Update 修改人工字段并按需推进状态；推进到已发放时过账
func (s *SalaryService) Update(ctx context.Context, id int64, req *UpdateSalaryRequest, operator string) (*model.CoachMonthlySalary, error) {
	if err := requireOperator(operator); err != nil {
		return nil, err
	}

	var record *model.CoachMonthlySalary
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Status == model.SalaryStatusPaid {
			return errs.ErrImmutablePaidRecord
		}

		if err := s.applyManual(ctx, tx, rec, req); err != nil {
			return err
		}

		if req.Status != "" && req.Status != rec.Status {
			if !model.CanSalaryTransitionTo(rec.Status, req.Status) {
				return errs.ErrStatusTransition.Wrap("%s -> %s", rec.Status, req.Status)
			}
			rec.Status = req.Status
			if rec.Status == model.SalaryStatusPaid {
				if err := s.postPayment(ctx, tx, rec, operator); err != nil {
					return err
				}
			}
		}

		if err := s.repo.Save(ctx, tx, rec); err != nil {
			return fmt.Errorf("更新工资单失败: %w", err)
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("更新教练工资单",
		zap.Int64("id", id),
		zap.Int64("coach_id", record.CoachID),
		zap.String("status", record.Status),
		zap.String("operator", operator),
	)
	return record, nil
}

func (s *SalaryService) applyManual(ctx context.Context, tx *gorm.DB, rec *model.CoachMonthlySalary, req *UpdateSalaryRequest) error {
	if req.Bonus != nil {
		if err := requireNonNegative(*req.Bonus, "奖金"); err != nil {
			return err
		}
		rec.Bonus = *req.Bonus
	}
	if req.Deduction != nil {
		if err := requireNonNegative(*req.Deduction, "扣款"); err != nil {
			return err
		}
		rec.Deduction = *req.Deduction
	}
	if req.DeductionReason != nil {
		rec.DeductionReason = *req.DeductionReason
	}
	if rec.Deduction.IsPositive() && rec.DeductionReason == "" {
		return errs.ErrDeductionReasonRequired
	}
	if req.ClearNetSalary {
		rec.NetSalary = nil
	} else if req.NetSalary != nil {
		if err := requireNonNegative(*req.NetSalary, "实发工资"); err != nil {
			return err
		}
		net := *req.NetSalary
		rec.NetSalary = &net
	}
	if req.Remarks != nil {
		rec.Remarks = *req.Remarks
	}

	if req.AttendanceDays != nil {
		if *req.AttendanceDays < 0 || *req.AttendanceDays > 31 {
			return errs.Validation("出勤天数必须在 0-31 之间")
		}
		rec.AttendanceDays = *req.AttendanceDays
		_, last, err := model.ParseMonth(rec.SalaryMonth)
		if err != nil {
			return err
		}
		cfg, err := s.repo.EffectiveConfig(ctx, tx, last)
		if err != nil {
			return err
		}
		rec.ApplyBase(cfg)
		return nil
	}
	rec.Recalculate()
	return nil
}

// postPayment 工资发放凭证：借 教练工资费用，贷 工资发放付款
func (s *SalaryService) postPayment(ctx context.Context, tx *gorm.DB, rec *model.CoachMonthlySalary, operator string) error {
	now := time.Now()
	rec.PaidAt = &now

	amount := rec.PayableAmount()
	if !amount.IsPositive() {
		return nil
	}

	debit, err := s.subjects.ResolveUsage(ctx, tx, model.UsageSalaryExpense)
	if err != nil {
		return err
	}
	credit, err := s.subjects.ResolveUsage(ctx, tx, model.UsageSalaryPayout)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("发放教练 %d %s 工资", rec.CoachID, rec.SalaryMonth)
	sourceID := rec.ID
	voucher, err := s.vouchers.Post(ctx, tx, &PostRequest{
		Date:        now,
		Description: summary,
		SourceType:  model.SourceCoachSalary,
		SourceID:    &sourceID,
		Creator:     operator,
		Items: []ItemRequest{
			{EntryType: model.EntryDebit, SubjectCode: debit, Amount: amount, Summary: summary},
			{EntryType: model.EntryCredit, SubjectCode: credit, Amount: amount, Summary: summary},
		},
	})
	if err != nil {
		return err
	}
	rec.VoucherID = &voucher.ID
	return nil
}

// Confirm 草稿 -> 已确认
func (s *SalaryService) Confirm(ctx context.Context, id int64, operator string) (*model.CoachMonthlySalary, error) {
	return s.Update(ctx, id, &UpdateSalaryRequest{Status: model.SalaryStatusConfirmed}, operator)
}

// ConfirmPayment 已确认 -> 已发放
func (s *SalaryService) ConfirmPayment(ctx context.Context, id int64, operator string) (*model.CoachMonthlySalary, error) {
	return s.Update(ctx, id, &UpdateSalaryRequest{Status: model.SalaryStatusPaid}, operator)
}

// BatchDelete 删除当月草稿和已确认的工资单，已发放的保留
func (s *SalaryService) BatchDelete(ctx context.Context, month string) (int, error) {
	if _, _, err := model.ParseMonth(month); err != nil {
		return 0, errs.Validation("%s", err.Error())
	}

	var deleted int
	err := withLock(ctx, s.locker, lock.MonthKey("salary", month), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			n, err := s.repo.DeleteUnpaid(ctx, tx, month)
			if err != nil {
				return fmt.Errorf("删除工资单失败: %w", err)
			}
			deleted = n
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("批量删除教练工资单", zap.String("month", month), zap.Int("deleted", deleted))
	return deleted, nil
}

func (s *SalaryService) List(ctx context.Context, month string) ([]*model.CoachMonthlySalary, error) {
	if _, _, err := model.ParseMonth(month); err != nil {
		return nil, errs.Validation("%s", err.Error())
	}
	return s.repo.ListByMonth(ctx, nil, month)
}

// ============================================================================
// 工资标准
// ============================================================================

type SalaryConfigRequest struct {
	EffectiveDate   string          `json:"effective_date" binding:"required"`
	DailyWage       decimal.Decimal `json:"daily_wage"`
	Subject2Rate    decimal.Decimal `json:"subject2_rate"`
	Subject3Rate    decimal.Decimal `json:"subject3_rate"`
	RecruitmentRate decimal.Decimal `json:"recruitment_rate"`
}

func (s *SalaryService) CreateConfig(ctx context.Context, req *SalaryConfigRequest) (*model.SalaryConfig, error) {
	date, err := time.ParseInLocation(model.DateLayout, req.EffectiveDate, time.Local)
	if err != nil {
		return nil, errs.Validation("生效日期格式应为 YYYY-MM-DD")
	}
	// 按固定顺序校验，报错信息稳定
	for _, field := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"日工资", req.DailyWage},
		{"科目二提成", req.Subject2Rate},
		{"科目三提成", req.Subject3Rate},
		{"招生提成", req.RecruitmentRate},
	} {
		if err := requireNonNegative(field.value, field.name); err != nil {
			return nil, err
		}
	}

	cfg := &model.SalaryConfig{
		EffectiveDate:   date,
		DailyWage:       req.DailyWage,
		Subject2Rate:    req.Subject2Rate,
		Subject3Rate:    req.Subject3Rate,
		RecruitmentRate: req.RecruitmentRate,
	}
	if err := s.repo.CreateConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("保存工资标准失败: %w", err)
	}
	s.log.Info("新增教练工资标准", zap.String("effective_date", req.EffectiveDate))
	return cfg, nil
}
