package service

import (
	"context"
	"fmt"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AllocationService 年度费用分摊，只影响利润报表，不过账
type AllocationService struct {
	log         *zap.Logger
	repo        *repository.ExpenseRepository
	subjectRepo *repository.SubjectRepository
}

func NewAllocationService(db *gorm.DB, log *zap.Logger) *AllocationService {
	return &AllocationService{
		log:         log,
		repo:        repository.NewExpenseRepository(db),
		subjectRepo: repository.NewSubjectRepository(db),
	}
}

type AllocationRequest struct {
	ExpenseName    string          `json:"expense_name" binding:"required"`
	SubjectCode    string          `json:"subject_code" binding:"required"`
	TotalAmount    decimal.Decimal `json:"total_amount" binding:"required"`
	AllocationYear int             `json:"allocation_year" binding:"required"`
	StartMonth     int             `json:"start_month" binding:"required"`
	EndMonth       int             `json:"end_month" binding:"required"`
	Remarks        string          `json:"remarks"`
}

func (s *AllocationService) Create(ctx context.Context, req *AllocationRequest) (*model.ExpenseAllocation, error) {
	if err := requirePositive(req.TotalAmount, "分摊总额"); err != nil {
		return nil, err
	}
	if req.AllocationYear < 2000 || req.AllocationYear > 9999 {
		return nil, errs.Validation("分摊年份不合法: %d", req.AllocationYear)
	}
	if req.StartMonth < 1 || req.EndMonth > 12 || req.StartMonth > req.EndMonth {
		return nil, errs.Validation("分摊月份区间不合法: %d-%d", req.StartMonth, req.EndMonth)
	}
	if err := requireExpenseSubject(ctx, s.subjectRepo, req.SubjectCode); err != nil {
		return nil, err
	}

	a := &model.ExpenseAllocation{
		ExpenseName:    req.ExpenseName,
		SubjectCode:    req.SubjectCode,
		TotalAmount:    req.TotalAmount,
		AllocationYear: req.AllocationYear,
		StartMonth:     req.StartMonth,
		EndMonth:       req.EndMonth,
		Remarks:        req.Remarks,
	}
	a.MonthlyAmount = a.ComputeMonthlyAmount()

	if err := s.repo.CreateAllocation(ctx, a); err != nil {
		return nil, fmt.Errorf("保存费用分摊失败: %w", err)
	}
	s.log.Info("新增年度费用分摊",
		zap.Int64("id", a.ID),
		zap.String("name", a.ExpenseName),
		zap.String("total", a.TotalAmount.StringFixed(2)),
		zap.String("monthly", a.MonthlyAmount.StringFixed(2)),
	)
	return a, nil
}

func (s *AllocationService) List(ctx context.Context, year int) ([]*model.ExpenseAllocation, error) {
	return s.repo.ListAllocations(ctx, year)
}

func (s *AllocationService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAllocation(ctx, id); err != nil {
		return err
	}
	s.log.Info("删除年度费用分摊", zap.Int64("id", id))
	return nil
}
