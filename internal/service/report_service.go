package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 利润报表
// ============================================================================
//
// 收入 = 收入类科目 贷方 - 借方
// 费用 = 费用类科目 借方 - 贷方
// 分摊 = 当月覆盖的年度分摊额
// 净利润 = 收入 - 费用 - 分摊
//
// 冲销凭证与原凭证同时计入，自然抵消。报表只读，不回写任何数据。
// ============================================================================

type SubjectLine struct {
	SubjectCode string          `json:"subject_code"`
	SubjectName string          `json:"subject_name"`
	Amount      decimal.Decimal `json:"amount"`
}

type AllocationLine struct {
	AllocationID int64           `json:"allocation_id"`
	ExpenseName  string          `json:"expense_name"`
	SubjectCode  string          `json:"subject_code"`
	Amount       decimal.Decimal `json:"amount"`
}

type ProfitReport struct {
	YearMonth          string           `json:"year_month"`
	TotalIncome        decimal.Decimal  `json:"total_income"`
	TotalExpenseActual decimal.Decimal  `json:"total_expense_actual"`
	TotalAllocated     decimal.Decimal  `json:"total_allocated"`
	NetProfit          decimal.Decimal  `json:"net_profit"`
	IncomeLines        []SubjectLine    `json:"income_lines"`
	ExpenseLines       []SubjectLine    `json:"expense_lines"`
	AllocationLines    []AllocationLine `json:"allocation_lines"`
}

type YearlyProfitReport struct {
	Year               int             `json:"year"`
	Months             []*ProfitReport `json:"months"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpenseActual decimal.Decimal `json:"total_expense_actual"`
	TotalAllocated     decimal.Decimal `json:"total_allocated"`
	NetProfit          decimal.Decimal `json:"net_profit"`
}

type ReportService struct {
	log         *zap.Logger
	vouchers    *VoucherService
	subjectRepo *repository.SubjectRepository
	expenseRepo *repository.ExpenseRepository
}

func NewReportService(db *gorm.DB, log *zap.Logger, vouchers *VoucherService) *ReportService {
	return &ReportService{
		log:         log,
		vouchers:    vouchers,
		subjectRepo: repository.NewSubjectRepository(db),
		expenseRepo: repository.NewExpenseRepository(db),
	}
}

// reportContext 一次报表请求内共享的科目表和分摊配置
type reportContext struct {
	income      map[string]*model.Subject
	expense     map[string]*model.Subject
	allocations []*model.ExpenseAllocation
}

func (s *ReportService) load(ctx context.Context, year int) (*reportContext, error) {
	income, err := s.subjectRepo.CodesByType(ctx, model.SubjectTypeIncome)
	if err != nil {
		return nil, fmt.Errorf("查询收入科目失败: %w", err)
	}
	expense, err := s.subjectRepo.CodesByType(ctx, model.SubjectTypeExpense)
	if err != nil {
		return nil, fmt.Errorf("查询费用科目失败: %w", err)
	}
	allocations, err := s.expenseRepo.ListAllocations(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("查询费用分摊失败: %w", err)
	}
	return &reportContext{income: income, expense: expense, allocations: allocations}, nil
}

func (s *ReportService) ProfitMonthly(ctx context.Context, yearMonth string) (*ProfitReport, error) {
	first, _, err := model.ParseMonth(yearMonth)
	if err != nil {
		return nil, errs.Validation("%s", err.Error())
	}
	rc, err := s.load(ctx, first.Year())
	if err != nil {
		return nil, err
	}
	return s.month(ctx, rc, first)
}

func (s *ReportService) ProfitYearly(ctx context.Context, year int) (*YearlyProfitReport, error) {
	if year < 2000 || year > 9999 {
		return nil, errs.Validation("年份不合法: %d", year)
	}
	rc, err := s.load(ctx, year)
	if err != nil {
		return nil, err
	}

	report := &YearlyProfitReport{
		Year:               year,
		Months:             make([]*ProfitReport, 0, 12),
		TotalIncome:        decimal.Zero,
		TotalExpenseActual: decimal.Zero,
		TotalAllocated:     decimal.Zero,
		NetProfit:          decimal.Zero,
	}
	for m := 1; m <= 12; m++ {
		first := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.Local)
		mr, err := s.month(ctx, rc, first)
		if err != nil {
			return nil, err
		}
		report.Months = append(report.Months, mr)
		report.TotalIncome = report.TotalIncome.Add(mr.TotalIncome)
		report.TotalExpenseActual = report.TotalExpenseActual.Add(mr.TotalExpenseActual)
		report.TotalAllocated = report.TotalAllocated.Add(mr.TotalAllocated)
		report.NetProfit = report.NetProfit.Add(mr.NetProfit)
	}
	return report, nil
}

func (s *ReportService) month(ctx context.Context, rc *reportContext, first time.Time) (*ProfitReport, error) {
	totals, err := s.vouchers.SubjectTotals(ctx, first, first.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	report := &ProfitReport{
		YearMonth:       first.Format(model.MonthLayout),
		TotalIncome:     decimal.Zero,
		IncomeLines:     []SubjectLine{},
		ExpenseLines:    []SubjectLine{},
		AllocationLines: []AllocationLine{},
	}

	for code, t := range totals {
		if subject, ok := rc.income[code]; ok {
			amount := t.Credit.Sub(t.Debit)
			report.IncomeLines = append(report.IncomeLines, SubjectLine{SubjectCode: code, SubjectName: subject.Name, Amount: amount})
			report.TotalIncome = report.TotalIncome.Add(amount)
		} else if subject, ok := rc.expense[code]; ok {
			amount := t.Debit.Sub(t.Credit)
			report.ExpenseLines = append(report.ExpenseLines, SubjectLine{SubjectCode: code, SubjectName: subject.Name, Amount: amount})
			report.TotalExpenseActual = report.TotalExpenseActual.Add(amount)
		}
	}
	sortLines(report.IncomeLines)
	sortLines(report.ExpenseLines)

	year, month := first.Year(), int(first.Month())
	for _, a := range rc.allocations {
		if !a.Covers(year, month) {
			continue
		}
		amount := a.AmountForMonth(year, month)
		report.AllocationLines = append(report.AllocationLines, AllocationLine{
			AllocationID: a.ID,
			ExpenseName:  a.ExpenseName,
			SubjectCode:  a.SubjectCode,
			Amount:       amount,
		})
		report.TotalAllocated = report.TotalAllocated.Add(amount)
	}

	report.NetProfit = report.TotalIncome.Sub(report.TotalExpenseActual).Sub(report.TotalAllocated)
	return report, nil
}

func sortLines(lines []SubjectLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].SubjectCode < lines[j].SubjectCode })
}
