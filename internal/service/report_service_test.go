package service_test

import (
	"testing"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocationLifecycle(t *testing.T) {
	f := newFixture(t)

	a, err := f.allocation.Create(f.ctx, &service.AllocationRequest{
		ExpenseName:    "教练车保险",
		SubjectCode:    "660204",
		TotalAmount:    dec("1000"),
		AllocationYear: 2024,
		StartMonth:     1,
		EndMonth:       12,
	})
	require.NoError(t, err)
	assert.True(t, dec("83.33").Equal(a.MonthlyAmount))

	sum := decimal.Zero
	for m := 1; m <= 12; m++ {
		sum = sum.Add(a.AmountForMonth(2024, m))
	}
	assert.True(t, dec("1000").Equal(sum))

	list, err := f.allocation.List(f.ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = f.allocation.List(f.ctx, 2023)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.allocation.Delete(f.ctx, a.ID))
	assert.ErrorIs(t, f.allocation.Delete(f.ctx, a.ID), errs.ErrAllocationNotFound)
}

func TestAllocationValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  service.AllocationRequest
	}{
		{"start after end", service.AllocationRequest{ExpenseName: "x", SubjectCode: "660204", TotalAmount: dec("100"), AllocationYear: 2024, StartMonth: 6, EndMonth: 5}},
		{"month 13", service.AllocationRequest{ExpenseName: "x", SubjectCode: "660204", TotalAmount: dec("100"), AllocationYear: 2024, StartMonth: 1, EndMonth: 13}},
		{"month 0", service.AllocationRequest{ExpenseName: "x", SubjectCode: "660204", TotalAmount: dec("100"), AllocationYear: 2024, StartMonth: 0, EndMonth: 3}},
		{"zero total", service.AllocationRequest{ExpenseName: "x", SubjectCode: "660204", TotalAmount: dec("0"), AllocationYear: 2024, StartMonth: 1, EndMonth: 3}},
		{"income subject", service.AllocationRequest{ExpenseName: "x", SubjectCode: "600101", TotalAmount: dec("100"), AllocationYear: 2024, StartMonth: 1, EndMonth: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.allocation.Create(f.ctx, &req)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

// seedReport 2024-05：学费收入 5000，水电 300；全年车险 1000 按 12 个月分摊
func seedReport(t *testing.T, f *fixture) {
	t.Helper()

	s := f.newStudent(t, "6000")
	_, err := f.ledger.AddPayment(f.ctx, &service.PaymentRequest{
		StudentID: s.ID, Amount: dec("5000"), Date: "2024-05-10",
		Method: model.PayMethodBank, Operator: "财务小王",
	})
	require.NoError(t, err)

	_, err = f.vouchers.CreateManual(f.ctx, manual("2024-05-20", debit("660203", "300"), credit("1001", "300")), "会计小李")
	require.NoError(t, err)

	// 4 月的凭证不计入 5 月
	_, err = f.vouchers.CreateManual(f.ctx, manual("2024-04-30", debit("660299", "70"), credit("1001", "70")), "会计小李")
	require.NoError(t, err)

	_, err = f.allocation.Create(f.ctx, &service.AllocationRequest{
		ExpenseName: "教练车保险", SubjectCode: "660204", TotalAmount: dec("1000"),
		AllocationYear: 2024, StartMonth: 1, EndMonth: 12,
	})
	require.NoError(t, err)
}

func TestProfitMonthly(t *testing.T) {
	f := newFixture(t)
	seedReport(t, f)

	r, err := f.report.ProfitMonthly(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-05", r.YearMonth)
	assert.True(t, dec("5000").Equal(r.TotalIncome), r.TotalIncome.String())
	assert.True(t, dec("300").Equal(r.TotalExpenseActual), r.TotalExpenseActual.String())
	assert.True(t, dec("83.33").Equal(r.TotalAllocated), r.TotalAllocated.String())
	assert.True(t, dec("4616.67").Equal(r.NetProfit), r.NetProfit.String())

	require.Len(t, r.IncomeLines, 1)
	assert.Equal(t, "600101", r.IncomeLines[0].SubjectCode)
	require.Len(t, r.ExpenseLines, 1)
	assert.Equal(t, "660203", r.ExpenseLines[0].SubjectCode)
	require.Len(t, r.AllocationLines, 1)

	// 12 月承担分摊尾差
	dec12, err := f.report.ProfitMonthly(f.ctx, "2024-12")
	require.NoError(t, err)
	assert.True(t, dec("83.37").Equal(dec12.TotalAllocated))
	assert.True(t, dec("-83.37").Equal(dec12.NetProfit))

	_, err = f.report.ProfitMonthly(f.ctx, "May 2024")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestReversalNetsOutOfReport(t *testing.T) {
	f := newFixture(t)

	v, err := f.vouchers.CreateManual(f.ctx, manual("", debit("660203", "300"), credit("1001", "300")), "会计小李")
	require.NoError(t, err)
	_, err = f.vouchers.ReverseManual(f.ctx, v.ID, "会计小李", "")
	require.NoError(t, err)

	r, err := f.report.ProfitMonthly(f.ctx, v.VoucherDate.Format(model.MonthLayout))
	require.NoError(t, err)
	assert.True(t, r.TotalExpenseActual.IsZero())
	assert.True(t, r.NetProfit.IsZero())
}

func TestProfitYearly(t *testing.T) {
	f := newFixture(t)
	seedReport(t, f)

	r, err := f.report.ProfitYearly(f.ctx, 2024)
	require.NoError(t, err)
	require.Len(t, r.Months, 12)
	assert.Equal(t, "2024-01", r.Months[0].YearMonth)

	assert.True(t, dec("5000").Equal(r.TotalIncome))
	assert.True(t, dec("370").Equal(r.TotalExpenseActual))
	assert.True(t, dec("1000").Equal(r.TotalAllocated))
	assert.True(t, dec("3630").Equal(r.NetProfit))

	sum := decimal.Zero
	for _, m := range r.Months {
		sum = sum.Add(m.NetProfit)
	}
	assert.True(t, sum.Equal(r.NetProfit))

	_, err = f.report.ProfitYearly(f.ctx, 0)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
