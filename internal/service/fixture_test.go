package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/service"
	"github.com/DT191220/YDJX-sub000/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	subjects   *service.SubjectService
	vouchers   *service.VoucherService
	ledger     *service.LedgerService
	salary     *service.SalaryService
	hq         *service.HeadquarterService
	expense    *service.ExpenseService
	allocation *service.AllocationService
	report     *service.ReportService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ledger.Epsilon = "0.01"
	cfg.Ledger.VoucherPrefix = "PZ"
	cfg.Kafka.Topic.LedgerEvent = "ydjx.ledger.event"
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	svc := service.NewServices(db, testConfig(), zap.NewNop(), lock.NopLocker{})
	return &fixture{
		ctx:        context.Background(),
		db:         db,
		subjects:   svc.Subjects,
		vouchers:   svc.Vouchers,
		ledger:     svc.Ledger,
		salary:     svc.Salary,
		hq:         svc.Headquarter,
		expense:    svc.Expense,
		allocation: svc.Allocation,
		report:     svc.Report,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// newStudent 已报名未缴费的学员
func (f *fixture) newStudent(t *testing.T, contract string) *model.Student {
	t.Helper()
	s := &model.Student{
		Name:             "张三",
		ContractAmount:   dec(contract),
		PaymentStatus:    model.PaymentUnpaid,
		EnrollmentStatus: model.EnrollmentUnpaid,
	}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func (f *fixture) reload(t *testing.T, id int64) *model.Student {
	t.Helper()
	s, err := f.ledger.GetState(f.ctx, id)
	require.NoError(t, err)
	return s
}

func (f *fixture) pay(t *testing.T, studentID int64, amount string) *model.PaymentRecord {
	t.Helper()
	rec, err := f.ledger.AddPayment(f.ctx, &service.PaymentRequest{
		StudentID: studentID,
		Amount:    dec(amount),
		Method:    model.PayMethodBank,
		Operator:  "财务小王",
	})
	require.NoError(t, err)
	return rec
}

// subjectNet 某科目全部分录的 借方 - 贷方
func (f *fixture) subjectNet(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	var items []model.VoucherItem
	require.NoError(t, f.db.Where("subject_code = ?", code).Find(&items).Error)
	net := decimal.Zero
	for _, item := range items {
		if item.EntryType == model.EntryDebit {
			net = net.Add(item.Amount)
		} else {
			net = net.Sub(item.Amount)
		}
	}
	return net
}

// requireAllBalanced 库里每张凭证借贷相等
func (f *fixture) requireAllBalanced(t *testing.T) {
	t.Helper()
	var vouchers []model.Voucher
	require.NoError(t, f.db.Preload("Items").Find(&vouchers).Error)
	for _, v := range vouchers {
		debit, credit := v.Totals()
		require.True(t, debit.Equal(credit), "voucher %s: debit %s credit %s", v.VoucherNo, debit, credit)
		require.True(t, debit.IsPositive(), "voucher %s has zero total", v.VoucherNo)
	}
}

func (f *fixture) countOutbox(t *testing.T, event string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.OutboxMessage{}).Where("event_type = ?", event).Count(&n).Error)
	return n
}
