package service_test

import (
	"sync"
	"testing"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adjust(studentID int64, amount string) *service.AdjustmentRequest {
	return &service.AdjustmentRequest{StudentID: studentID, Amount: dec(amount), Operator: "财务小王"}
}

func assertStatus(t *testing.T, s *model.Student, p model.PaymentStatus, e model.EnrollmentStatus) {
	t.Helper()
	assert.Equal(t, p, s.PaymentStatus)
	assert.Equal(t, e, s.EnrollmentStatus)
}

func TestLedgerScenarios(t *testing.T) {
	t.Run("partial payment", func(t *testing.T) {
		f := newFixture(t)
		s := f.newStudent(t, "4500")
		f.pay(t, s.ID, "2000")

		got := f.reload(t, s.ID)
		assertStatus(t, got, model.PaymentPartial, model.EnrollmentPartial)
		assert.True(t, dec("2500").Equal(got.DebtAmount))
	})

	t.Run("paid in full", func(t *testing.T) {
		f := newFixture(t)
		s := f.newStudent(t, "4500")
		f.pay(t, s.ID, "2000")
		f.pay(t, s.ID, "2500")

		got := f.reload(t, s.ID)
		assertStatus(t, got, model.PaymentPaid, model.EnrollmentPaid)
		assert.True(t, got.DebtAmount.IsZero())
	})

	t.Run("full refund", func(t *testing.T) {
		f := newFixture(t)
		s := f.newStudent(t, "3500")
		f.pay(t, s.ID, "3500")

		_, err := f.ledger.Refund(f.ctx, adjust(s.ID, "3500"))
		require.NoError(t, err)

		got := f.reload(t, s.ID)
		assertStatus(t, got, model.PaymentRefunded, model.EnrollmentRefunded)
		assert.True(t, got.ActualAmount.IsZero())
	})

	t.Run("discount after full payment", func(t *testing.T) {
		f := newFixture(t)
		s := f.newStudent(t, "6500")
		f.pay(t, s.ID, "6500")

		_, err := f.ledger.Discount(f.ctx, adjust(s.ID, "1000"))
		require.NoError(t, err)

		got := f.reload(t, s.ID)
		assertStatus(t, got, model.PaymentPartial, model.EnrollmentPartial)
		assert.True(t, dec("5500").Equal(got.ActualAmount))
	})

	t.Run("delete payment record", func(t *testing.T) {
		f := newFixture(t)
		s := f.newStudent(t, "4500")
		f.pay(t, s.ID, "3500")
		rec := f.pay(t, s.ID, "1000")
		assertStatus(t, f.reload(t, s.ID), model.PaymentPaid, model.EnrollmentPaid)

		require.NoError(t, f.ledger.DeletePaymentRecord(f.ctx, rec.ID, "财务小王"))
		assertStatus(t, f.reload(t, s.ID), model.PaymentPartial, model.EnrollmentPartial)
	})
}

func TestPaymentRoundTrip(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "4500")
	f.pay(t, s.ID, "1500")
	before := f.reload(t, s.ID)

	rec := f.pay(t, s.ID, "3000")
	require.NoError(t, f.ledger.DeletePaymentRecord(f.ctx, rec.ID, "财务小王"))

	after := f.reload(t, s.ID)
	assert.True(t, before.ActualAmount.Equal(after.ActualAmount))
	assert.Equal(t, before.PaymentStatus, after.PaymentStatus)
	assert.Equal(t, before.EnrollmentStatus, after.EnrollmentStatus)

	// 原凭证与冲销凭证按科目相抵
	var vouchers []model.Voucher
	require.NoError(t, f.db.Preload("Items").
		Where("source_id = ? AND source_type IN ?", rec.ID,
			[]model.SourceType{model.SourceTuitionPayment, model.SourcePaymentReversal}).
		Find(&vouchers).Error)
	require.Len(t, vouchers, 2)
	net := map[string]decimal.Decimal{}
	for _, v := range vouchers {
		// 冲销凭证的 source_id 指向收款记录
		if v.SourceType == model.SourcePaymentReversal {
			assert.NotNil(t, v.ReversalOf)
			require.NotNil(t, v.SourceID)
			assert.Equal(t, rec.ID, *v.SourceID)
		}
		for _, item := range v.Items {
			if item.EntryType == model.EntryDebit {
				net[item.SubjectCode] = net[item.SubjectCode].Add(item.Amount)
			} else {
				net[item.SubjectCode] = net[item.SubjectCode].Sub(item.Amount)
			}
		}
	}
	for code, amount := range net {
		assert.True(t, amount.IsZero(), "%s nets to %s", code, amount)
	}

	deleted, err := f.ledger.ListPayments(f.ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	for _, p := range deleted {
		if p.ID == rec.ID {
			assert.True(t, p.Reversed)
			assert.NotNil(t, p.ReversalVoucherID)
		}
	}

	err = f.ledger.DeletePaymentRecord(f.ctx, rec.ID, "财务小王")
	assert.ErrorIs(t, err, errs.ErrAlreadyReversed)

	f.requireAllBalanced(t)
}

func TestRefundIsTerminal(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "3500")
	f.pay(t, s.ID, "3500")

	// 部分退费同样进入退费状态
	_, err := f.ledger.Refund(f.ctx, adjust(s.ID, "1000"))
	require.NoError(t, err)
	got := f.reload(t, s.ID)
	assertStatus(t, got, model.PaymentRefunded, model.EnrollmentRefunded)
	assert.True(t, dec("2500").Equal(got.ActualAmount))

	f.pay(t, s.ID, "1000")
	assertStatus(t, f.reload(t, s.ID), model.PaymentRefunded, model.EnrollmentRefunded)

	_, err = f.ledger.Discount(f.ctx, adjust(s.ID, "500"))
	require.NoError(t, err)
	assertStatus(t, f.reload(t, s.ID), model.PaymentRefunded, model.EnrollmentRefunded)

	_, err = f.ledger.Refund(f.ctx, adjust(s.ID, "3000"))
	require.NoError(t, err)

	_, err = f.ledger.Refund(f.ctx, adjust(s.ID, "1"))
	assert.ErrorIs(t, err, errs.ErrAlreadyRefunded)
}

func TestAdjustmentVouchers(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "6500")
	f.pay(t, s.ID, "6500")

	disc, err := f.ledger.Discount(f.ctx, adjust(s.ID, "1000"))
	require.NoError(t, err)
	v, err := f.vouchers.Get(f.ctx, disc.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceTuitionDiscount, v.SourceType)
	require.NotNil(t, v.SourceID)
	assert.Equal(t, disc.ID, *v.SourceID)
	assert.Equal(t, "600101", v.Items[0].SubjectCode)
	assert.Equal(t, model.EntryDebit, v.Items[0].EntryType)
	assert.Equal(t, "2241", v.Items[1].SubjectCode)

	ref, err := f.ledger.Refund(f.ctx, adjust(s.ID, "500"))
	require.NoError(t, err)
	v, err = f.vouchers.Get(f.ctx, ref.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, model.SourcePaymentReversal, v.SourceType)
	// 退费凭证的 source_id 指向调整记录
	assert.Nil(t, v.ReversalOf)
	require.NotNil(t, v.SourceID)
	assert.Equal(t, ref.ID, *v.SourceID)
	assert.Equal(t, "600101", v.Items[0].SubjectCode)
	assert.Equal(t, "1002", v.Items[1].SubjectCode)

	adjustments, err := f.ledger.ListAdjustments(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, adjustments, 2)

	// 学费收入 = 6500 - 1000 - 500
	assert.True(t, dec("-5000").Equal(f.subjectNet(t, "600101")))
	f.requireAllBalanced(t)
}

func TestPaymentMethodSelectsDebitSubject(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "4500")

	for method, code := range map[string]string{
		model.PayMethodCash:   "1001",
		model.PayMethodWechat: "1002",
		model.PayMethodAlipay: "1002",
	} {
		rec, err := f.ledger.AddPayment(f.ctx, &service.PaymentRequest{
			StudentID: s.ID,
			Amount:    dec("100"),
			Date:      "2024-05-10",
			Method:    method,
			Operator:  "财务小王",
		})
		require.NoError(t, err, method)

		v, err := f.vouchers.Get(f.ctx, rec.VoucherID)
		require.NoError(t, err)
		assert.Equal(t, code, v.Items[0].SubjectCode, method)
		assert.Equal(t, "2024-05-10", v.VoucherDate.Format("2006-01-02"))
	}
}

func TestLedgerRejects(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "4500")
	f.pay(t, s.ID, "2000")

	_, err := f.ledger.AddPayment(f.ctx, &service.PaymentRequest{StudentID: s.ID, Amount: dec("0"), Method: "cash", Operator: "财务小王"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.ledger.AddPayment(f.ctx, &service.PaymentRequest{StudentID: s.ID, Amount: dec("100"), Method: "cash"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.ledger.AddPayment(f.ctx, &service.PaymentRequest{StudentID: s.ID, Amount: dec("100"), Method: "credit_card", Operator: "财务小王"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.ledger.AddPayment(f.ctx, &service.PaymentRequest{StudentID: 404, Amount: dec("100"), Method: "cash", Operator: "财务小王"})
	assert.ErrorIs(t, err, errs.ErrStudentNotFound)

	_, err = f.ledger.Refund(f.ctx, adjust(s.ID, "2000.01"))
	assert.ErrorIs(t, err, errs.ErrExceedsReceivable)

	_, err = f.ledger.Discount(f.ctx, adjust(s.ID, "3000"))
	assert.ErrorIs(t, err, errs.ErrExceedsReceivable)

	err = f.ledger.DeletePaymentRecord(f.ctx, 404, "财务小王")
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)

	// 被拒绝的操作不留下任何痕迹
	got := f.reload(t, s.ID)
	assert.True(t, dec("2000").Equal(got.ActualAmount))
	var n int64
	f.db.Model(&model.Voucher{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestDeletePaymentAfterConsumption(t *testing.T) {
	tests := []struct {
		name    string
		consume func(f *fixture, studentID int64) error
	}{
		{"after full refund", func(f *fixture, id int64) error {
			_, err := f.ledger.Refund(f.ctx, adjust(id, "1000"))
			return err
		}},
		{"after full discount", func(f *fixture, id int64) error {
			_, err := f.ledger.Discount(f.ctx, adjust(id, "1000"))
			return err
		}},
		{"after partial refund", func(f *fixture, id int64) error {
			_, err := f.ledger.Refund(f.ctx, adjust(id, "0.01"))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.newStudent(t, "4500")
			rec := f.pay(t, s.ID, "1000")
			require.NoError(t, tt.consume(f, s.ID))

			before := f.reload(t, s.ID)
			var vouchers, outbox int64
			require.NoError(t, f.db.Model(&model.Voucher{}).Count(&vouchers).Error)
			require.NoError(t, f.db.Model(&model.OutboxMessage{}).Count(&outbox).Error)

			err := f.ledger.DeletePaymentRecord(f.ctx, rec.ID, "财务小王")
			assert.ErrorIs(t, err, errs.ErrExceedsReceivable)

			after := f.reload(t, s.ID)
			assert.True(t, before.ActualAmount.Equal(after.ActualAmount), after.ActualAmount.String())
			assert.False(t, after.ActualAmount.IsNegative())
			assert.True(t, before.DebtAmount.Equal(after.DebtAmount))
			assert.Equal(t, before.PaymentStatus, after.PaymentStatus)
			assert.Equal(t, before.EnrollmentStatus, after.EnrollmentStatus)

			var n int64
			require.NoError(t, f.db.Model(&model.Voucher{}).Count(&n).Error)
			assert.Equal(t, vouchers, n)
			require.NoError(t, f.db.Model(&model.OutboxMessage{}).Count(&n).Error)
			assert.Equal(t, outbox, n)

			var stored model.PaymentRecord
			require.NoError(t, f.db.First(&stored, rec.ID).Error)
			assert.False(t, stored.Reversed)
			f.requireAllBalanced(t)
		})
	}
}

func TestConcurrentPaymentsSerialize(t *testing.T) {
	f := newFixture(t)
	s := f.newStudent(t, "4500")

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AddPayment(f.ctx, &service.PaymentRequest{
				StudentID: s.ID,
				Amount:    dec("450"),
				Method:    model.PayMethodBank,
				Operator:  "财务小王",
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	got := f.reload(t, s.ID)
	assert.True(t, dec("4500").Equal(got.ActualAmount))
	assertStatus(t, got, model.PaymentPaid, model.EnrollmentPaid)

	var vouchers []model.Voucher
	require.NoError(t, f.db.Find(&vouchers).Error)
	seen := map[string]bool{}
	for _, v := range vouchers {
		assert.False(t, seen[v.VoucherNo], "duplicate voucher no %s", v.VoucherNo)
		seen[v.VoucherNo] = true
	}
	assert.Len(t, seen, 10)
}
