package service_test

import (
	"testing"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type salarySeed struct {
	coachA, coachB int64
}

// seedSalaryMonth 2024-05：A 教练科目二通过 2 人、科目三通过 1 人、新招 2 人；B 教练无业绩
func seedSalaryMonth(t *testing.T, f *fixture) salarySeed {
	t.Helper()

	_, err := f.salary.CreateConfig(f.ctx, &service.SalaryConfigRequest{
		EffectiveDate:   "2024-01-01",
		DailyWage:       dec("200"),
		Subject2Rate:    dec("100"),
		Subject3Rate:    dec("150"),
		RecruitmentRate: dec("50"),
	})
	require.NoError(t, err)

	a := &model.Coach{Name: "李教练", Status: model.CoachStatusActive}
	b := &model.Coach{Name: "王教练", Status: model.CoachStatusActive}
	gone := &model.Coach{Name: "赵教练", Status: model.CoachStatusInactive}
	require.NoError(t, f.db.Create(a).Error)
	require.NoError(t, f.db.Create(b).Error)
	require.NoError(t, f.db.Create(gone).Error)

	exams := []model.ExamResult{
		{StudentID: 1, CoachID: a.ID, Subject: model.ExamSubject2, Result: model.ExamResultPass, ExamDate: day(2024, 5, 3)},
		{StudentID: 2, CoachID: a.ID, Subject: model.ExamSubject2, Result: model.ExamResultPass, ExamDate: day(2024, 5, 31)},
		{StudentID: 3, CoachID: a.ID, Subject: model.ExamSubject3, Result: model.ExamResultPass, ExamDate: day(2024, 5, 15)},
		{StudentID: 4, CoachID: a.ID, Subject: model.ExamSubject3, Result: model.ExamResultFail, ExamDate: day(2024, 5, 15)},
		{StudentID: 5, CoachID: a.ID, Subject: model.ExamSubject2, Result: model.ExamResultPass, ExamDate: day(2024, 6, 1)},
	}
	require.NoError(t, f.db.Create(&exams).Error)

	enrolled := day(2024, 5, 10)
	for _, status := range []model.EnrollmentStatus{model.EnrollmentUnpaid, model.EnrollmentPaid, model.EnrollmentInquiring} {
		require.NoError(t, f.db.Create(&model.Student{
			Name:             "学员",
			CoachID:          &a.ID,
			EnrollDate:       &enrolled,
			ContractAmount:   dec("4500"),
			PaymentStatus:    model.PaymentUnpaid,
			EnrollmentStatus: status,
		}).Error)
	}

	return salarySeed{coachA: a.ID, coachB: b.ID}
}

func salaryOf(t *testing.T, f *fixture, month string, coachID int64) *model.CoachMonthlySalary {
	t.Helper()
	list, err := f.salary.List(f.ctx, month)
	require.NoError(t, err)
	for _, rec := range list {
		if rec.CoachID == coachID {
			return rec
		}
	}
	t.Fatalf("no salary record for coach %d in %s", coachID, month)
	return nil
}

func TestGenerateSalary(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)

	n, err := f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 重复生成不产生新记录
	n, err = f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := f.salary.List(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	rec := salaryOf(t, f, "2024-05", seed.coachA)
	assert.Equal(t, model.SalaryStatusDraft, rec.Status)
	assert.Equal(t, 2, rec.Subject2PassCount)
	assert.Equal(t, 1, rec.Subject3PassCount)
	assert.Equal(t, 2, rec.NewStudentCount)
	assert.True(t, dec("200").Equal(rec.Subject2Commission))
	assert.True(t, dec("150").Equal(rec.Subject3Commission))
	assert.True(t, dec("100").Equal(rec.RecruitmentCommission))
	assert.True(t, dec("450").Equal(rec.GrossSalary))

	idle := salaryOf(t, f, "2024-05", seed.coachB)
	assert.True(t, idle.GrossSalary.IsZero())
}

func TestGenerateSalaryWithoutConfig(t *testing.T) {
	f := newFixture(t)
	seedSalaryMonth(t, f)

	_, err := f.salary.Generate(f.ctx, "2023-12")
	assert.ErrorIs(t, err, errs.ErrSalaryConfigMissing)

	_, err = f.salary.Generate(f.ctx, "2024/05")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestSalaryConfigPickedByMonthEnd(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)

	// 月中生效的新标准对整月生效
	_, err := f.salary.CreateConfig(f.ctx, &service.SalaryConfigRequest{
		EffectiveDate:   "2024-05-20",
		DailyWage:       dec("250"),
		Subject2Rate:    dec("120"),
		Subject3Rate:    dec("150"),
		RecruitmentRate: dec("50"),
	})
	require.NoError(t, err)

	_, err = f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	rec := salaryOf(t, f, "2024-05", seed.coachA)
	assert.True(t, dec("240").Equal(rec.Subject2Commission))
}

func TestCreateSalaryConfigValidationOrder(t *testing.T) {
	f := newFixture(t)
	req := &service.SalaryConfigRequest{
		EffectiveDate:   "2024-01-01",
		DailyWage:       dec("-1"),
		Subject2Rate:    dec("-1"),
		Subject3Rate:    dec("-1"),
		RecruitmentRate: dec("-1"),
	}

	// 多个字段同时非法时总是报第一个
	for i := 0; i < 20; i++ {
		_, err := f.salary.CreateConfig(f.ctx, req)
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.Contains(t, err.Error(), "日工资不能为负数")
	}

	req.DailyWage = dec("200")
	_, err := f.salary.CreateConfig(f.ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "科目二提成不能为负数")
}

func TestUpdateSalaryManualFields(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)
	_, err := f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	rec := salaryOf(t, f, "2024-05", seed.coachA)

	days := 22
	got, err := f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{AttendanceDays: &days}, "人事小陈")
	require.NoError(t, err)
	assert.True(t, dec("4400").Equal(got.BaseSalary))
	assert.True(t, dec("4850").Equal(got.GrossSalary))

	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{Deduction: decPtr("50")}, "人事小陈")
	assert.ErrorIs(t, err, errs.ErrDeductionReasonRequired)

	reason := "迟到两次"
	got, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{
		Bonus:           decPtr("100"),
		Deduction:       decPtr("50"),
		DeductionReason: &reason,
	}, "人事小陈")
	require.NoError(t, err)
	assert.True(t, dec("4900").Equal(got.GrossSalary))

	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{Bonus: decPtr("-1")}, "人事小陈")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	bad := 40
	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{AttendanceDays: &bad}, "人事小陈")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestRefreshKeepsManualFields(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)
	_, err := f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	rec := salaryOf(t, f, "2024-05", seed.coachA)

	days := 20
	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{AttendanceDays: &days, Bonus: decPtr("300")}, "人事小陈")
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&model.ExamResult{
		StudentID: 9, CoachID: seed.coachA, Subject: model.ExamSubject2,
		Result: model.ExamResultPass, ExamDate: day(2024, 5, 28),
	}).Error)

	n, err := f.salary.Refresh(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := salaryOf(t, f, "2024-05", seed.coachA)
	assert.Equal(t, 3, got.Subject2PassCount)
	assert.Equal(t, 20, got.AttendanceDays)
	assert.True(t, dec("300").Equal(got.Bonus))
	// 4000 + 300 + 150 + 100 + 300
	assert.True(t, dec("4850").Equal(got.GrossSalary))
}

func TestSalaryPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)
	_, err := f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	rec := salaryOf(t, f, "2024-05", seed.coachA)

	// 只能逐级流转
	_, err = f.salary.ConfirmPayment(f.ctx, rec.ID, "出纳小周")
	assert.ErrorIs(t, err, errs.ErrStatusTransition)

	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{NetSalary: decPtr("400")}, "人事小陈")
	require.NoError(t, err)
	_, err = f.salary.Confirm(f.ctx, rec.ID, "人事小陈")
	require.NoError(t, err)

	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{Status: model.SalaryStatusDraft}, "人事小陈")
	assert.ErrorIs(t, err, errs.ErrStatusTransition)

	paid, err := f.salary.ConfirmPayment(f.ctx, rec.ID, "出纳小周")
	require.NoError(t, err)
	assert.Equal(t, model.SalaryStatusPaid, paid.Status)
	require.NotNil(t, paid.VoucherID)
	require.NotNil(t, paid.PaidAt)

	v, err := f.vouchers.Get(f.ctx, *paid.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceCoachSalary, v.SourceType)
	assert.True(t, dec("400").Equal(v.TotalAmount))
	assert.Equal(t, "660201", v.Items[0].SubjectCode)
	assert.Equal(t, model.EntryDebit, v.Items[0].EntryType)
	assert.Equal(t, "1002", v.Items[1].SubjectCode)

	// 已发放不可修改
	reason := "补扣"
	_, err = f.salary.Update(f.ctx, rec.ID, &service.UpdateSalaryRequest{Deduction: decPtr("10"), DeductionReason: &reason}, "人事小陈")
	assert.ErrorIs(t, err, errs.ErrImmutablePaidRecord)

	// 刷新和批量删除都跳过已发放记录
	n, err := f.salary.Refresh(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.salary.BatchDelete(f.ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := f.salary.List(f.ctx, "2024-05")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, seed.coachA, list[0].CoachID)

	f.requireAllBalanced(t)
}

func TestZeroSalaryPostsNoVoucher(t *testing.T) {
	f := newFixture(t)
	seed := seedSalaryMonth(t, f)
	_, err := f.salary.Generate(f.ctx, "2024-05")
	require.NoError(t, err)
	rec := salaryOf(t, f, "2024-05", seed.coachB)

	_, err = f.salary.Confirm(f.ctx, rec.ID, "人事小陈")
	require.NoError(t, err)
	paid, err := f.salary.ConfirmPayment(f.ctx, rec.ID, "出纳小周")
	require.NoError(t, err)
	assert.Equal(t, model.SalaryStatusPaid, paid.Status)
	assert.Nil(t, paid.VoucherID)
	assert.WithinDuration(t, time.Now(), *paid.PaidAt, time.Minute)

	var n int64
	f.db.Model(&model.Voucher{}).Count(&n)
	assert.Zero(t, n)
}

func TestSalaryNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.salary.Confirm(f.ctx, 404, "人事小陈")
	assert.ErrorIs(t, err, errs.ErrSalaryNotFound)
}
