package service_test

import (
	"testing"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHeadquarter 全局按 10% 上交；C1 班型 2024-03 至 2024-06 每人固定 500
func seedHeadquarter(t *testing.T, f *fixture) (classType *model.ClassType, specific, global *model.HeadquarterConfig) {
	t.Helper()

	classType = &model.ClassType{Name: "C1 手动挡", ContractPrice: dec("4500")}
	require.NoError(t, f.db.Create(classType).Error)

	global, err := f.hq.CreateConfig(f.ctx, &service.HeadquarterConfigRequest{
		ConfigType:    model.HQConfigRatio,
		Ratio:         decPtr("0.1"),
		EffectiveDate: "2024-01-01",
	})
	require.NoError(t, err)

	specific, err = f.hq.CreateConfig(f.ctx, &service.HeadquarterConfigRequest{
		ClassTypeID:   &classType.ID,
		ConfigType:    model.HQConfigFixed,
		FixedAmount:   decPtr("500"),
		EffectiveDate: "2024-03-01",
		ExpireDate:    "2024-07-01",
	})
	require.NoError(t, err)
	return classType, specific, global
}

func TestResolveHeadquarterConfig(t *testing.T) {
	f := newFixture(t)
	classType, specific, global := seedHeadquarter(t, f)

	res, err := f.hq.Resolve(f.ctx, &classType.ID, day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionSpecific, res.Kind)
	assert.Equal(t, specific.ID, res.Config.ID)

	// 专属配置过期后回落到全局
	res, err = f.hq.Resolve(f.ctx, &classType.ID, day(2024, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionGlobal, res.Kind)
	assert.Equal(t, global.ID, res.Config.ID)

	res, err = f.hq.Resolve(f.ctx, nil, day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionGlobal, res.Kind)

	res, err = f.hq.Resolve(f.ctx, nil, day(2023, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionNone, res.Kind)
	assert.False(t, res.Found())
	assert.Nil(t, res.Config)

	require.NoError(t, f.hq.DeactivateConfig(f.ctx, specific.ID))
	res, err = f.hq.Resolve(f.ctx, &classType.ID, day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionGlobal, res.Kind)

	assert.ErrorIs(t, f.hq.DeactivateConfig(f.ctx, 404), errs.ErrHeadquarterNotFound)
}

func TestComputeSubmission(t *testing.T) {
	f := newFixture(t)
	classType, _, _ := seedHeadquarter(t, f)

	student := &model.Student{
		Name:             "李四",
		ClassTypeID:      &classType.ID,
		ContractAmount:   dec("4500"),
		ActualAmount:     dec("4000"),
		AccountBalance:   dec("200"),
		PaymentStatus:    model.PaymentPartial,
		EnrollmentStatus: model.EnrollmentPartial,
	}
	require.NoError(t, f.db.Create(student).Error)

	preview, err := f.hq.Compute(f.ctx, student.ID, day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionSpecific, preview.Kind)
	assert.True(t, dec("4200").Equal(preview.FinalReceipt))
	require.NotNil(t, preview.SubmitAmount)
	assert.True(t, dec("500").Equal(*preview.SubmitAmount))
	assert.True(t, dec("3700").Equal(*preview.Profit))

	preview, err = f.hq.Compute(f.ctx, student.ID, day(2024, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionGlobal, preview.Kind)
	assert.True(t, dec("450").Equal(*preview.SubmitAmount))
	assert.True(t, dec("3750").Equal(*preview.Profit))

	// 没有配置时不给出上交金额，而不是按 0 计算
	preview, err = f.hq.Compute(f.ctx, student.ID, day(2023, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, service.ResolutionNone, preview.Kind)
	assert.Nil(t, preview.SubmitAmount)
	assert.Nil(t, preview.Profit)

	_, err = f.hq.Compute(f.ctx, 404, day(2024, 4, 1))
	assert.ErrorIs(t, err, errs.ErrStudentNotFound)

	// 预览不写任何数据
	var n int64
	f.db.Model(&model.Voucher{}).Count(&n)
	assert.Zero(t, n)
}

func TestCreateHeadquarterConfigValidation(t *testing.T) {
	f := newFixture(t)
	missing := int64(404)

	tests := []struct {
		name string
		req  service.HeadquarterConfigRequest
	}{
		{"ratio above one", service.HeadquarterConfigRequest{ConfigType: model.HQConfigRatio, Ratio: decPtr("1.5"), EffectiveDate: "2024-01-01"}},
		{"negative ratio", service.HeadquarterConfigRequest{ConfigType: model.HQConfigRatio, Ratio: decPtr("-0.1"), EffectiveDate: "2024-01-01"}},
		{"ratio finer than column scale", service.HeadquarterConfigRequest{ConfigType: model.HQConfigRatio, Ratio: decPtr("0.12345"), EffectiveDate: "2024-01-01"}},
		{"ratio and fixed", service.HeadquarterConfigRequest{ConfigType: model.HQConfigRatio, Ratio: decPtr("0.1"), FixedAmount: decPtr("10"), EffectiveDate: "2024-01-01"}},
		{"fixed without amount", service.HeadquarterConfigRequest{ConfigType: model.HQConfigFixed, EffectiveDate: "2024-01-01"}},
		{"negative fixed", service.HeadquarterConfigRequest{ConfigType: model.HQConfigFixed, FixedAmount: decPtr("-1"), EffectiveDate: "2024-01-01"}},
		{"unknown type", service.HeadquarterConfigRequest{ConfigType: "percent", Ratio: decPtr("0.1"), EffectiveDate: "2024-01-01"}},
		{"bad date", service.HeadquarterConfigRequest{ConfigType: model.HQConfigFixed, FixedAmount: decPtr("1"), EffectiveDate: "2024/01/01"}},
		{"expire before effective", service.HeadquarterConfigRequest{ConfigType: model.HQConfigFixed, FixedAmount: decPtr("1"), EffectiveDate: "2024-05-01", ExpireDate: "2024-05-01"}},
		{"unknown class type", service.HeadquarterConfigRequest{ClassTypeID: &missing, ConfigType: model.HQConfigFixed, FixedAmount: decPtr("1"), EffectiveDate: "2024-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.hq.CreateConfig(f.ctx, &req)
			assert.Error(t, err)
		})
	}

	list, err := f.hq.ListConfigs(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.hq.CreateConfig(f.ctx, &service.HeadquarterConfigRequest{
		ConfigType: model.HQConfigRatio, Ratio: decPtr("0.12345"), EffectiveDate: "2024-01-01",
	})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	cfg, err := f.hq.CreateConfig(f.ctx, &service.HeadquarterConfigRequest{
		ConfigType: model.HQConfigRatio, Ratio: decPtr("0.1234"), EffectiveDate: "2024-01-01",
	})
	require.NoError(t, err)
	assert.True(t, dec("0.1234").Equal(*cfg.Ratio))
}
