package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResolutionKind 总部配置的命中方式
type ResolutionKind string

const (
	ResolutionSpecific ResolutionKind = "specific" // 命中班型专属配置
	ResolutionGlobal   ResolutionKind = "global"   // 回落到全局配置
	ResolutionNone     ResolutionKind = "none"     // 没有可用配置，不计算上交金额
)

// Resolution 调用方必须先看 Kind，None 不等于上交 0 元
type Resolution struct {
	Kind   ResolutionKind           `json:"kind"`
	Config *model.HeadquarterConfig `json:"config,omitempty"`
}

func (r Resolution) Found() bool {
	return r.Kind != ResolutionNone
}

// SubmissionPreview 单个学员的上交预览，只读
type SubmissionPreview struct {
	StudentID    int64            `json:"student_id"`
	Kind         ResolutionKind   `json:"kind"`
	ConfigID     *int64           `json:"config_id,omitempty"`
	Contract     decimal.Decimal  `json:"contract_amount"`
	FinalReceipt decimal.Decimal  `json:"final_receipt"`
	SubmitAmount *decimal.Decimal `json:"submit_amount,omitempty"`
	Profit       *decimal.Decimal `json:"profit,omitempty"`
}

type HeadquarterService struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        *repository.HeadquarterRepository
	studentRepo *repository.StudentRepository
}

func NewHeadquarterService(db *gorm.DB, log *zap.Logger) *HeadquarterService {
	return &HeadquarterService{
		db:          db,
		log:         log,
		repo:        repository.NewHeadquarterRepository(db),
		studentRepo: repository.NewStudentRepository(db),
	}
}

// Resolve 两步查找：先班型专属配置，再全局配置
func (s *HeadquarterService) Resolve(ctx context.Context, classTypeID *int64, date time.Time) (Resolution, error) {
	date = dateOnly(date)

	if classTypeID != nil {
		cfg, err := s.firstEffective(ctx, classTypeID, date)
		if err != nil {
			return Resolution{}, err
		}
		if cfg != nil {
			return Resolution{Kind: ResolutionSpecific, Config: cfg}, nil
		}
	}

	cfg, err := s.firstEffective(ctx, nil, date)
	if err != nil {
		return Resolution{}, err
	}
	if cfg != nil {
		return Resolution{Kind: ResolutionGlobal, Config: cfg}, nil
	}
	return Resolution{Kind: ResolutionNone}, nil
}

func (s *HeadquarterService) firstEffective(ctx context.Context, classTypeID *int64, date time.Time) (*model.HeadquarterConfig, error) {
	configs, err := s.repo.ListActive(ctx, classTypeID)
	if err != nil {
		return nil, fmt.Errorf("查询总部配置失败: %w", err)
	}
	for _, cfg := range configs {
		if cfg.EffectiveOn(date) {
			return cfg, nil
		}
	}
	return nil, nil
}

// Compute 最终实收 = 实收 + 账户余额；利润 = 最终实收 - 上交金额
func (s *HeadquarterService) Compute(ctx context.Context, studentID int64, date time.Time) (*SubmissionPreview, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	res, err := s.Resolve(ctx, student.ClassTypeID, date)
	if err != nil {
		return nil, err
	}

	preview := &SubmissionPreview{
		StudentID:    student.ID,
		Kind:         res.Kind,
		Contract:     student.ContractAmount,
		FinalReceipt: student.ActualAmount.Add(student.AccountBalance),
	}
	if !res.Found() {
		return preview, nil
	}

	submit := res.Config.SubmitAmount(student.ContractAmount)
	profit := preview.FinalReceipt.Sub(submit)
	preview.ConfigID = &res.Config.ID
	preview.SubmitAmount = &submit
	preview.Profit = &profit
	return preview, nil
}

// ============================================================================
// 配置维护
// ============================================================================

type HeadquarterConfigRequest struct {
	ClassTypeID   *int64           `json:"class_type_id"`
	ConfigType    string           `json:"config_type" binding:"required"`
	Ratio         *decimal.Decimal `json:"ratio"`
	FixedAmount   *decimal.Decimal `json:"fixed_amount"`
	EffectiveDate string           `json:"effective_date" binding:"required"`
	ExpireDate    string           `json:"expire_date"`
	Remarks       string           `json:"remarks"`
}

// CreateConfig 比例配置只填 ratio（0-1），固定配置只填 fixed_amount（≥0）
func (s *HeadquarterService) CreateConfig(ctx context.Context, req *HeadquarterConfigRequest) (*model.HeadquarterConfig, error) {
	cfg := &model.HeadquarterConfig{
		ClassTypeID: req.ClassTypeID,
		ConfigType:  req.ConfigType,
		Active:      true,
		Remarks:     req.Remarks,
	}

	switch req.ConfigType {
	case model.HQConfigRatio:
		if req.Ratio == nil || req.FixedAmount != nil {
			return nil, errs.Validation("比例配置必须且只能填写上交比例")
		}
		if req.Ratio.IsNegative() || req.Ratio.GreaterThan(decimal.NewFromInt(1)) {
			return nil, errs.Validation("上交比例必须在 0-1 之间")
		}
		// 与 decimal(6,4) 列精度一致
		if !req.Ratio.Equal(req.Ratio.Round(4)) {
			return nil, errs.Validation("上交比例最多保留4位小数")
		}
		cfg.Ratio = req.Ratio
	case model.HQConfigFixed:
		if req.FixedAmount == nil || req.Ratio != nil {
			return nil, errs.Validation("固定配置必须且只能填写固定金额")
		}
		if err := requireNonNegative(*req.FixedAmount, "固定金额"); err != nil {
			return nil, err
		}
		cfg.FixedAmount = req.FixedAmount
	default:
		return nil, errs.Validation("不支持的配置类型: %s", req.ConfigType)
	}

	eff, err := parseDate(req.EffectiveDate)
	if err != nil {
		return nil, err
	}
	cfg.EffectiveDate = eff
	if req.ExpireDate != "" {
		exp, err := parseDate(req.ExpireDate)
		if err != nil {
			return nil, err
		}
		if !exp.After(eff) {
			return nil, errs.Validation("失效日期必须晚于生效日期")
		}
		cfg.ExpireDate = &exp
	}

	if req.ClassTypeID != nil {
		if _, err := s.repo.GetClassType(ctx, *req.ClassTypeID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("保存总部配置失败: %w", err)
	}
	s.log.Info("新增总部上交配置", zap.Int64("id", cfg.ID), zap.String("type", cfg.ConfigType))
	return cfg, nil
}

func (s *HeadquarterService) DeactivateConfig(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Info("停用总部上交配置", zap.Int64("id", id))
	return nil
}

func (s *HeadquarterService) ListConfigs(ctx context.Context) ([]*model.HeadquarterConfig, error) {
	return s.repo.List(ctx)
}
