package service

import (
	"context"
	"fmt"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubjectService 会计科目与用途映射
type SubjectService struct {
	db   *gorm.DB
	log  *zap.Logger
	repo *repository.SubjectRepository
}

func NewSubjectService(db *gorm.DB, log *zap.Logger) *SubjectService {
	return &SubjectService{
		db:   db,
		log:  log,
		repo: repository.NewSubjectRepository(db),
	}
}

type CreateSubjectRequest struct {
	Code             string `json:"code" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Type             string `json:"type" binding:"required"`
	BalanceDirection string `json:"balance_direction"`
	ParentCode       string `json:"parent_code"`
}

// Create 新建科目
// 余额方向为空时按科目类别补齐；与类别约定相反时拒绝，避免借贷方向被悄悄改写
func (s *SubjectService) Create(ctx context.Context, req *CreateSubjectRequest) (*model.Subject, error) {
	if req.Code == "" || req.Name == "" {
		return nil, errs.Validation("科目编码和名称不能为空")
	}
	subjectType := model.SubjectType(req.Type)
	conventional, ok := model.ConventionalDirection(subjectType)
	if !ok {
		return nil, errs.Validation("未知的科目类别: %s", req.Type)
	}

	direction := model.EntryType(req.BalanceDirection)
	if direction == "" {
		direction = conventional
	}
	if !direction.Valid() {
		return nil, errs.Validation("未知的余额方向: %s", req.BalanceDirection)
	}
	if direction != conventional {
		return nil, errs.Validation("%s 类科目的余额方向应为 %s", subjectType, conventional)
	}

	subject := &model.Subject{
		Code:             req.Code,
		Name:             req.Name,
		Type:             subjectType,
		BalanceDirection: direction,
		Active:           true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.ParentCode != "" {
			parent, err := s.repo.GetByCode(ctx, tx, req.ParentCode)
			if err != nil {
				return err
			}
			if parent.Type != subjectType {
				return errs.Validation("上级科目 %s 的类别为 %s", parent.Code, parent.Type)
			}
			subject.ParentCode = &parent.Code
		}
		if _, err := s.repo.GetByCode(ctx, tx, req.Code); err == nil {
			return errs.Validation("科目编码已存在: %s", req.Code)
		}
		if err := s.repo.Create(ctx, tx, subject); err != nil {
			return fmt.Errorf("创建科目失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("新建会计科目", zap.String("code", subject.Code), zap.String("type", string(subject.Type)))
	return subject, nil
}

type UpdateSubjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// Update 只允许改名称；类别和余额方向影响历史凭证的解读，不允许修改
func (s *SubjectService) Update(ctx context.Context, code string, req *UpdateSubjectRequest) error {
	if req.Name == "" {
		return errs.Validation("科目名称不能为空")
	}
	return s.repo.Update(ctx, nil, code, map[string]interface{}{"name": req.Name})
}

// Deactivate 停用科目，任何时候都允许；停用后不能再记账
func (s *SubjectService) Deactivate(ctx context.Context, code string) error {
	if err := s.repo.Update(ctx, nil, code, map[string]interface{}{"active": false}); err != nil {
		return err
	}
	s.log.Info("停用会计科目", zap.String("code", code))
	return nil
}

// Delete 物理删除，只允许未被任何凭证分录引用的科目
func (s *SubjectService) Delete(ctx context.Context, code string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetByCode(ctx, tx, code); err != nil {
			return err
		}
		used, err := s.repo.IsReferenced(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("查询科目引用失败: %w", err)
		}
		if used {
			return errs.ErrSubjectInUse.Wrap("%s", code)
		}
		return s.repo.Delete(ctx, tx, code)
	})
}

func (s *SubjectService) Get(ctx context.Context, code string) (*model.Subject, error) {
	return s.repo.GetByCode(ctx, nil, code)
}

func (s *SubjectService) List(ctx context.Context, subjectType string, activeOnly bool) ([]*model.Subject, error) {
	return s.repo.List(ctx, subjectType, activeOnly)
}

// ============================================================================
// 用途映射
// ============================================================================

type SetUsageRequest struct {
	SubjectCode string `json:"subject_code" binding:"required"`
	Description string `json:"description"`
}

// SetUsage 修改用途指向的科目，只影响之后生成的凭证
func (s *SubjectService) SetUsage(ctx context.Context, usage string, req *SetUsageRequest) error {
	if usage == "" {
		return errs.Validation("用途编码不能为空")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		subject, err := s.repo.GetByCode(ctx, tx, req.SubjectCode)
		if err != nil {
			return err
		}
		if !subject.Active {
			return errs.ErrSubjectInactive.Wrap("%s", subject.Code)
		}
		return s.repo.UpsertUsage(ctx, tx, &model.UsageMapping{
			UsageCode:   usage,
			SubjectCode: subject.Code,
			Description: req.Description,
		})
	})
}

// ResolveUsage 解析用途对应的科目编码，目标科目必须存在且启用
func (s *SubjectService) ResolveUsage(ctx context.Context, tx *gorm.DB, usage string) (string, error) {
	m, err := s.repo.GetUsage(ctx, tx, usage)
	if err != nil {
		return "", err
	}
	subject, err := s.repo.GetByCode(ctx, tx, m.SubjectCode)
	if err != nil {
		return "", err
	}
	if !subject.Active {
		return "", errs.ErrSubjectInactive.Wrap("用途 %s 指向的科目 %s 已停用", usage, subject.Code)
	}
	return subject.Code, nil
}

func (s *SubjectService) ListUsages(ctx context.Context) ([]*model.UsageMapping, error) {
	return s.repo.ListUsages(ctx)
}
