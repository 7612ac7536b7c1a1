package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"
	"github.com/DT191220/YDJX-sub000/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 凭证过账引擎
// ============================================================================
//
// 所有业务动作最终都落到这里生成凭证：
//
//	Post    校验借贷平衡后写入凭证、分录和一条本地消息，使用调用方的事务
//	Reverse 生成借贷方向相反的冲销凭证，原凭证登记 reversed_by，历史凭证不改
//	Delete  只允许删除手工凭证，系统凭证必须走业务自身的冲销路径
//
// ============================================================================

type VoucherService struct {
	db          *gorm.DB
	cfg         *config.Config
	log         *zap.Logger
	repo        *repository.VoucherRepository
	subjectRepo *repository.SubjectRepository
	outboxRepo  *repository.OutboxRepository
}

func NewVoucherService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *VoucherService {
	return &VoucherService{
		db:          db,
		cfg:         cfg,
		log:         log,
		repo:        repository.NewVoucherRepository(db),
		subjectRepo: repository.NewSubjectRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type ItemRequest struct {
	EntryType   model.EntryType `json:"entry_type" binding:"required"`
	SubjectCode string          `json:"subject_code" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Summary     string          `json:"summary"`
}

type PostRequest struct {
	Date        time.Time
	Description string
	SourceType  model.SourceType
	SourceID    *int64
	Creator     string
	Items       []ItemRequest

	reversalOf    *int64
	allowInactive bool // 冲销凭证沿用原科目，即使科目已停用
}

// Post 在调用方事务内过账
func (s *VoucherService) Post(ctx context.Context, tx *gorm.DB, req *PostRequest) (*model.Voucher, error) {
	total, err := s.validate(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	date := dateOnly(req.Date)
	seq, err := s.repo.NextSequence(ctx, tx, date.Format("20060102"))
	if err != nil {
		return nil, fmt.Errorf("分配凭证号失败: %w", err)
	}

	voucher := &model.Voucher{
		VoucherNo:   fmt.Sprintf("%s%s%04d", s.cfg.Ledger.VoucherPrefix, date.Format("20060102"), seq),
		VoucherDate: date,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Creator:     req.Creator,
		TotalAmount: total,
		ReversalOf:  req.reversalOf,
	}
	for i, item := range req.Items {
		voucher.Items = append(voucher.Items, model.VoucherItem{
			LineNo:      i + 1,
			EntryType:   item.EntryType,
			SubjectCode: item.SubjectCode,
			Amount:      item.Amount,
			Summary:     item.Summary,
		})
	}

	if err := s.repo.Create(ctx, tx, voucher); err != nil {
		return nil, fmt.Errorf("写入凭证失败: %w", err)
	}

	event := model.EventVoucherPosted
	if req.reversalOf != nil {
		event = model.EventVoucherReversed
	}
	if err := s.writeEvent(ctx, tx, event, voucher); err != nil {
		return nil, err
	}
	return voucher, nil
}

// validate 校验分录并返回凭证金额
//
// 【不变量】每行金额 > 0 且为最小货币单位的整数倍，借方合计严格等于贷方合计
func (s *VoucherService) validate(ctx context.Context, tx *gorm.DB, req *PostRequest) (decimal.Decimal, error) {
	if req.Creator == "" {
		return decimal.Zero, errs.Validation("制单人不能为空")
	}
	if req.SourceType == "" {
		return decimal.Zero, errs.Validation("凭证来源不能为空")
	}
	if len(req.Items) < 2 {
		return decimal.Zero, errs.Validation("凭证至少需要一借一贷两条分录")
	}

	unit := s.cfg.Ledger.EpsilonDecimal()
	debit, credit := decimal.Zero, decimal.Zero
	codes := make([]string, 0, len(req.Items))
	for i, item := range req.Items {
		if !item.EntryType.Valid() {
			return decimal.Zero, errs.Validation("第%d行借贷方向不合法: %s", i+1, item.EntryType)
		}
		if item.SubjectCode == "" {
			return decimal.Zero, errs.Validation("第%d行科目不能为空", i+1)
		}
		if !item.Amount.IsPositive() {
			return decimal.Zero, errs.Validation("第%d行金额必须大于0", i+1)
		}
		if !unit.IsZero() && !item.Amount.Mod(unit).IsZero() {
			return decimal.Zero, errs.Validation("第%d行金额精度超过 %s", i+1, unit)
		}
		if item.EntryType == model.EntryDebit {
			debit = debit.Add(item.Amount)
		} else {
			credit = credit.Add(item.Amount)
		}
		codes = append(codes, item.SubjectCode)
	}

	if !debit.Equal(credit) {
		return decimal.Zero, errs.ErrUnbalanced.Wrap("借方 %s，贷方 %s", debit.StringFixed(2), credit.StringFixed(2))
	}

	subjects, err := s.subjectRepo.GetByCodes(ctx, tx, codes)
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询科目失败: %w", err)
	}
	for _, code := range codes {
		subject, ok := subjects[code]
		if !ok {
			return decimal.Zero, errs.ErrSubjectNotFound.Wrap("%s", code)
		}
		if !subject.Active && !req.allowInactive {
			return decimal.Zero, errs.ErrSubjectInactive.Wrap("%s", code)
		}
	}
	return debit, nil
}

func (s *VoucherService) writeEvent(ctx context.Context, tx *gorm.DB, event string, v *model.Voucher) error {
	payload, err := json.Marshal(model.VoucherEvent{
		EventType:   event,
		VoucherID:   v.ID,
		VoucherNo:   v.VoucherNo,
		VoucherDate: v.VoucherDate.Format(model.DateLayout),
		SourceType:  v.SourceType,
		SourceID:    v.SourceID,
		ReversalOf:  v.ReversalOf,
		TotalAmount: v.TotalAmount.StringFixed(2),
		Creator:     v.Creator,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("序列化账务事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: idgen.GenerateMessageKey(),
		Topic:      s.cfg.Kafka.Topic.LedgerEvent,
		EventType:  event,
		Payload:    payload,
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// ============================================================================
// 手工凭证
// ============================================================================

type ManualVoucherRequest struct {
	Date        string        `json:"date"` // YYYY-MM-DD，为空取当天
	Description string        `json:"description"`
	Items       []ItemRequest `json:"items" binding:"required,min=2,dive"`
}

func (s *VoucherService) CreateManual(ctx context.Context, req *ManualVoucherRequest, creator string) (*model.Voucher, error) {
	var date time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation(model.DateLayout, req.Date, time.Local)
		if err != nil {
			return nil, errs.Validation("凭证日期格式应为 YYYY-MM-DD")
		}
		date = d
	}

	var voucher *model.Voucher
	err := s.db.Transaction(func(tx *gorm.DB) error {
		v, err := s.Post(ctx, tx, &PostRequest{
			Date:        date,
			Description: req.Description,
			SourceType:  model.SourceManual,
			Creator:     creator,
			Items:       req.Items,
		})
		if err != nil {
			return err
		}
		voucher = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("手工凭证过账",
		zap.String("voucher_no", voucher.VoucherNo),
		zap.String("amount", voucher.TotalAmount.StringFixed(2)),
		zap.String("creator", creator),
	)
	return voucher, nil
}

// ============================================================================
// 冲销 / 删除
// ============================================================================

// Reverse 在调用方事务内冲销凭证，冲销凭证日期为操作当天
func (s *VoucherService) Reverse(ctx context.Context, tx *gorm.DB, voucherID int64, creator, reason string) (*model.Voucher, error) {
	original, err := s.repo.GetByIDForUpdate(ctx, tx, voucherID)
	if err != nil {
		return nil, err
	}
	if original.ReversalOf != nil {
		return nil, errs.ErrAlreadyReversed.Wrap("%s 本身是冲销凭证", original.VoucherNo)
	}
	if original.ReversedBy != nil {
		return nil, errs.ErrAlreadyReversed.Wrap("%s", original.VoucherNo)
	}

	items := make([]ItemRequest, 0, len(original.Items))
	for _, item := range original.Items {
		items = append(items, ItemRequest{
			EntryType:   item.EntryType.Opposite(),
			SubjectCode: item.SubjectCode,
			Amount:      item.Amount,
			Summary:     item.Summary,
		})
	}

	description := fmt.Sprintf("冲销 %s", original.VoucherNo)
	if reason != "" {
		description = fmt.Sprintf("%s：%s", description, reason)
	}

	reversal, err := s.Post(ctx, tx, &PostRequest{
		Date:          time.Now(),
		Description:   description,
		SourceType:    model.ReversalSource(original.SourceType),
		SourceID:      original.SourceID,
		Creator:       creator,
		Items:         items,
		reversalOf:    &original.ID,
		allowInactive: true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkReversed(ctx, tx, original.ID, reversal.ID); err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseManual 冲销手工凭证，独立事务
func (s *VoucherService) ReverseManual(ctx context.Context, voucherID int64, creator, reason string) (*model.Voucher, error) {
	var reversal *model.Voucher
	err := s.db.Transaction(func(tx *gorm.DB) error {
		original, err := s.repo.GetByIDForUpdate(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if original.SourceType != model.SourceManual {
			return errs.ErrNotManualSource.Wrap("%s 来源为 %s", original.VoucherNo, original.SourceType)
		}
		reversal, err = s.Reverse(ctx, tx, voucherID, creator, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("手工凭证冲销", zap.Int64("voucher_id", voucherID), zap.String("reversal_no", reversal.VoucherNo))
	return reversal, nil
}

// Delete 删除手工凭证，已被冲销的手工凭证不能再删除
func (s *VoucherService) Delete(ctx context.Context, voucherID int64, operator string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		voucher, err := s.repo.GetByIDForUpdate(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if voucher.SourceType != model.SourceManual {
			return errs.ErrNotManualSource.Wrap("%s 来源为 %s", voucher.VoucherNo, voucher.SourceType)
		}
		if voucher.ReversedBy != nil {
			return errs.ErrAlreadyReversed.Wrap("%s 已被冲销，不能删除", voucher.VoucherNo)
		}
		if err := s.repo.Delete(ctx, tx, voucherID); err != nil {
			return fmt.Errorf("删除凭证失败: %w", err)
		}
		voucher.Creator = operator
		return s.writeEvent(ctx, tx, model.EventVoucherDeleted, voucher)
	})
	if err != nil {
		return err
	}
	s.log.Info("删除手工凭证", zap.Int64("voucher_id", voucherID), zap.String("operator", operator))
	return nil
}

// ============================================================================
// 查询
// ============================================================================

func (s *VoucherService) Get(ctx context.Context, voucherID int64) (*model.Voucher, error) {
	return s.repo.GetByID(ctx, nil, voucherID)
}

func (s *VoucherService) GetByNo(ctx context.Context, voucherNo string) (*model.Voucher, error) {
	return s.repo.GetByNo(ctx, voucherNo)
}

func (s *VoucherService) List(ctx context.Context, f repository.VoucherFilter) ([]*model.Voucher, int64, error) {
	return s.repo.List(ctx, f)
}

// SubjectTotal 某科目在区间内的借方、贷方发生额
type SubjectTotal struct {
	SubjectCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// SubjectTotals 汇总 [from, to) 内各科目的借贷发生额，冲销凭证自然抵消原凭证
func (s *VoucherService) SubjectTotals(ctx context.Context, from, to time.Time) (map[string]*SubjectTotal, error) {
	lines, err := s.repo.LinesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("读取分录失败: %w", err)
	}
	totals := make(map[string]*SubjectTotal)
	for _, line := range lines {
		t, ok := totals[line.SubjectCode]
		if !ok {
			t = &SubjectTotal{SubjectCode: line.SubjectCode, Debit: decimal.Zero, Credit: decimal.Zero}
			totals[line.SubjectCode] = t
		}
		if line.EntryType == model.EntryDebit {
			t.Debit = t.Debit.Add(line.Amount)
		} else {
			t.Credit = t.Credit.Add(line.Amount)
		}
	}
	return totals, nil
}
