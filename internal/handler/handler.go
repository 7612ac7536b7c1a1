package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/repository"
	"github.com/DT191220/YDJX-sub000/internal/service"
	"github.com/DT191220/YDJX-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	svc *service.Services
	log *zap.Logger
}

// NewHandler 创建处理器实例
func NewHandler(svc *service.Services, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// 状态类、一致性类错误对应的业务码
var businessCodes = map[string]int{
	errs.ErrUnbalanced.Code:          response.CodeUnbalanced,
	errs.ErrExceedsReceivable.Code:   response.CodeExceedsReceivable,
	errs.ErrSubjectInactive.Code:     response.CodeSubjectInactive,
	errs.ErrAlreadyRefunded.Code:     response.CodeAlreadyRefunded,
	errs.ErrAlreadyReversed.Code:     response.CodeAlreadyReversed,
	errs.ErrNotManualSource.Code:     response.CodeNotManualSource,
	errs.ErrImmutablePaidRecord.Code: response.CodeImmutablePaid,
	errs.ErrStatusTransition.Code:    response.CodeStatusTransition,
	errs.ErrAlreadyPaid.Code:         response.CodeAlreadyPaid,
	errs.ErrNotPaid.Code:             response.CodeNotPaid,
	errs.ErrSubjectInUse.Code:        response.CodeSubjectInUse,
}

// fail 把服务层错误翻译成统一响应
func (h *Handler) fail(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		response.ParamError(c, err.Error())
		return
	case errs.KindNotFound:
		response.NotFound(c, err.Error())
		return
	case errs.KindConsistency, errs.KindState:
		code, ok := businessCodes[errs.CodeOf(err)]
		if !ok {
			code = response.CodeBusinessError
		}
		response.BusinessError(c, code, err.Error())
		return
	}

	if errors.Is(err, lock.ErrLockFailed) || errors.Is(err, repository.ErrOptimisticLock) {
		response.BusinessError(c, response.CodeLockBusy, "操作繁忙，请稍后重试")
		return
	}

	h.log.Error("请求处理失败",
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(ctxRequestID)),
		zap.Error(err),
	)
	response.ServerError(c, "服务器内部错误")
}

// operatorOf 优先取认证中间件写入的操作人，其次取请求体里的
func operatorOf(c *gin.Context, fallback string) string {
	if op := c.GetString(ctxOperator); op != "" {
		return op
	}
	return fallback
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 学员收费相关接口
// ============================================================

// AddPayment 学员缴费
// POST /api/v1/payments
func (h *Handler) AddPayment(c *gin.Context) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.Operator = operatorOf(c, req.Operator)

	record, err := h.svc.Ledger.AddPayment(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, record)
}

// DeletePayment 删除缴费记录（冲销凭证）
// DELETE /api/v1/payments/:id
func (h *Handler) DeletePayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Ledger.DeletePaymentRecord(c.Request.Context(), id, operatorOf(c, c.Query("operator"))); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Refund 学员退费
// POST /api/v1/refunds
func (h *Handler) Refund(c *gin.Context) {
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.Operator = operatorOf(c, req.Operator)

	adj, err := h.svc.Ledger.Refund(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, adj)
}

// Discount 学员优惠
// POST /api/v1/discounts
func (h *Handler) Discount(c *gin.Context) {
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.Operator = operatorOf(c, req.Operator)

	adj, err := h.svc.Ledger.Discount(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, adj)
}

// GetLedger 学员收费状态
// GET /api/v1/students/:id/ledger
func (h *Handler) GetLedger(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	student, err := h.svc.Ledger.GetState(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"student_id":        student.ID,
		"contract_amount":   student.ContractAmount,
		"actual_amount":     student.ActualAmount,
		"debt_amount":       student.DebtAmount,
		"discount_amount":   student.DiscountAmount,
		"account_balance":   student.AccountBalance,
		"payment_status":    student.PaymentStatus,
		"enrollment_status": student.EnrollmentStatus,
	})
}

// ListPayments 学员缴费记录
// GET /api/v1/students/:id/payments
func (h *Handler) ListPayments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	records, err := h.svc.Ledger.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, records)
}

// ListAdjustments 学员退费、优惠记录
// GET /api/v1/students/:id/adjustments
func (h *Handler) ListAdjustments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Ledger.ListAdjustments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// ============================================================
// 总部上交相关接口
// ============================================================

// ActiveHeadquarterConfig 查询生效的上交配置
// GET /api/v1/headquarter-configs/active?class_type_id=xxx&date=2024-05-01
func (h *Handler) ActiveHeadquarterConfig(c *gin.Context) {
	var classTypeID *int64
	if raw := c.Query("class_type_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.ParamError(c, "class_type_id 参数错误")
			return
		}
		classTypeID = &id
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}

	res, err := h.svc.Headquarter.Resolve(c.Request.Context(), classTypeID, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

// CreateHeadquarterConfig 新增上交配置
// POST /api/v1/headquarter-configs
func (h *Handler) CreateHeadquarterConfig(c *gin.Context) {
	var req service.HeadquarterConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	cfg, err := h.svc.Headquarter.CreateConfig(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, cfg)
}

// ListHeadquarterConfigs 上交配置列表
// GET /api/v1/headquarter-configs
func (h *Handler) ListHeadquarterConfigs(c *gin.Context) {
	list, err := h.svc.Headquarter.ListConfigs(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// DeactivateHeadquarterConfig 停用上交配置
// POST /api/v1/headquarter-configs/:id/deactivate
func (h *Handler) DeactivateHeadquarterConfig(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Headquarter.DeactivateConfig(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// SubmissionPreview 学员上交总部金额预览
// GET /api/v1/students/:id/submission-preview?date=2024-05-01
func (h *Handler) SubmissionPreview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	preview, err := h.svc.Headquarter.Compute(c.Request.Context(), id, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, preview)
}

// queryDate 读取 YYYY-MM-DD 查询参数，为空取当天
func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), true
	}
	d, err := time.ParseInLocation(model.DateLayout, raw, time.Local)
	if err != nil {
		response.ParamError(c, name+" 格式应为 YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
