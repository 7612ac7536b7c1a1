// Package errs 定义账务核心的错误分类。
//
// 四类错误都在事务内同步检测，一旦返回即整体回滚：
//
//	Validation  入参缺失或不合法，写库前拒绝
//	Consistency 借贷不平、金额超过可退金额等业务规则冲突
//	State       对不可变记录的修改、非手工凭证删除、重复退费等状态冲突
//	NotFound    记录不存在
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConsistency
	KindState
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConsistency:
		return "ConsistencyError"
	case KindState:
		return "StateError"
	case KindNotFound:
		return "NotFoundError"
	default:
		return "UnknownError"
	}
}

// Error 业务错误，Code 相同即视为同一种错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is 按 Code 比较，Wrap 之后的错误仍能与哨兵错误匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap 在哨兵错误上追加上下文说明
func (e *Error) Wrap(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
	}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// 哨兵错误
var (
	ErrValidation = newError(KindValidation, "VALIDATION", "参数校验失败")
	ErrNotFound   = newError(KindNotFound, "NOT_FOUND", "记录不存在")

	ErrStudentNotFound         = newError(KindNotFound, "STUDENT_NOT_FOUND", "学员不存在")
	ErrPaymentNotFound         = newError(KindNotFound, "PAYMENT_NOT_FOUND", "缴费记录不存在")
	ErrVoucherNotFound         = newError(KindNotFound, "VOUCHER_NOT_FOUND", "凭证不存在")
	ErrSubjectNotFound         = newError(KindNotFound, "SUBJECT_NOT_FOUND", "会计科目不存在")
	ErrUsageNotFound           = newError(KindNotFound, "USAGE_NOT_FOUND", "科目用途未配置")
	ErrSalaryNotFound          = newError(KindNotFound, "SALARY_NOT_FOUND", "工资记录不存在")
	ErrExpenseNotFound         = newError(KindNotFound, "EXPENSE_NOT_FOUND", "费用记录不存在")
	ErrAllocationNotFound      = newError(KindNotFound, "ALLOCATION_NOT_FOUND", "费用分摊记录不存在")
	ErrHeadquarterNotFound     = newError(KindNotFound, "HQ_CONFIG_NOT_FOUND", "总部上交配置不存在")
	ErrSalaryConfigMissing     = newError(KindValidation, "SALARY_CONFIG_MISSING", "未配置生效的教练工资标准")
	ErrDeductionReasonRequired = newError(KindValidation, "DEDUCTION_REASON_REQUIRED", "扣款金额大于0时必须填写扣款原因")

	ErrUnbalanced        = newError(KindConsistency, "UNBALANCED", "借贷不平衡")
	ErrExceedsReceivable = newError(KindConsistency, "EXCEEDS_RECEIVABLE", "金额超过已收金额")
	ErrSubjectInactive   = newError(KindConsistency, "SUBJECT_INACTIVE", "会计科目已停用")

	ErrAlreadyRefunded     = newError(KindState, "ALREADY_REFUNDED", "学员已退费")
	ErrAlreadyReversed     = newError(KindState, "ALREADY_REVERSED", "记录已冲销")
	ErrNotManualSource     = newError(KindState, "NOT_MANUAL_SOURCE", "系统生成的凭证不允许直接删除")
	ErrImmutablePaidRecord = newError(KindState, "IMMUTABLE_PAID_RECORD", "已发放的工资记录不可修改")
	ErrStatusTransition    = newError(KindState, "INVALID_STATUS_TRANSITION", "状态流转不合法")
	ErrAlreadyPaid         = newError(KindState, "ALREADY_PAID", "费用已支付")
	ErrNotPaid             = newError(KindState, "NOT_PAID", "费用尚未支付")
	ErrSubjectInUse        = newError(KindState, "SUBJECT_IN_USE", "科目已被凭证引用，只能停用")
)

// Validation 构造参数校验错误
func Validation(format string, args ...interface{}) *Error {
	return ErrValidation.Wrap(format, args...)
}

// KindOf 返回错误分类，非业务错误返回 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf 返回业务错误码，非业务错误返回空串
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
