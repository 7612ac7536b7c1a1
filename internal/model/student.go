package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 缴费状态 / 报名状态
// ============================================================================
//
// 缴费状态只有 4 个值，报名状态有 7 个值，其中只有 4 个由缴费情况推导。
// 两个枚举分开定义，由 EnrollmentFor 显式映射，不在界面层混用字符串。

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type EnrollmentStatus string

const (
	EnrollmentInquiring    EnrollmentStatus = "inquiring"    // 咨询中
	EnrollmentReserved     EnrollmentStatus = "reserved"     // 已预约
	EnrollmentUnpaid       EnrollmentStatus = "enrolled_unpaid"
	EnrollmentPartial      EnrollmentStatus = "enrolled_partial"
	EnrollmentPaid         EnrollmentStatus = "enrolled_paid"
	EnrollmentRefunded     EnrollmentStatus = "refunded"
	EnrollmentDisqualified EnrollmentStatus = "disqualified" // 取消资格
)

// paymentToEnrollment 缴费状态 -> 报名状态
var paymentToEnrollment = map[PaymentStatus]EnrollmentStatus{
	PaymentUnpaid:   EnrollmentUnpaid,
	PaymentPartial:  EnrollmentPartial,
	PaymentPaid:     EnrollmentPaid,
	PaymentRefunded: EnrollmentRefunded,
}

// EnrollmentFor 返回缴费状态对应的报名状态
func EnrollmentFor(p PaymentStatus) (EnrollmentStatus, bool) {
	e, ok := paymentToEnrollment[p]
	return e, ok
}

// Derive 由合同金额、优惠金额、实收金额推导缴费状态和报名状态。
// 纯函数，所有改动学员金额的操作都调用它，不在各处重复 if/else。
func Derive(contract, discount, actual decimal.Decimal) (PaymentStatus, EnrollmentStatus) {
	payable := contract.Sub(discount)

	var status PaymentStatus
	switch {
	case actual.LessThanOrEqual(decimal.Zero):
		status = PaymentUnpaid
	case actual.LessThan(payable):
		status = PaymentPartial
	default:
		status = PaymentPaid
	}

	enrollment, _ := EnrollmentFor(status)
	return status, enrollment
}

// DebtAmount 欠费金额 = max(0, 合同 - 优惠 - 实收)
func DebtAmount(contract, discount, actual decimal.Decimal) decimal.Decimal {
	debt := contract.Sub(discount).Sub(actual)
	if debt.IsNegative() {
		return decimal.Zero
	}
	return debt
}

// ============================================================================
// 学员（报名信息由学员管理模块维护，这里只读写账务相关字段）
// ============================================================================

type Student struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string           `gorm:"type:varchar(64);not null" json:"name"`
	ClassTypeID      *int64           `gorm:"index" json:"class_type_id,omitempty"`
	CoachID          *int64           `gorm:"index" json:"coach_id,omitempty"`
	EnrollDate       *time.Time       `gorm:"type:date;index" json:"enroll_date,omitempty"`
	ContractAmount   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"contract_amount"`
	DiscountAmount   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"discount_amount"`
	ActualAmount     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"actual_amount"` // 累计净实收
	DebtAmount       decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"debt_amount"`
	AccountBalance   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"account_balance"` // 超出合同的预存余额
	PaymentStatus    PaymentStatus    `gorm:"type:varchar(16);not null;default:unpaid" json:"payment_status"`
	EnrollmentStatus EnrollmentStatus `gorm:"type:varchar(20);index;not null;default:inquiring" json:"enrollment_status"`
	Version          int              `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Student) TableName() string {
	return "student"
}

// Rederive 按当前金额重新推导欠费和状态。
// 退费是终态：已退费学员的状态不会被重新推导覆盖。
func (s *Student) Rederive() {
	s.DebtAmount = DebtAmount(s.ContractAmount, s.DiscountAmount, s.ActualAmount)
	if s.PaymentStatus == PaymentRefunded {
		return
	}
	s.PaymentStatus, s.EnrollmentStatus = Derive(s.ContractAmount, s.DiscountAmount, s.ActualAmount)
}

// MarkRefunded 退费强制置为退费状态，不论剩余实收
func (s *Student) MarkRefunded() {
	s.DebtAmount = DebtAmount(s.ContractAmount, s.DiscountAmount, s.ActualAmount)
	s.PaymentStatus = PaymentRefunded
	s.EnrollmentStatus = EnrollmentRefunded
}

// ============================================================================
// 缴费记录
// ============================================================================

const (
	PayMethodCash   = "cash"
	PayMethodBank   = "bank"
	PayMethodWechat = "wechat"
	PayMethodAlipay = "alipay"
)

// PaymentRecord 缴费记录
// 只追加；删除时冲销对应凭证并回滚学员金额，记录本身标记为已冲销
type PaymentRecord struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReceiptNo         string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"receipt_no"`
	StudentID         int64           `gorm:"index;not null" json:"student_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PayDate           time.Time       `gorm:"type:date;not null" json:"pay_date"`
	Method            string          `gorm:"type:varchar(16);not null" json:"method"`
	Operator          string          `gorm:"type:varchar(64);not null" json:"operator"`
	Notes             string          `gorm:"type:varchar(256)" json:"notes"`
	VoucherID         int64           `gorm:"index;not null" json:"voucher_id"`
	Reversed          bool            `gorm:"not null;default:false" json:"reversed"`
	ReversedAt        *time.Time      `json:"reversed_at,omitempty"`
	ReversalVoucherID *int64          `json:"reversal_voucher_id,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}

const (
	AdjustmentDiscount = "discount"
	AdjustmentRefund   = "refund"
)

// TuitionAdjustment 优惠 / 退费记录，作为对应凭证的来源单据
type TuitionAdjustment struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AdjustmentNo string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"adjustment_no"`
	StudentID    int64           `gorm:"index;not null" json:"student_id"`
	Type         string          `gorm:"type:varchar(16);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Operator     string          `gorm:"type:varchar(64);not null" json:"operator"`
	Notes        string          `gorm:"type:varchar(256)" json:"notes"`
	VoucherID    int64           `gorm:"index" json:"voucher_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (TuitionAdjustment) TableName() string {
	return "tuition_adjustment"
}
