package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 凭证来源类型
// ============================================================================

type SourceType string

// payment_reversal 同时用于两类凭证，按 reversal_of 区分 source_id 指向的表：
//
//	reversal_of 非空  删除缴费记录产生的冲销凭证，source_id = payment_record.id
//	reversal_of 为空  退费凭证，source_id = tuition_adjustment.id
const (
	SourceTuitionPayment   SourceType = "tuition_payment"   // 学费收款
	SourcePaymentReversal  SourceType = "payment_reversal"  // 收款冲销 / 退费
	SourceTuitionDiscount  SourceType = "tuition_discount"  // 学费优惠
	SourceDiscountReversal SourceType = "discount_reversal" // 优惠冲销
	SourceCoachSalary      SourceType = "coach_salary"      // 教练工资发放
	SourceExpensePayment   SourceType = "expense_payment"   // 日常费用支付
	SourceSubmitConfirm    SourceType = "submit_confirm"    // 总部上交确认
	SourceSubmitRevoke     SourceType = "submit_revoke"     // 总部上交撤销
	SourceManual           SourceType = "manual"            // 手工凭证
)

// reversalSources 原凭证来源 -> 冲销凭证来源
var reversalSources = map[SourceType]SourceType{
	SourceTuitionPayment:  SourcePaymentReversal,
	SourceTuitionDiscount: SourceDiscountReversal,
	SourceSubmitConfirm:   SourceSubmitRevoke,
}

// ReversalSource 返回冲销凭证的来源类型，未登记的类型统一加 _reversal 后缀
func ReversalSource(s SourceType) SourceType {
	if r, ok := reversalSources[s]; ok {
		return r
	}
	return s + "_reversal"
}

// IsSystem 非手工凭证都由业务动作生成，只能通过业务自身的冲销路径撤销
func (s SourceType) IsSystem() bool {
	return s != SourceManual
}

// ============================================================================
// 凭证实体
// ============================================================================

// Voucher 记账凭证
//
// 【不变量】借方合计 == 贷方合计，且合计 > 0
// 历史凭证不修改，撤销一律生成借贷方向相反的冲销凭证
type Voucher struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherNo   string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"voucher_no"`
	VoucherDate time.Time       `gorm:"type:date;index;not null" json:"voucher_date"`
	Description string          `gorm:"type:varchar(256)" json:"description"`
	SourceType  SourceType      `gorm:"type:varchar(32);index;not null" json:"source_type"`
	SourceID    *int64          `gorm:"index" json:"source_id,omitempty"`
	Creator     string          `gorm:"type:varchar(64);not null" json:"creator"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	ReversalOf  *int64          `gorm:"index" json:"reversal_of,omitempty"` // 本凭证冲销的原凭证
	ReversedBy  *int64          `json:"reversed_by,omitempty"`              // 冲销本凭证的凭证
	Items       []VoucherItem   `gorm:"foreignKey:VoucherID" json:"items"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Voucher) TableName() string {
	return "voucher"
}

// Totals 计算借贷合计
func (v *Voucher) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, item := range v.Items {
		if item.EntryType == EntryDebit {
			debit = debit.Add(item.Amount)
		} else {
			credit = credit.Add(item.Amount)
		}
	}
	return debit, credit
}

// VoucherItem 凭证分录，只属于一张凭证
type VoucherItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherID   int64           `gorm:"index;not null" json:"voucher_id"`
	LineNo      int             `gorm:"not null" json:"line_no"`
	EntryType   EntryType       `gorm:"type:varchar(8);not null" json:"entry_type"`
	SubjectCode string          `gorm:"type:varchar(32);index;not null" json:"subject_code"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Summary     string          `gorm:"type:varchar(256)" json:"summary"`
}

func (VoucherItem) TableName() string {
	return "voucher_item"
}

// VoucherSequence 凭证号日序列
// 同一天的凭证号在事务内锁住该行递增，保证按天单调且不重复
type VoucherSequence struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	SeqDate string `gorm:"type:varchar(8);uniqueIndex;not null"` // yyyymmdd
	LastSeq int    `gorm:"not null;default:0"`
}

func (VoucherSequence) TableName() string {
	return "voucher_sequence"
}
