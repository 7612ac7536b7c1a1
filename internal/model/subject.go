package model

import (
	"time"
)

// SubjectType 科目类别
type SubjectType string

const (
	SubjectTypeAsset     SubjectType = "asset"
	SubjectTypeLiability SubjectType = "liability"
	SubjectTypeEquity    SubjectType = "equity"
	SubjectTypeIncome    SubjectType = "income"
	SubjectTypeExpense   SubjectType = "expense"
)

// EntryType 借贷方向，凭证分录与科目余额方向共用
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Opposite 返回相反方向，冲销凭证使用
func (e EntryType) Opposite() EntryType {
	if e == EntryDebit {
		return EntryCredit
	}
	return EntryDebit
}

func (e EntryType) Valid() bool {
	return e == EntryDebit || e == EntryCredit
}

// ConventionalDirection 按科目类别给出约定的余额方向
func ConventionalDirection(t SubjectType) (EntryType, bool) {
	switch t {
	case SubjectTypeAsset, SubjectTypeExpense:
		return EntryDebit, true
	case SubjectTypeIncome, SubjectTypeLiability, SubjectTypeEquity:
		return EntryCredit, true
	default:
		return "", false
	}
}

// Subject 会计科目
// 被凭证分录引用后只能停用，不能物理删除
type Subject struct {
	ID               int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code             string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Name             string      `gorm:"type:varchar(64);not null" json:"name"`
	Type             SubjectType `gorm:"type:varchar(16);index;not null" json:"type"`
	BalanceDirection EntryType   `gorm:"type:varchar(8);not null" json:"balance_direction"`
	ParentCode       *string     `gorm:"type:varchar(32)" json:"parent_code,omitempty"`
	Active           bool        `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subject) TableName() string {
	return "subject"
}

// 业务用途编码，业务代码只认用途，不写死科目编码
const (
	UsageReceiptCash     = "receipt_cash"     // 现金收款
	UsageReceiptBank     = "receipt_bank"     // 银行/线上收款
	UsageTuitionIncome   = "tuition_income"   // 学费收入
	UsageTuitionDiscount = "tuition_discount" // 学费优惠
	UsageRefundPayout    = "refund_payout"    // 退费付款
	UsageSalaryExpense   = "salary_expense"   // 教练工资费用
	UsageSalaryPayout    = "salary_payout"    // 工资发放付款
	UsageExpensePayout   = "expense_payout"   // 日常费用付款
)

// UsageMapping 用途与科目的映射
// 修改映射只影响之后生成的凭证，历史凭证分录保存的是科目编码快照
type UsageMapping struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UsageCode   string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"usage_code"`
	SubjectCode string    `gorm:"type:varchar(32);not null" json:"subject_code"`
	Description string    `gorm:"type:varchar(128)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UsageMapping) TableName() string {
	return "subject_usage"
}
