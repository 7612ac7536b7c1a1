package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 年度费用分摊
// ============================================================================

// ExpenseAllocation 把一笔年度费用平均摊到 [StartMonth, EndMonth] 各月
type ExpenseAllocation struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ExpenseName    string          `gorm:"type:varchar(64);not null" json:"expense_name"`
	SubjectCode    string          `gorm:"type:varchar(32);not null" json:"subject_code"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	AllocationYear int             `gorm:"index;not null" json:"allocation_year"`
	StartMonth     int             `gorm:"not null" json:"start_month"`
	EndMonth       int             `gorm:"not null" json:"end_month"`
	MonthlyAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monthly_amount"`
	Remarks        string          `gorm:"type:varchar(256)" json:"remarks"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ExpenseAllocation) TableName() string {
	return "expense_allocation"
}

func (a *ExpenseAllocation) Months() int {
	return a.EndMonth - a.StartMonth + 1
}

// Covers 判断某年某月是否在分摊区间内
func (a *ExpenseAllocation) Covers(year, month int) bool {
	return year == a.AllocationYear && month >= a.StartMonth && month <= a.EndMonth
}

// ComputeMonthlyAmount 月摊额 = 总额 / 月数，保留两位小数（截断）
func (a *ExpenseAllocation) ComputeMonthlyAmount() decimal.Decimal {
	n := a.Months()
	if n <= 0 {
		return decimal.Zero
	}
	return a.TotalAmount.Div(decimal.NewFromInt(int64(n))).Truncate(2)
}

// AmountForMonth 返回某月实际计入的分摊额
// 前 n-1 个月取月摊额，最后一个月取余数，保证各月合计严格等于总额
func (a *ExpenseAllocation) AmountForMonth(year, month int) decimal.Decimal {
	if !a.Covers(year, month) {
		return decimal.Zero
	}
	monthly := a.ComputeMonthlyAmount()
	if month < a.EndMonth {
		return monthly
	}
	return a.TotalAmount.Sub(monthly.Mul(decimal.NewFromInt(int64(a.Months() - 1))))
}

// ============================================================================
// 固定月度费用
// ============================================================================

// ExpenseConfig 固定月度费用配置，如房租、水电
type ExpenseConfig struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(64);not null" json:"name"`
	SubjectCode string          `gorm:"type:varchar(32);not null" json:"subject_code"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaymentDay  int             `gorm:"not null" json:"payment_day"` // 每月付款日 1-31
	Active      bool            `gorm:"not null;default:true" json:"active"`
	Remarks     string          `gorm:"type:varchar(256)" json:"remarks"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExpenseConfig) TableName() string {
	return "expense_config"
}

const (
	ExpenseStatusPending = "pending"
	ExpenseStatusPaid    = "paid"
)

// MonthlyExpense 某配置在某月的应付记录，(config_id, expense_month) 唯一
type MonthlyExpense struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ConfigID     int64           `gorm:"uniqueIndex:uk_config_month;not null" json:"config_id"`
	ExpenseMonth string          `gorm:"type:varchar(7);uniqueIndex:uk_config_month;index;not null" json:"expense_month"`
	Name         string          `gorm:"type:varchar(64);not null" json:"name"`
	SubjectCode  string          `gorm:"type:varchar(32);not null" json:"subject_code"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	DueDate      time.Time       `gorm:"type:date;not null" json:"due_date"`
	Status       string          `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	Operator     string          `gorm:"type:varchar(64)" json:"operator"`
	PayMethod    string          `gorm:"type:varchar(16)" json:"pay_method"`
	VoucherID    *int64          `json:"voucher_id,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MonthlyExpense) TableName() string {
	return "monthly_expense"
}

// ============================================================================
// 月份工具
// ============================================================================

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// ParseMonth 解析 YYYY-MM，返回该月第一天和最后一天
func ParseMonth(month string) (first, last time.Time, err error) {
	first, err = time.ParseInLocation(MonthLayout, month, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("月份格式应为 YYYY-MM: %s", month)
	}
	last = first.AddDate(0, 1, -1)
	return first, last, nil
}

// DueDate 付款日超过当月天数时取当月最后一天
func DueDate(month string, paymentDay int) (time.Time, error) {
	first, last, err := ParseMonth(month)
	if err != nil {
		return time.Time{}, err
	}
	if paymentDay < 1 {
		paymentDay = 1
	}
	if paymentDay > last.Day() {
		return last, nil
	}
	return first.AddDate(0, 0, paymentDay-1), nil
}
