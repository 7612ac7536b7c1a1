package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 外部模块维护的只读数据：教练、班型、考试成绩
// ============================================================================

const (
	CoachStatusActive   = "active"
	CoachStatusInactive = "inactive"
)

type Coach struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	Status    string    `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Coach) TableName() string {
	return "coach"
}

type ClassType struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string          `gorm:"type:varchar(64);not null" json:"name"`
	ContractPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"contract_price"`
}

func (ClassType) TableName() string {
	return "class_type"
}

const (
	ExamSubject2 = 2 // 科目二
	ExamSubject3 = 3 // 科目三

	ExamResultPass = "pass"
	ExamResultFail = "fail"
)

// ExamResult 考试成绩，按考试日期归属月份、按 CoachID 归属教练
type ExamResult struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID int64     `gorm:"index;not null" json:"student_id"`
	CoachID   int64     `gorm:"index;not null" json:"coach_id"`
	Subject   int       `gorm:"not null" json:"subject"`
	Result    string    `gorm:"type:varchar(8);not null" json:"result"`
	ExamDate  time.Time `gorm:"type:date;index;not null" json:"exam_date"`
}

func (ExamResult) TableName() string {
	return "exam_result"
}

// ============================================================================
// 工资标准
// ============================================================================

// SalaryConfig 教练工资标准，按生效日期取最近一条
type SalaryConfig struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EffectiveDate   time.Time       `gorm:"type:date;index;not null" json:"effective_date"`
	DailyWage       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"daily_wage"`       // 日工资
	Subject2Rate    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subject2_rate"`    // 科目二每通过一人提成
	Subject3Rate    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subject3_rate"`    // 科目三每通过一人提成
	RecruitmentRate decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"recruitment_rate"` // 每招一名新学员提成
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (SalaryConfig) TableName() string {
	return "coach_salary_config"
}

// ============================================================================
// 教练月工资
// ============================================================================

const (
	SalaryStatusDraft     = "draft"
	SalaryStatusConfirmed = "confirmed"
	SalaryStatusPaid      = "paid"
)

// salaryTransitions 只允许向前流转，已发放不可回退
var salaryTransitions = map[string][]string{
	SalaryStatusDraft:     {SalaryStatusConfirmed},
	SalaryStatusConfirmed: {SalaryStatusPaid},
}

func CanSalaryTransitionTo(current, target string) bool {
	for _, s := range salaryTransitions[current] {
		if s == target {
			return true
		}
	}
	return false
}

// CoachMonthlySalary 教练月工资单
//
// 派生字段：基本工资、通过人数、提成、新招人数、应发合计
// 人工字段：出勤天数、奖金、扣款、扣款原因、实发、备注
type CoachMonthlySalary struct {
	ID                    int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	CoachID               int64            `gorm:"uniqueIndex:uk_coach_month;not null" json:"coach_id"`
	SalaryMonth           string           `gorm:"type:varchar(7);uniqueIndex:uk_coach_month;index;not null" json:"salary_month"`
	AttendanceDays        int              `gorm:"not null;default:0" json:"attendance_days"`
	BaseSalary            decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"base_salary"`
	Subject2PassCount     int              `gorm:"not null;default:0" json:"subject2_pass_count"`
	Subject3PassCount     int              `gorm:"not null;default:0" json:"subject3_pass_count"`
	Subject2Commission    decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"subject2_commission"`
	Subject3Commission    decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"subject3_commission"`
	NewStudentCount       int              `gorm:"not null;default:0" json:"new_student_count"`
	RecruitmentCommission decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"recruitment_commission"`
	Bonus                 decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"bonus"`
	Deduction             decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"deduction"`
	DeductionReason       string           `gorm:"type:varchar(256)" json:"deduction_reason"`
	GrossSalary           decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"gross_salary"`
	NetSalary             *decimal.Decimal `gorm:"type:decimal(18,2)" json:"net_salary,omitempty"`
	Status                string           `gorm:"type:varchar(16);index;not null;default:draft" json:"status"`
	Remarks               string           `gorm:"type:varchar(256)" json:"remarks"`
	VoucherID             *int64           `json:"voucher_id,omitempty"`
	PaidAt                *time.Time       `json:"paid_at,omitempty"`
	CreatedAt             time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CoachMonthlySalary) TableName() string {
	return "coach_monthly_salary"
}

// SalaryCounts 从考试成绩和报名数据汇总出的计数
type SalaryCounts struct {
	Subject2Pass int
	Subject3Pass int
	NewStudents  int
}

// ApplyDerived 按工资标准和计数重算派生字段，人工字段保持不变
func (s *CoachMonthlySalary) ApplyDerived(cfg *SalaryConfig, counts SalaryCounts) {
	s.Subject2PassCount = counts.Subject2Pass
	s.Subject3PassCount = counts.Subject3Pass
	s.NewStudentCount = counts.NewStudents
	s.Subject2Commission = cfg.Subject2Rate.Mul(decimal.NewFromInt(int64(counts.Subject2Pass)))
	s.Subject3Commission = cfg.Subject3Rate.Mul(decimal.NewFromInt(int64(counts.Subject3Pass)))
	s.RecruitmentCommission = cfg.RecruitmentRate.Mul(decimal.NewFromInt(int64(counts.NewStudents)))
	s.ApplyBase(cfg)
}

// ApplyBase 基本工资 = 日工资 × 出勤天数，并重算应发
func (s *CoachMonthlySalary) ApplyBase(cfg *SalaryConfig) {
	s.BaseSalary = cfg.DailyWage.Mul(decimal.NewFromInt(int64(s.AttendanceDays)))
	s.Recalculate()
}

// Recalculate 应发 = 基本工资 + 科目二提成 + 科目三提成 + 招生提成 + 奖金 - 扣款
func (s *CoachMonthlySalary) Recalculate() {
	s.GrossSalary = s.BaseSalary.
		Add(s.Subject2Commission).
		Add(s.Subject3Commission).
		Add(s.RecruitmentCommission).
		Add(s.Bonus).
		Sub(s.Deduction)
}

// PayableAmount 实际发放金额：填写了实发以实发为准，否则取应发
func (s *CoachMonthlySalary) PayableAmount() decimal.Decimal {
	if s.NetSalary != nil {
		return *s.NetSalary
	}
	return s.GrossSalary
}
