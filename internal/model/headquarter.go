package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	HQConfigRatio = "ratio" // 按合同金额比例上交
	HQConfigFixed = "fixed" // 每名学员固定金额上交
)

// HeadquarterConfig 总部上交配置
// ClassTypeID 为空表示全局默认配置；班型专属配置优先于全局配置
type HeadquarterConfig struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassTypeID   *int64           `gorm:"index" json:"class_type_id,omitempty"`
	ConfigType    string           `gorm:"type:varchar(8);not null" json:"config_type"`
	Ratio         *decimal.Decimal `gorm:"type:decimal(6,4)" json:"ratio,omitempty"`
	FixedAmount   *decimal.Decimal `gorm:"type:decimal(18,2)" json:"fixed_amount,omitempty"`
	EffectiveDate time.Time        `gorm:"type:date;not null" json:"effective_date"`
	ExpireDate    *time.Time       `gorm:"type:date" json:"expire_date,omitempty"`
	Active        bool             `gorm:"not null;default:true" json:"active"`
	Remarks       string           `gorm:"type:varchar(256)" json:"remarks"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (HeadquarterConfig) TableName() string {
	return "headquarter_config"
}

// EffectiveOn 生效区间 [EffectiveDate, ExpireDate)，ExpireDate 为空表示长期有效
func (c *HeadquarterConfig) EffectiveOn(date time.Time) bool {
	if !c.Active {
		return false
	}
	if date.Before(c.EffectiveDate) {
		return false
	}
	if c.ExpireDate != nil && !date.Before(*c.ExpireDate) {
		return false
	}
	return true
}

// SubmitAmount 计算单个学员的上交金额
func (c *HeadquarterConfig) SubmitAmount(contract decimal.Decimal) decimal.Decimal {
	switch c.ConfigType {
	case HQConfigRatio:
		if c.Ratio == nil {
			return decimal.Zero
		}
		return contract.Mul(*c.Ratio).Round(2)
	case HQConfigFixed:
		if c.FixedAmount == nil {
			return decimal.Zero
		}
		return *c.FixedAmount
	default:
		return decimal.Zero
	}
}
