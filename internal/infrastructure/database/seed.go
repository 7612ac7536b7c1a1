package database

import (
	"fmt"

	"github.com/DT191220/YDJX-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func strPtr(s string) *string { return &s }

// DefaultSubjects 默认科目表
var DefaultSubjects = []model.Subject{
	{Code: "1001", Name: "库存现金", Type: model.SubjectTypeAsset, BalanceDirection: model.EntryDebit, Active: true},
	{Code: "1002", Name: "银行存款", Type: model.SubjectTypeAsset, BalanceDirection: model.EntryDebit, Active: true},
	{Code: "2241", Name: "其他应付款-学费优惠", Type: model.SubjectTypeLiability, BalanceDirection: model.EntryCredit, Active: true},
	{Code: "4001", Name: "实收资本", Type: model.SubjectTypeEquity, BalanceDirection: model.EntryCredit, Active: true},
	{Code: "6001", Name: "主营业务收入", Type: model.SubjectTypeIncome, BalanceDirection: model.EntryCredit, Active: true},
	{Code: "600101", Name: "学费收入", Type: model.SubjectTypeIncome, BalanceDirection: model.EntryCredit, ParentCode: strPtr("6001"), Active: true},
	{Code: "6602", Name: "管理费用", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, Active: true},
	{Code: "660201", Name: "教练工资", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, ParentCode: strPtr("6602"), Active: true},
	{Code: "660202", Name: "房租", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, ParentCode: strPtr("6602"), Active: true},
	{Code: "660203", Name: "水电费", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, ParentCode: strPtr("6602"), Active: true},
	{Code: "660204", Name: "车辆保险", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, ParentCode: strPtr("6602"), Active: true},
	{Code: "660299", Name: "其他费用", Type: model.SubjectTypeExpense, BalanceDirection: model.EntryDebit, ParentCode: strPtr("6602"), Active: true},
}

// DefaultUsages 默认用途映射
var DefaultUsages = []model.UsageMapping{
	{UsageCode: model.UsageReceiptCash, SubjectCode: "1001", Description: "现金收取学费"},
	{UsageCode: model.UsageReceiptBank, SubjectCode: "1002", Description: "转账/微信/支付宝收取学费"},
	{UsageCode: model.UsageTuitionIncome, SubjectCode: "600101", Description: "学费收入"},
	{UsageCode: model.UsageTuitionDiscount, SubjectCode: "2241", Description: "学费优惠"},
	{UsageCode: model.UsageRefundPayout, SubjectCode: "1002", Description: "退费付款"},
	{UsageCode: model.UsageSalaryExpense, SubjectCode: "660201", Description: "教练工资费用"},
	{UsageCode: model.UsageSalaryPayout, SubjectCode: "1002", Description: "工资发放"},
	{UsageCode: model.UsageExpensePayout, SubjectCode: "1002", Description: "日常费用付款"},
}

// Seed 写入默认科目和用途映射，已存在的记录保持不变
func Seed(db *gorm.DB) error {
	subjects := make([]model.Subject, len(DefaultSubjects))
	copy(subjects, DefaultSubjects)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&subjects).Error; err != nil {
		return fmt.Errorf("初始化科目表失败: %w", err)
	}

	usages := make([]model.UsageMapping, len(DefaultUsages))
	copy(usages, DefaultUsages)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&usages).Error; err != nil {
		return fmt.Errorf("初始化科目用途失败: %w", err)
	}
	return nil
}
