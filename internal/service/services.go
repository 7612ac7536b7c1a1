package service

import (
	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services HTTP 接口和命令行共用的一组服务
type Services struct {
	Subjects    *SubjectService
	Vouchers    *VoucherService
	Ledger      *LedgerService
	Salary      *SalaryService
	Headquarter *HeadquarterService
	Expense     *ExpenseService
	Allocation  *AllocationService
	Report      *ReportService
}

func NewServices(db *gorm.DB, cfg *config.Config, log *zap.Logger, locker lock.Locker) *Services {
	subjects := NewSubjectService(db, log.Named("SubjectService"))
	vouchers := NewVoucherService(db, cfg, log.Named("VoucherService"))
	return &Services{
		Subjects:    subjects,
		Vouchers:    vouchers,
		Ledger:      NewLedgerService(db, log.Named("LedgerService"), locker, subjects, vouchers),
		Salary:      NewSalaryService(db, log.Named("SalaryService"), locker, subjects, vouchers),
		Headquarter: NewHeadquarterService(db, log.Named("HeadquarterService")),
		Expense:     NewExpenseService(db, log.Named("ExpenseService"), locker, subjects, vouchers),
		Allocation:  NewAllocationService(db, log.Named("AllocationService")),
		Report:      NewReportService(db, log.Named("ReportService"), vouchers),
	}
}
