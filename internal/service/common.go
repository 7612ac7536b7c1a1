package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/errs"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dateOnly 截断到当天零点，凭证日期、缴费日期都按自然日记录
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// requirePositive 金额必须大于 0 且最多两位小数
func requirePositive(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return errs.Validation("%s必须大于0", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return errs.Validation("%s最多两位小数", field)
	}
	return nil
}

func requireNonNegative(amount decimal.Decimal, field string) error {
	if amount.IsNegative() {
		return errs.Validation("%s不能为负数", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return errs.Validation("%s最多两位小数", field)
	}
	return nil
}

func requireOperator(operator string) error {
	if operator == "" {
		return errs.Validation("操作人不能为空")
	}
	return nil
}

// withLock 先拿分布式锁再执行，锁只缩小竞争范围，事务内的行锁才是正确性保证
func withLock(ctx context.Context, locker lock.Locker, key string, fn func() error) error {
	release, err := locker.Acquire(ctx, key, uuid.NewString())
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()
	return fn()
}
