package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 账务事件类型
const (
	EventVoucherPosted   = "voucher.posted"
	EventVoucherReversed = "voucher.reversed"
	EventVoucherDeleted  = "voucher.deleted"
)

// OutboxMessage 本地消息表，与凭证在同一事务写入，由后台任务投递到 Kafka
type OutboxMessage struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_key"`
	Topic      string         `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string         `gorm:"type:varchar(32);not null" json:"event_type"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`
	Status     string         `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int            `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// VoucherEvent 账务事件消息体
type VoucherEvent struct {
	EventType   string     `json:"event_type"`
	VoucherID   int64      `json:"voucher_id"`
	VoucherNo   string     `json:"voucher_no"`
	VoucherDate string     `json:"voucher_date"`
	SourceType  SourceType `json:"source_type"`
	SourceID    *int64     `json:"source_id,omitempty"`
	ReversalOf  *int64     `json:"reversal_of,omitempty"`
	TotalAmount string     `json:"total_amount"`
	Creator     string     `json:"creator"`
	OccurredAt  time.Time  `json:"occurred_at"`
}
