package job

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/mq"
	"github.com/DT191220/YDJX-sub000/internal/model"
	"github.com/DT191220/YDJX-sub000/internal/testutil"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(string, string, []byte) error {
	p.calls++
	return errors.New("broker unavailable")
}

func (p *failingPublisher) Close() error { return nil }

func seedMessages(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&model.OutboxMessage{
			MessageKey: fmt.Sprintf("MSG%04d", i),
			Topic:      "ydjx.ledger.event",
			EventType:  model.EventVoucherPosted,
			Payload:    []byte(fmt.Sprintf(`{"voucher_no":"PZ20240501%04d"}`, i+1)),
			Status:     model.OutboxStatusPending,
		}).Error)
	}
}

func statusOf(t *testing.T, db *gorm.DB, key string) model.OutboxMessage {
	t.Helper()
	var msg model.OutboxMessage
	require.NoError(t, db.Where("message_key = ?", key).First(&msg).Error)
	return msg
}

func TestOutboxSenderDelivers(t *testing.T) {
	db := testutil.NewDB(t)
	seedMessages(t, db, 2)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	cfg := &config.Config{}
	cfg.Ledger.OutboxMaxRetry = 3
	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg, zap.NewNop())

	assert.Equal(t, 1, sender.ProcessPending(context.Background()))
	assert.Equal(t, model.OutboxStatusSent, statusOf(t, db, "MSG0000").Status)

	second := statusOf(t, db, "MSG0001")
	assert.Equal(t, model.OutboxStatusPending, second.Status)
	assert.Equal(t, 1, second.RetryCount)
	require.NoError(t, producer.Close())
}

func TestOutboxSenderMarksFailed(t *testing.T) {
	db := testutil.NewDB(t)
	seedMessages(t, db, 1)

	cfg := &config.Config{}
	cfg.Ledger.OutboxMaxRetry = 3
	pub := &failingPublisher{}
	sender := NewOutboxSender(db, pub, cfg, zap.NewNop())

	for i := 0; i < 5; i++ {
		sender.ProcessPending(context.Background())
	}

	msg := statusOf(t, db, "MSG0000")
	assert.Equal(t, model.OutboxStatusFailed, msg.Status)
	assert.Equal(t, 3, msg.RetryCount)
	// 失败后不再投递
	assert.Equal(t, 3, pub.calls)
}
