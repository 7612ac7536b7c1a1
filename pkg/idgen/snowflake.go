package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// 业务单号生成
// ============================================================================
//
// 单号 = 前缀 + 年月日时分秒 + 雪花ID后8位
//
// 雪花ID结构：41位时间戳 - 10位节点ID - 12位序列号，
// 同一秒内后8位不会重复，单号按时间趋势递增，便于索引。
//
// 凭证号不走这里：凭证号要求按天连续递增，由 voucher_sequence 表在事务内分配。
//
// ============================================================================

var (
	node *snowflake.Node
	mu   sync.Mutex
)

// Init 初始化节点，workerID 范围 0-1023
func Init(workerID int64) error {
	mu.Lock()
	defer mu.Unlock()

	n, err := snowflake.NewNode(workerID)
	if err != nil {
		return fmt.Errorf("初始化雪花节点失败: %w", err)
	}
	node = n
	return nil
}

// NextID 生成下一个ID，未初始化时使用节点 1
func NextID() int64 {
	mu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}

func generate(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s%08d", prefix, time.Now().Format("20060102150405"), id%100000000)
}

// GenerateReceiptNo 缴费收据号，例如 SJ2024011514305212345678
func GenerateReceiptNo() string {
	return generate("SJ")
}

// GenerateAdjustmentNo 优惠/退费单号
func GenerateAdjustmentNo() string {
	return generate("TZ")
}

// GenerateMessageKey 本地消息唯一键
func GenerateMessageKey() string {
	return generate("MSG")
}
