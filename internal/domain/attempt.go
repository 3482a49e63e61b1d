package domain

import (
	"time"
)

// OutcomeClass 单次网关调用结果的分类，决定后续重试行为
type OutcomeClass string

const (
	OutcomeSuccess   OutcomeClass = "SUCCESS"
	OutcomeRetryable OutcomeClass = "RETRYABLE"
	OutcomePermanent OutcomeClass = "PERMANENT"
)

// TokenResult 网关对单个设备 token 的投递结果
type TokenResult struct {
	Token  string       `json:"token"`
	Class  OutcomeClass `json:"class"`
	Reason string       `json:"reason,omitempty"`
}

// DeliveryAttempt 一次网关调用的临时记录，喂给审计日志和熔断器
type DeliveryAttempt struct {
	ID             int64         `json:"id"`
	NotificationID string        `json:"notification_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	UserID         string        `json:"user_id"`
	Platform       Platform      `json:"platform"`
	Attempt        int32         `json:"attempt"`
	Class          OutcomeClass  `json:"class"`
	TokenTotal     int           `json:"token_total"`
	TokenSucceeded int           `json:"token_succeeded"`
	Latency        time.Duration `json:"latency"`
	Reason         string        `json:"reason,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// DeadLetterEntry 消息被判定为不可投递后写入死信的快照，写入后不再变更
type DeadLetterEntry struct {
	ID             int64             `json:"id"`
	Message        PushMessage       `json:"message"`
	Reason         string            `json:"reason"`
	FailureHistory []DeliveryAttempt `json:"failure_history,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TerminalStatus 消息处理的终态
type TerminalStatus string

const (
	TerminalDelivered    TerminalStatus = "DELIVERED"
	TerminalDeadLettered TerminalStatus = "DEAD_LETTERED"
	TerminalExpired      TerminalStatus = "EXPIRED"
)

// Outcome 终态快照，由幂等守卫存储，重复提交的消息直接读到它
type Outcome struct {
	Status         TerminalStatus `json:"status"`
	NotificationID string         `json:"notification_id"`
	TokenTotal     int            `json:"token_total"`
	TokenSucceeded int            `json:"token_succeeded"`
	Reason         string         `json:"reason,omitempty"`
	FinishedAt     time.Time      `json:"finished_at"`
}
