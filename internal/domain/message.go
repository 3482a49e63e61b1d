package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/errs"
)

// Platform 推送路由，每个平台对应一个独立的熔断路由
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

func (p Platform) IsValid() bool {
	return p == PlatformAndroid || p == PlatformIOS || p == PlatformWeb
}

const (
	maxDeviceTokens = 500
	maxTitleLength  = 100
	maxBodyLength   = 500
	maxTTLSeconds   = 86400
)

// PushMessage 推送消息领域模型，对应队列里的一条待投递消息
// Attempts 由协调器在每次重投前递增，其余字段视为不可变
type PushMessage struct {
	NotificationID string            `json:"notification_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	UserID         string            `json:"user_id"`
	Platform       Platform          `json:"platform"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	DeviceTokens   []string          `json:"device_tokens"`
	Data           map[string]string `json:"data,omitempty"`
	TTLSeconds     int64             `json:"ttl_seconds"`
	Attempts       int32             `json:"attempts"`
	// EnqueuedAtMillis 首次入队时间（毫秒），TTL 以它为基准计算
	EnqueuedAtMillis int64 `json:"enqueued_at,omitempty"`
}

func (m *PushMessage) Validate() error {
	if m.NotificationID == "" {
		return fmt.Errorf("%w: NotificationID 为空", errs.ErrInvalidMessage)
	}

	if m.IdempotencyKey == "" {
		return fmt.Errorf("%w: IdempotencyKey 为空", errs.ErrInvalidMessage)
	}

	if m.UserID == "" {
		return fmt.Errorf("%w: UserID 为空", errs.ErrInvalidMessage)
	}

	if !m.Platform.IsValid() {
		return fmt.Errorf("%w: Platform = %q", errs.ErrInvalidMessage, m.Platform)
	}

	if m.Title == "" || len(m.Title) > maxTitleLength {
		return fmt.Errorf("%w: Title 长度 = %d", errs.ErrInvalidMessage, len(m.Title))
	}

	if m.Body == "" || len(m.Body) > maxBodyLength {
		return fmt.Errorf("%w: Body 长度 = %d", errs.ErrInvalidMessage, len(m.Body))
	}

	if len(m.DeviceTokens) == 0 || len(m.DeviceTokens) > maxDeviceTokens {
		return fmt.Errorf("%w: DeviceTokens 数量 = %d", errs.ErrInvalidMessage, len(m.DeviceTokens))
	}

	for i := range m.DeviceTokens {
		if m.DeviceTokens[i] == "" {
			return fmt.Errorf("%w: 第 %d 个 DeviceToken 为空", errs.ErrInvalidMessage, i)
		}
	}

	if m.TTLSeconds < 0 || m.TTLSeconds > maxTTLSeconds {
		return fmt.Errorf("%w: TTLSeconds = %d", errs.ErrInvalidMessage, m.TTLSeconds)
	}

	if m.Attempts < 0 {
		return fmt.Errorf("%w: Attempts = %d", errs.ErrInvalidMessage, m.Attempts)
	}

	return nil
}

// Expired 判断消息是否在投递前就已过期
// TTLSeconds 为 0 表示不设过期；EnqueuedAtMillis 为 0 表示生产方没填，视为刚入队
func (m *PushMessage) Expired(now time.Time) bool {
	if m.TTLSeconds == 0 || m.EnqueuedAtMillis == 0 {
		return false
	}
	deadline := time.UnixMilli(m.EnqueuedAtMillis).Add(time.Duration(m.TTLSeconds) * time.Second)
	return now.After(deadline)
}

// WithTokens 返回只保留指定 token 的副本，用于部分失败后的缩窄重投
func (m *PushMessage) WithTokens(tokens []string) PushMessage {
	narrowed := *m
	narrowed.DeviceTokens = tokens
	return narrowed
}
