package domain

import "time"

// QuotaSnapshot 用户令牌桶的只读快照，供配额查询接口使用
type QuotaSnapshot struct {
	UserID     string        `json:"user_id"`
	Remaining  int64         `json:"remaining"`
	Capacity   int64         `json:"capacity"`
	LastRefill time.Time     `json:"last_refill"`
	// RetryAfter 剩余额度为 0 时距离下一个令牌的等待时间，否则为 0
	RetryAfter time.Duration `json:"retry_after"`
}
