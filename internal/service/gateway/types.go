package gateway

import (
	"context"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
)

// SendRequest 一次网关调用的入参，token 维度批量
type SendRequest struct {
	Platform domain.Platform
	Tokens   []string
	Title    string
	Body     string
	Data     map[string]string
	TTL      time.Duration
}

// SendResponse 网关返回的逐 token 结果，与请求里的 token 一一对应
type SendResponse struct {
	Results []domain.TokenResult
}

// Split 把结果按分类拆开，方便调用方分别处理
func (r SendResponse) Split() (succeeded, retryable, permanent []domain.TokenResult) {
	for _, res := range r.Results {
		switch res.Class {
		case domain.OutcomeSuccess:
			succeeded = append(succeeded, res)
		case domain.OutcomeRetryable:
			retryable = append(retryable, res)
		case domain.OutcomePermanent:
			permanent = append(permanent, res)
		}
	}
	return succeeded, retryable, permanent
}

// Gateway 推送网关接口。整次调用失败（超时、网关不可达）返回 error，
// 部分 token 失败体现在 SendResponse 里
//
//go:generate mockgen -source=./types.go -destination=./mocks/gateway.mock.go -package=gatewaymocks -typed Gateway
type Gateway interface {
	// Send 发送消息
	Send(ctx context.Context, req SendRequest) (SendResponse, error)
}
