package gateway

import (
	"context"
	"sync/atomic"

	"gitee.com/flycash/push-platform/internal/domain"
)

// MockGateway 全部成功的假网关，本地联调用
type MockGateway struct {
	count int64
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Send(_ context.Context, req SendRequest) (SendResponse, error) {
	atomic.AddInt64(&m.count, 1)
	results := make([]domain.TokenResult, 0, len(req.Tokens))
	for _, token := range req.Tokens {
		results = append(results, domain.TokenResult{
			Token: token,
			Class: domain.OutcomeSuccess,
		})
	}
	return SendResponse{Results: results}, nil
}

func (m *MockGateway) SendCount() int64 {
	return atomic.LoadInt64(&m.count)
}
