package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/errs"
)

// HTTPGateway 对接 FCM 风格的批量推送接口，按平台路由到不同的 endpoint
type HTTPGateway struct {
	client    *http.Client
	endpoints map[domain.Platform]string
	apiKey    string
}

func NewHTTPGateway(endpoints map[domain.Platform]string, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		client:    &http.Client{Timeout: timeout},
		endpoints: endpoints,
		apiKey:    apiKey,
	}
}

type httpSendRequest struct {
	Tokens     []string          `json:"tokens"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	TTLSeconds int64             `json:"ttl_seconds"`
}

type httpTokenResult struct {
	Token  string `json:"token"`
	Status string `json:"status"` // ok / retryable / permanent
	Reason string `json:"reason,omitempty"`
}

type httpSendResponse struct {
	Results []httpTokenResult `json:"results"`
}

func (g *HTTPGateway) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	endpoint, ok := g.endpoints[req.Platform]
	if !ok {
		return SendResponse{}, fmt.Errorf("%w: %s", errs.ErrUnknownRoute, req.Platform)
	}

	payload, err := json.Marshal(httpSendRequest{
		Tokens:     req.Tokens,
		Title:      req.Title,
		Body:       req.Body,
		Data:       req.Data,
		TTLSeconds: int64(req.TTL.Seconds()),
	})
	if err != nil {
		return SendResponse{}, fmt.Errorf("%w: 序列化请求失败: %w", errs.ErrGatewayPermanent, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return SendResponse{}, fmt.Errorf("%w: %w", errs.ErrGatewayPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// 网络错误、超时都按临时故障处理
		return SendResponse{}, fmt.Errorf("%w: %w", errs.ErrGatewayRetryable, err)
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp.StatusCode); err != nil {
		return SendResponse{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResponse{}, fmt.Errorf("%w: 读取响应失败: %w", errs.ErrGatewayRetryable, err)
	}

	var decoded httpSendResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return SendResponse{}, fmt.Errorf("%w: 解析响应失败: %w", errs.ErrGatewayRetryable, err)
	}

	results := make([]domain.TokenResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, domain.TokenResult{
			Token:  r.Token,
			Class:  classify(r.Status),
			Reason: r.Reason,
		})
	}
	return SendResponse{Results: results}, nil
}

func (g *HTTPGateway) checkStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: HTTP %d", errs.ErrGatewayRetryable, code)
	default:
		return fmt.Errorf("%w: HTTP %d", errs.ErrGatewayPermanent, code)
	}
}

func classify(status string) domain.OutcomeClass {
	switch status {
	case "ok":
		return domain.OutcomeSuccess
	case "retryable":
		return domain.OutcomeRetryable
	default:
		// 未知状态一律按永久失败，避免无意义的重投
		return domain.OutcomePermanent
	}
}
