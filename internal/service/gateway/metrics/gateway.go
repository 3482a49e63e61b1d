// Gateway 为推送网关实现添加指标收集的装饰器
package metrics

import (
	"context"
	"time"

	"gitee.com/flycash/push-platform/internal/service/gateway"
	"github.com/prometheus/client_golang/prometheus"
)

// Gateway 为推送网关实现添加指标收集的装饰器
type Gateway struct {
	gateway             gateway.Gateway
	sendDurationSummary *prometheus.SummaryVec
	sendCounter         *prometheus.CounterVec
	tokenResultCounter  *prometheus.CounterVec
	name                string
}

// NewGateway 创建一个新的带有指标收集的推送网关
func NewGateway(name string, g gateway.Gateway) *Gateway {
	sendDurationSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "gateway_send_duration_seconds",
			Help:       "推送网关调用耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"gateway", "platform"},
	)

	sendCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_send_total",
			Help: "推送网关调用总数",
		},
		[]string{"gateway", "platform"},
	)

	tokenResultCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_result_total",
			Help: "推送网关逐 token 结果统计",
		},
		[]string{"gateway", "platform", "class"},
	)

	// 注册指标
	prometheus.MustRegister(sendDurationSummary, sendCounter, tokenResultCounter)

	return &Gateway{
		gateway:             g,
		sendDurationSummary: sendDurationSummary,
		sendCounter:         sendCounter,
		tokenResultCounter:  tokenResultCounter,
		name:                name,
	}
}

// Send 发送推送并记录指标
func (g *Gateway) Send(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
	startTime := time.Now()

	g.sendCounter.WithLabelValues(
		g.name,
		string(req.Platform),
	).Inc()

	response, err := g.gateway.Send(ctx, req)

	duration := time.Since(startTime).Seconds()

	for _, res := range response.Results {
		g.tokenResultCounter.WithLabelValues(
			g.name,
			string(req.Platform),
			string(res.Class),
		).Inc()
	}

	g.sendDurationSummary.WithLabelValues(
		g.name,
		string(req.Platform),
	).Observe(duration)

	return response, err
}
