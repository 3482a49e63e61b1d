package tracing

import (
	"context"

	"gitee.com/flycash/push-platform/internal/service/gateway"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Gateway 为推送网关实现添加链路追踪的装饰器
type Gateway struct {
	gateway gateway.Gateway
	tracer  trace.Tracer
}

// NewGateway 创建一个新的带有链路追踪的推送网关
func NewGateway(g gateway.Gateway) *Gateway {
	return &Gateway{
		gateway: g,
		tracer:  otel.Tracer("push-platform/gateway"),
	}
}

func (g *Gateway) Send(ctx context.Context, req gateway.SendRequest) (gateway.SendResponse, error) {
	ctx, span := g.tracer.Start(ctx, "Gateway.Send",
		trace.WithAttributes(
			attribute.String("push.platform", string(req.Platform)),
			attribute.Int("push.token_count", len(req.Tokens)),
		))
	defer span.End()

	response, err := g.gateway.Send(ctx, req)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		succeeded, retryable, permanent := response.Split()
		span.SetAttributes(
			attribute.Int("push.token_succeeded", len(succeeded)),
			attribute.Int("push.token_retryable", len(retryable)),
			attribute.Int("push.token_permanent", len(permanent)),
		)
	}

	return response, err
}
