package ioc

import (
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/service/gateway"
	gatewaymetrics "gitee.com/flycash/push-platform/internal/service/gateway/metrics"
	gatewaytracing "gitee.com/flycash/push-platform/internal/service/gateway/tracing"
	"github.com/gotomicro/ego/core/econf"
)

func InitGateway() gateway.Gateway {
	type Config struct {
		// Mode 取值 http 或 mock，本地联调用 mock
		Mode      string            `yaml:"mode"`
		APIKey    string            `yaml:"apiKey"`
		TimeoutMs int64             `yaml:"timeoutMs"`
		Endpoints map[string]string `yaml:"endpoints"`
	}
	var cfg Config
	err := econf.UnmarshalKey("gateway", &cfg)
	if err != nil {
		panic(err)
	}

	var g gateway.Gateway
	switch cfg.Mode {
	case "mock":
		g = gateway.NewMockGateway()
	default:
		endpoints := make(map[domain.Platform]string, len(cfg.Endpoints))
		for platform, endpoint := range cfg.Endpoints {
			endpoints[domain.Platform(platform)] = endpoint
		}
		g = gateway.NewHTTPGateway(endpoints, cfg.APIKey, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	}
	return gatewaytracing.NewGateway(gatewaymetrics.NewGateway(cfg.Mode, g))
}
