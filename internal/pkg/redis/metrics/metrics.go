package metrics

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// 幂等和限流脚本的耗时基本落在毫秒级，桶从 1ms 起按 2 倍扩展
const (
	bucketStart  = 0.001
	bucketFactor = 2
	bucketCount  = 10
)

var (
	commandCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_redis_commands_total",
			Help: "Redis 命令总数，按命令名和执行结果分类",
		},
		[]string{"command", "status"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_redis_command_duration_seconds",
			Help:    "Redis 命令耗时，覆盖幂等和限流的 Lua 脚本调用",
			Buckets: prometheus.ExponentialBuckets(bucketStart, bucketFactor, bucketCount),
		},
		[]string{"command"},
	)

	dialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_redis_connections_total",
			Help: "Redis 新建连接总数",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(commandCounter, commandDuration, dialCounter)
}

// Hook 实现 redis.Hook，给幂等守卫和令牌桶的 Redis 访问挂上指标
type Hook struct{}

func NewMetricsHook() *Hook {
	return &Hook{}
}

func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		commandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
		commandCounter.WithLabelValues(cmd.Name(), statusOf(err)).Inc()
		return err
	}
}

// ProcessPipelineHook 直接透传。守卫层只发单条命令和 Lua 脚本，不走管道
func (h *Hook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		dialCounter.WithLabelValues(statusOf(err)).Inc()
		return conn, err
	}
}

// statusOf 把错误折算成指标标签。redis.Nil 是正常的未命中，不算错误
func statusOf(err error) string {
	if err != nil && !errors.Is(err, redis.Nil) {
		return "error"
	}
	return "success"
}

// WithMetrics 为 Redis 客户端挂上指标钩子
func WithMetrics(client *redis.Client) *redis.Client {
	client.AddHook(NewMetricsHook())
	return client
}
