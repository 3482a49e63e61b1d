package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 管道各阶段的事件点，指标和日志共用这套命名
const (
	stageValidate   = "validate"
	stageTTL        = "ttl"
	stageIdempotent = "idempotent"
	stageRateLimit  = "ratelimit"
	stageBreaker    = "breaker"
	stageGateway    = "gateway"
	stageRetry      = "retry"
	stageDeadLetter = "deadletter"

	resultPass      = "pass"
	resultReject    = "reject"
	resultDrop      = "drop"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

var (
	eventCounterOnce sync.Once
	eventCounter     *prometheus.CounterVec
)

// pipelineEventCounter 全局注册一次，多个协调器实例共享
func pipelineEventCounter() *prometheus.CounterVec {
	eventCounterOnce.Do(func() {
		eventCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_pipeline_events_total",
				Help: "投递管道各阶段事件统计",
			},
			[]string{"stage", "result", "platform"},
		)
		prometheus.MustRegister(eventCounter)
	})
	return eventCounter
}
