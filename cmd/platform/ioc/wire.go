//go:build wireinject

package ioc

import (
	"gitee.com/flycash/push-platform/internal/event/push"
	"gitee.com/flycash/push-platform/internal/ioc"
	id "gitee.com/flycash/push-platform/internal/pkg/id_generator"
	"gitee.com/flycash/push-platform/internal/repository"
	"gitee.com/flycash/push-platform/internal/repository/dao"
	"gitee.com/flycash/push-platform/internal/service/audit"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
	"gitee.com/flycash/push-platform/internal/service/quota"
	"github.com/google/wire"
)

var (
	baseSet = wire.NewSet(
		ioc.InitDB,
		ioc.InitRedisClient,
		ioc.InitDistributedLock,
		ioc.InitKafkaProducer,
	)
	auditSvcSet = wire.NewSet(
		dao.NewAuditDAO,
		id.NewGenerator,
		repository.NewAuditRepository,
		audit.NewService,
		newRetentionTask,
	)
	pipelineSet = wire.NewSet(
		ioc.InitIdempotencyService,
		ioc.InitRateLimiter,
		ioc.InitBreakerGroup,
		ioc.InitRetryStrategy,
		ioc.InitPipelineConfig,
		ioc.InitGateway,
		pipeline.NewCoordinator,
	)
	transportSet = wire.NewSet(
		ioc.InitRetryProducer,
		ioc.InitDeadLetterProducer,
		ioc.InitDeliveryProducer,
		push.NewKafkaTransport,
		wire.Bind(new(pipeline.Transport), new(*push.KafkaTransport)),
	)
	consumerSet = wire.NewSet(
		newDeliveryEventConsumer,
		newDelayRetryConsumer,
	)
)

func InitApp() *App {
	wire.Build(
		baseSet,
		auditSvcSet,
		pipelineSet,
		transportSet,
		consumerSet,
		quota.NewService,
		ioc.InitTasks,
		wire.Struct(new(App), "*"),
	)
	return new(App)
}
