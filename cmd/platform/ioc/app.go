package ioc

import (
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/event/push"
	"gitee.com/flycash/push-platform/internal/ioc"
	"gitee.com/flycash/push-platform/internal/pkg/mqx"
	"gitee.com/flycash/push-platform/internal/repository"
	"gitee.com/flycash/push-platform/internal/service/audit"
	"gitee.com/flycash/push-platform/internal/service/pipeline"
	"gitee.com/flycash/push-platform/internal/service/quota"
	"github.com/gotomicro/ego/core/econf"
	"github.com/meoying/dlock-go"
)

type App struct {
	DeliveryConsumer *push.DeliveryEventConsumer
	DelayConsumer    *push.DelayRetryConsumer
	QuotaService     quota.Service
	Tasks            []ioc.Task
}

func newRetentionTask(dclient dlock.Client, repo repository.AuditRepository) *audit.RetentionTask {
	type Config struct {
		RetentionDays int `yaml:"retentionDays"`
	}
	cfg := Config{RetentionDays: 30}
	err := econf.UnmarshalKey("audit", &cfg)
	if err != nil {
		panic(err)
	}
	const hoursPerDay = 24
	return audit.NewRetentionTask(dclient, repo, time.Duration(cfg.RetentionDays)*hoursPerDay*time.Hour)
}

func newDeliveryEventConsumer(coordinator pipeline.Coordinator, transport pipeline.Transport) *push.DeliveryEventConsumer {
	type Config struct {
		Workers int `yaml:"workers"`
	}
	var cfg Config
	err := econf.UnmarshalKey("consumer", &cfg)
	if err != nil {
		panic(err)
	}
	return push.NewDeliveryEventConsumer(ioc.InitDeliveryConsumer(), coordinator, transport, cfg.Workers)
}

func newDelayRetryConsumer(producer mqx.Producer[domain.PushMessage]) *push.DelayRetryConsumer {
	return push.NewDelayRetryConsumer(ioc.InitDelayConsumer(), producer)
}
