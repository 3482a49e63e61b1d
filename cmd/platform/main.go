package main

import (
	"context"

	appioc "gitee.com/flycash/push-platform/cmd/platform/ioc"
	"gitee.com/flycash/push-platform/internal/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server"
	"github.com/gotomicro/ego/server/egovernor"
)

func main() {
	if err := ego.New().Invoker(func() error {
		ioc.InitTopics()
		app := appioc.InitApp()

		ctx := context.Background()
		for _, task := range app.Tasks {
			go task.Start(ctx)
		}
		app.DeliveryConsumer.Start(ctx)
		app.DelayConsumer.Start(ctx)
		return nil
	}).Serve(func() server.Server {
		// 治理端口，暴露 prometheus 指标和健康检查
		return egovernor.Load("server.governor").Build()
	}()).Run(); err != nil {
		elog.Panic("startup", elog.Any("err", err))
	}
}
