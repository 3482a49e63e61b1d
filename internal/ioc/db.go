package ioc

import (
	"context"
	"database/sql"
	"time"

	"gitee.com/flycash/push-platform/internal/repository/dao"
	"github.com/ecodeclub/ekit/retry"
	"github.com/ego-component/egorm"
	"github.com/gotomicro/ego/core/econf"

	// 注册 database/sql 的 mysql 驱动
	_ "gorm.io/driver/mysql"
)

func InitDB() *egorm.Component {
	type Config struct {
		DSN string `yaml:"dsn"`
	}
	var cfg Config
	err := econf.UnmarshalKey("mysql", &cfg)
	if err != nil {
		panic(err)
	}
	waitForDBSetup(cfg.DSN)

	db := egorm.Load("mysql").Build()
	if err := dao.InitTables(db); err != nil {
		panic(err)
	}
	return db
}

// waitForDBSetup 容器化部署时数据库可能晚于应用就绪，启动阶段指数退避等待
func waitForDBSetup(dsn string) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}
	const maxInterval = 10 * time.Second
	const maxRetries = 10
	strategy, err := retry.NewExponentialBackoffRetryStrategy(time.Second, maxInterval, maxRetries)
	if err != nil {
		panic(err)
	}

	const timeout = 5 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = sqlDB.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		next, ok := strategy.Next()
		if !ok {
			panic("等待数据库就绪失败......")
		}
		time.Sleep(next)
	}
}
