package ioc

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/push-platform/internal/domain"
	"gitee.com/flycash/push-platform/internal/event/push"
	"gitee.com/flycash/push-platform/internal/pkg/mqx"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gotomicro/ego/core/econf"
)

type kafkaConfig struct {
	BootstrapServers string `yaml:"bootstrapServers"`
	ClientID         string `yaml:"clientId"`
	GroupID          string `yaml:"groupId"`
	DelayGroupID     string `yaml:"delayGroupId"`
}

func loadKafkaConfig() kafkaConfig {
	var cfg kafkaConfig
	err := econf.UnmarshalKey("kafka", &cfg)
	if err != nil {
		panic(err)
	}
	return cfg
}

func InitKafkaProducer() *kafka.Producer {
	cfg := loadKafkaConfig()
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"client.id":         cfg.ClientID,
	})
	if err != nil {
		panic(fmt.Sprintf("创建生产者失败: %v", err))
	}
	return producer
}

// InitDeliveryConsumer 主投递主题的消费者，位点由处理结果驱动手动提交
func InitDeliveryConsumer() mqx.Consumer {
	return newConsumer(loadKafkaConfig().GroupID, push.DeliveryEventName)
}

// InitDelayConsumer 延迟重投主题的消费者，和主消费者使用不同的消费组
func InitDelayConsumer() mqx.Consumer {
	return newConsumer(loadKafkaConfig().DelayGroupID, push.RetryEventName)
}

func newConsumer(groupID, topic string) *kafka.Consumer {
	cfg := loadKafkaConfig()
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		panic(fmt.Sprintf("创建消费者失败: %v", err))
	}
	if err := consumer.Subscribe(topic, nil); err != nil {
		panic(fmt.Sprintf("订阅主题失败: %v", err))
	}
	return consumer
}

func InitRetryProducer(producer *kafka.Producer) mqx.Producer[push.RetryEvent] {
	p, err := mqx.NewGeneralProducer[push.RetryEvent](producer, push.RetryEventName)
	if err != nil {
		panic(err)
	}
	return p
}

func InitDeadLetterProducer(producer *kafka.Producer) mqx.Producer[domain.DeadLetterEntry] {
	p, err := mqx.NewGeneralProducer[domain.DeadLetterEntry](producer, push.DeadLetterEventName)
	if err != nil {
		panic(err)
	}
	return p
}

func InitDeliveryProducer(producer *kafka.Producer) mqx.Producer[domain.PushMessage] {
	p, err := mqx.NewGeneralProducer[domain.PushMessage](producer, push.DeliveryEventName)
	if err != nil {
		panic(err)
	}
	return p
}

// InitTopics 创建管道用到的三个主题，已存在时跳过
func InitTopics() {
	cfg := loadKafkaConfig()
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
	})
	if err != nil {
		panic(fmt.Sprintf("创建kafka连接失败: %v", err))
	}
	defer adminClient.Close()

	const defaultPartitions = 8
	topics := []kafka.TopicSpecification{
		{Topic: push.DeliveryEventName, NumPartitions: defaultPartitions},
		{Topic: push.RetryEventName, NumPartitions: defaultPartitions},
		{Topic: push.DeadLetterEventName, NumPartitions: 1},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := adminClient.CreateTopics(ctx, topics)
	if err != nil {
		panic(fmt.Sprintf("创建topic失败: %v", err))
	}
	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			panic(fmt.Sprintf("创建topic失败 %s: %v", result.Topic, result.Error))
		}
	}
}
