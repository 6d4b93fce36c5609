package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	NotificationsTopic    = "circulation.notifications"
	NotifierConsumerGroup = "circulation-notifier"
)

type Config struct {
	Addrs   []string `envconfig:"KAFKA_ADDRS" default:"localhost:9092"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume loops the consumer group session until ctx is canceled.
func Consume(ctx context.Context, consumer sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, log *zap.Logger, topics ...string) {
	for {
		if err := consumer.Consume(ctx, topics, handler); err != nil {
			log.Error("kafka consume", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
