package kafka

import (
	"errors"

	"PLedger/logger"
	"PLedger/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic creates c.Topic, or grows its partition count up to
// c.PartitionsPerTopic.
func EnsureTopic(admin sarama.ClusterAdmin, c Config) error {
	log := logger.Named("kafka")
	descs, err := admin.DescribeTopics([]string{c.Topic})
	if err != nil {
		return errs.WrapMsg(err, "describe topic", "topic", c.Topic)
	}
	if len(descs) == 0 || errors.Is(descs[0].Err, sarama.ErrUnknownTopicOrPartition) {
		td := &sarama.TopicDetail{
			NumPartitions:     c.PartitionsPerTopic,
			ReplicationFactor: c.ReplicationFactor,
			ConfigEntries: map[string]*string{
				"cleanup.policy":   strPtr("delete"),
				"compression.type": strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(c.Topic, td, false); err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return errs.WrapMsg(err, "create topic", "topic", c.Topic)
		}
		log.Info("topic created", zap.String("topic", c.Topic), zap.Int32("partitions", c.PartitionsPerTopic))
		return nil
	}

	// 已存在：必要时扩分区
	cur := int32(len(descs[0].Partitions))
	if c.PartitionsPerTopic > cur {
		if err := admin.CreatePartitions(c.Topic, c.PartitionsPerTopic, nil, false); err != nil {
			return errs.WrapMsg(err, "expand partitions", "topic", c.Topic, "from", cur, "to", c.PartitionsPerTopic)
		}
		log.Info("partitions expanded", zap.String("topic", c.Topic), zap.Int32("from", cur), zap.Int32("to", c.PartitionsPerTopic))
	}
	return nil
}

// EnsureTopicOnBrokers dials a cluster admin for c and runs EnsureTopic.
func EnsureTopicOnBrokers(c Config) error {
	admin, err := sarama.NewClusterAdmin(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return errs.WrapMsg(err, "kafka cluster admin", "brokers", c.Brokers)
	}
	defer admin.Close()
	return EnsureTopic(admin, c)
}

func strPtr(s string) *string { return &s }
