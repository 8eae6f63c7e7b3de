// Package notify is the optional commit-notifier side channel (SPEC_FULL
// §4.9): one JSON event published per warehouse commit. Grounded on the
// teacher's datasync/chaindatafetcher/event/kafka/kafka.go sarama usage,
// generalized from a handler-keyed broker to a single fire-and-forget
// producer.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/models"
)

// CommitNotifier publishes a best-effort event after every warehouse
// commit. Publish failures are logged, never propagated: a commit's
// success never depends on notification (SPEC_FULL §4.9).
type CommitNotifier interface {
	Notify(ctx context.Context, minHeight, maxHeight models.BlockHeight, counts int) error
	Close() error
}

type commitEvent struct {
	MinBlock    uint64 `json:"min_block"`
	MaxBlock    uint64 `json:"max_block"`
	RecordCount int    `json:"record_count"`
	CommittedAt int64  `json:"committed_at"`
}

// NoopNotifier is used when settings.Notify.KafkaBrokers is empty.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, models.BlockHeight, models.BlockHeight, int) error {
	return nil
}
func (NoopNotifier) Close() error { return nil }

// KafkaNotifier publishes commitEvent to a fixed topic via a sarama
// SyncProducer.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{producer: producer, topic: topic, log: log}, nil
}

func (n *KafkaNotifier) Notify(_ context.Context, minHeight, maxHeight models.BlockHeight, counts int) error {
	body, err := json.Marshal(commitEvent{
		MinBlock:    uint64(minHeight),
		MaxBlock:    uint64(maxHeight),
		RecordCount: counts,
		CommittedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(body),
	})
	if err != nil && n.log != nil {
		n.log.Warn("commit notify publish failed", zap.Error(err))
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
