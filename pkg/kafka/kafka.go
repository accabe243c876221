package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/model"
	cb "github.com/bookhaven/library-service/pkg/circuit_breaker"
)

// LoanEventsTopic is used when the config leaves the topic empty.
const LoanEventsTopic = "loan-events"

type Config struct {
	Addrs []string `yaml:"addrs" envconfig:"KAFKA_ADDRS" default:"localhost:9092"`
	Topic string   `yaml:"topic" envconfig:"KAFKA_LOAN_TOPIC"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

// Publisher emits loan lifecycle events for downstream consumers (the
// stats service and the overdue sweeper). Publishing is best effort
// behind a circuit breaker: a down broker degrades to dropped events,
// never to failed borrows.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	breaker  cb.CircuitBreaker
	log      *zap.Logger
}

func NewPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) *Publisher {
	if topic == "" {
		topic = LoanEventsTopic
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		breaker:  cb.New(20, 10*time.Second, 0.5, 3),
		log:      log.Named("kafka"),
	}
}

func (p *Publisher) PublishLoanEvent(ev model.LoanEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal loan event", zap.Error(err))
		return
	}
	err = p.breaker.Call(func() error {
		_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.LoanID),
			Value: sarama.ByteEncoder(msg),
		})
		return err
	})
	if err != nil {
		p.log.Warn("publish loan event", zap.String("loanId", ev.LoanID), zap.Error(err))
		return
	}
	p.log.Debug("loan event published", zap.String("type", string(ev.Type)), zap.String("loanId", ev.LoanID))
}

func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return errors.Wrap(err, "close producer")
	}
	return nil
}
