package kafka

import (
	"context"
	"errors"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type ProducerConfig struct {
	serverConfigs
	*SecurityConfig

	acks *ACKS

	lingerMs  int
	batchSize int

	retries           int
	deliveryTimeoutMs int
	messageTimeoutMs  int
}

func NewProducerCgfWithSvrCfgs(serverConfigs *serverConfigs,
	securityConfig *SecurityConfig) (*ProducerConfig, error) {

	if serverConfigs == nil {
		return nil, errors.New("serverConfigs is required")
	}

	acks := ACKsAll
	p := &ProducerConfig{
		serverConfigs:     *serverConfigs,
		SecurityConfig:    securityConfig,
		acks:              &acks,
		retries:           1,
		deliveryTimeoutMs: 10000,
		messageTimeoutMs:  10000,
	}

	return p, nil
}

func (p *ProducerConfig) WithACKs(acks ACKS) (*ProducerConfig, error) {
	if IsNotValidACKs(acks) {
		return nil, errors.New("invalid acks value")
	}
	p.acks = &acks
	return p, nil
}

func (p *ProducerConfig) WithRetries(retries int) *ProducerConfig {
	if retries < 0 {
		return p
	}
	p.retries = retries
	return p
}

func (p *ProducerConfig) WithDeliveryTimeoutMs(deliveryTimeoutMs int) *ProducerConfig {
	if deliveryTimeoutMs < 0 {
		return p
	}
	p.deliveryTimeoutMs = deliveryTimeoutMs
	return p
}

func (p *ProducerConfig) Build() (*kafka.ConfigMap, error) {
	configMap := kafka.ConfigMap{}

	configMap.SetKey("bootstrap.servers", strings.Join(p.bootstrapServers, ","))
	configMap.SetKey("acks", int(*p.acks))
	configMap.SetKey("delivery.timeout.ms", p.deliveryTimeoutMs)
	configMap.SetKey("message.timeout.ms", p.messageTimeoutMs)
	configMap.SetKey("retries", p.retries)

	if p.lingerMs > 0 {
		configMap.SetKey("linger.ms", p.lingerMs)
	}

	if p.batchSize > 0 {
		configMap.SetKey("batch.size", p.batchSize)
	}

	if p.clientId != nil {
		configMap.SetKey("client.id", *p.clientId)
	}

	if p.SecurityConfig != nil {
		p.SecurityConfig.Build(&configMap)
	}

	return &configMap, nil
}

type ProducerService struct {
	Config *ProducerConfig
	*kafka.Producer
	logger          observability.Logger
	DeliveryReports chan kafka.Event
}

func NewProducerService(config *ProducerConfig, logger observability.Logger) (*ProducerService, error) {
	p := &ProducerService{
		Config: config,
		logger: logger,
	}

	cfg, err := config.Build()
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}

	p.Producer = producer
	p.DeliveryReports = producer.Events()

	return p, nil
}

func (s *ProducerService) Close() {
	if s.Producer != nil {
		remaining := s.Producer.Flush(5000)
		if remaining > 0 {
			s.logger.Warn(context.Background(), "Mensajes sin confirmar al cerrar el productor", nil,
				"remaining", remaining)
		}
		s.Producer.Close()
	}
}

func (s *ProducerService) ProduceMessageAsync(topic string, message []byte, opaque interface{}) error {
	err := s.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: int32(kafka.PartitionAny),
		},
		Value:  message,
		Opaque: opaque,
	}, nil)

	if err != nil {
		return err
	}

	return nil
}
