package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/kafka"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/utils"
	confluentkafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaOptions son los parámetros del sink Kafka de dead letter.
type KafkaOptions struct {
	Topic            string
	BootstrapServers []string
	ClientID         string
	Partitions       int

	// Seguridad del broker; vacío = PLAINTEXT
	SecurityProtocol      string
	SASLMechanism         string
	SASLUsername          string
	SASLPassword          string
	SSLKeystoreLocation   string
	SSLKeystorePassword   string
	SSLTruststoreLocation string
	SSLTruststorePassword string

	// Afinación del productor/admin; cero = defaults del builder
	Acks              *int
	ProducerRetries   int
	DeliveryTimeoutMs int
	RequestTimeoutMs  int
}

// KafkaSink publica los records en un topic de dead letter. La producción es
// asíncrona: los reportes de entrega se monitorean en segundo plano y las
// fallas se registran sin propagarse al pipeline.
type KafkaSink struct {
	topic    string
	logger   observability.Logger
	producer *kafka.ProducerService

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaSink(opts KafkaOptions,
	logger observability.Logger) (*KafkaSink, error) {

	if len(opts.BootstrapServers) == 0 {
		return nil, fmt.Errorf("bootstrap servers are required")
	}

	if utils.StringIsEmptyOrWhitespace(opts.Topic) {
		return nil, fmt.Errorf("topic is required")
	}

	if opts.Partitions <= 0 {
		opts.Partitions = 1
	}

	producerCfg, err := buildProducerConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("build producer config: %w", err)
	}

	producer, err := kafka.NewProducerService(producerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create producer service: %w", err)
	}

	// El topic se asegura al arrancar, no al primer record perdido.
	adminCfg, err := buildAdminConfig(opts)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("build admin config: %w", err)
	}

	topic := kafka.NewTopic(opts.Topic, opts.Partitions, 1)

	if err := kafka.EnsureTopic(context.Background(), adminCfg, topic, logger); err != nil {
		producer.Close()
		return nil, fmt.Errorf("ensure dead letter topic: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ks := &KafkaSink{
		topic:    opts.Topic,
		logger:   logger,
		producer: producer,
		cancel:   cancel,
	}

	ks.wg.Add(1)
	go ks.monitorDeliveries(ctx)

	return ks, nil
}

// monitorDeliveries drena los reportes de entrega del productor. Un record de
// dead letter que no se pudo publicar solo se registra: reintentar acá
// arriesga a estancar el pipeline por su vía de escape.
func (ks *KafkaSink) monitorDeliveries(ctx context.Context) {
	defer ks.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ks.producer.DeliveryReports:
			if e == nil {
				continue
			}

			msg, ok := e.(*confluentkafka.Message)
			if !ok {
				continue
			}

			if msg.TopicPartition.Error != nil {
				ks.logger.Error(ctx, "Error publicando record de dead letter", msg.TopicPartition.Error,
					"topic", ks.topic)
			}
		}
	}
}

func (ks *KafkaSink) Persist(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	if err := ks.producer.ProduceMessageAsync(ks.topic, jsonData, nil); err != nil {
		return fmt.Errorf("produce record: %w", err)
	}

	return nil
}

func (ks *KafkaSink) Close() error {
	if ks.cancel != nil {
		ks.cancel()
	}
	ks.wg.Wait()

	ks.producer.Close()
	return nil
}

// buildSecurityConfig arma la seguridad del broker a partir de las opciones;
// retorna nil cuando no hay nada configurado (PLAINTEXT).
func buildSecurityConfig(opts KafkaOptions) *kafka.SecurityConfig {
	sec := kafka.NewSecurityConfig().
		WithProtocol(opts.SecurityProtocol).
		WithSASL(opts.SASLMechanism, opts.SASLUsername, opts.SASLPassword).
		WithSSL(opts.SSLKeystoreLocation, opts.SSLKeystorePassword,
			opts.SSLTruststoreLocation, opts.SSLTruststorePassword)

	if sec.IsEmpty() {
		return nil
	}

	return sec
}

func buildProducerConfig(opts KafkaOptions) (*kafka.ProducerConfig, error) {
	var clientID *string
	if opts.ClientID != "" {
		clientID = &opts.ClientID
	}

	serverConfigs, err := kafka.NewServerConfigs(opts.BootstrapServers, clientID)
	if err != nil {
		return nil, err
	}

	producerCfg, err := kafka.NewProducerCgfWithSvrCfgs(serverConfigs, buildSecurityConfig(opts))
	if err != nil {
		return nil, err
	}

	if opts.Acks != nil {
		if producerCfg, err = producerCfg.WithACKs(kafka.ACKS(*opts.Acks)); err != nil {
			return nil, err
		}
	}

	if opts.ProducerRetries > 0 {
		producerCfg = producerCfg.WithRetries(opts.ProducerRetries)
	}

	if opts.DeliveryTimeoutMs > 0 {
		producerCfg = producerCfg.WithDeliveryTimeoutMs(opts.DeliveryTimeoutMs)
	}

	return producerCfg, nil
}

func buildAdminConfig(opts KafkaOptions) (*kafka.AdminClientConfig, error) {
	var clientID *string
	if opts.ClientID != "" {
		clientID = &opts.ClientID
	}

	serverConfigs, err := kafka.NewServerConfigs(opts.BootstrapServers, clientID)
	if err != nil {
		return nil, err
	}

	adminCfg, err := kafka.NewAdminCgfWithSvrCfgs(serverConfigs, buildSecurityConfig(opts))
	if err != nil {
		return nil, err
	}

	if opts.RequestTimeoutMs > 0 {
		adminCfg = adminCfg.WithRequestTimeoutMs(opts.RequestTimeoutMs)
	}

	if opts.ProducerRetries > 0 {
		adminCfg = adminCfg.WithRetries(opts.ProducerRetries)
	}

	return adminCfg, nil
}
