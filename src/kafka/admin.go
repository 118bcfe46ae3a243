package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type AdminClientConfig struct {
	serverConfigs
	*SecurityConfig

	requestTimeoutMs int
	retries          int
	retryBackoffMs   int
	socketTimeoutMs  int
}

func NewAdminCgfWithSvrCfgs(serverConfigs *serverConfigs,
	securityConfig *SecurityConfig) (*AdminClientConfig, error) {

	if serverConfigs == nil {
		return nil, errors.New("serverConfigs is required")
	}

	a := &AdminClientConfig{
		serverConfigs:    *serverConfigs,
		SecurityConfig:   securityConfig,
		requestTimeoutMs: 30000,
		retries:          3,
		retryBackoffMs:   100,
		socketTimeoutMs:  60000,
	}

	return a, nil
}

func (a *AdminClientConfig) WithRequestTimeoutMs(timeoutMs int) *AdminClientConfig {
	if timeoutMs > 0 {
		a.requestTimeoutMs = timeoutMs
	}
	return a
}

func (a *AdminClientConfig) WithRetries(retries int) *AdminClientConfig {
	if retries >= 0 {
		a.retries = retries
	}
	return a
}

func (a *AdminClientConfig) Build() (*kafka.ConfigMap, error) {
	configMap := kafka.ConfigMap{}

	configMap.SetKey("bootstrap.servers", strings.Join(a.bootstrapServers, ","))

	configMap.SetKey("request.timeout.ms", a.requestTimeoutMs)
	configMap.SetKey("retries", a.retries)
	configMap.SetKey("retry.backoff.ms", a.retryBackoffMs)
	configMap.SetKey("socket.timeout.ms", a.socketTimeoutMs)

	if a.clientId != nil {
		configMap.SetKey("client.id", *a.clientId)
	}

	if a.SecurityConfig != nil {
		a.SecurityConfig.Build(&configMap)
	}

	return &configMap, nil
}

// EnsureTopic crea el topic si no existe. Un topic ya existente no es error.
func EnsureTopic(ctx context.Context, config *AdminClientConfig,
	topic *Topic, logger observability.Logger) error {

	if err := topic.Validate(); err != nil {
		return fmt.Errorf("validate topic: %w", err)
	}

	cfg, err := config.Build()
	if err != nil {
		return fmt.Errorf("build admin config: %w", err)
	}

	admin, err := kafka.NewAdminClient(cfg)
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer admin.Close()

	results, err := admin.CreateTopics(ctx,
		[]kafka.TopicSpecification{*topic.Build()},
		kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError &&
			result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("create topic %s: %s", result.Topic, result.Error.String())
		}

		logger.Info(ctx, "Topic de dead letter disponible",
			"topic", result.Topic)
	}

	return nil
}
