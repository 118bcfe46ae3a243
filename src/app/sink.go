package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/config"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/deadletter"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/pipeline"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/server"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/warehouse"
	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/gin-gonic/gin"
)

// Service arma el pipeline completo del sink: decoder → normalizer →
// secuenciador → apply engine → coordinación de confirmaciones, con el
// cliente del warehouse y el dead letter inyectados explícitamente.
type Service struct {
	logger     observability.Logger
	client     *warehouse.Client
	processor  *pipeline.Processor
	sequencer  *pipeline.KeySequencer
	deadLetter *deadletter.Router
	serverCfg  *config.ServerConfig
}

func NewService(ctx context.Context) (*Service, error) {

	logConfig, err := config.LogCfg()
	if err != nil {
		return nil, fmt.Errorf("load log config: %w", err)
	}

	sc, err := scribe.New(logConfig, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create scribe: %w", err)
	}

	logger := observability.NewScribeLogger(sc)

	warehouseCfg, err := config.WarehouseCfg()
	if err != nil {
		return nil, fmt.Errorf("load warehouse config: %w", err)
	}

	pipelineCfg, err := config.PipelineCfg()
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}

	deadLetterCfg, err := config.DeadLetterCfg()
	if err != nil {
		return nil, fmt.Errorf("load dead letter config: %w", err)
	}

	serverCfg, err := config.ServerCfg()
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}

	client := warehouse.NewClient(warehouseCfg.ConnectionStringWithPool(), logger)

	if err := client.ConnectWithRetry(ctx); err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}

	mutator, err := warehouse.NewPgMutator(client.Pool(), warehouseCfg.Table)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create mutator: %w", err)
	}

	engine, err := warehouse.NewEngine(mutator, warehouse.EngineOptions{
		MaxAttempts:    pipelineCfg.MaxAttempts,
		BackoffInitial: time.Duration(pipelineCfg.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(pipelineCfg.BackoffMaxMs) * time.Millisecond,
	}, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create apply engine: %w", err)
	}

	normalizer, err := pipeline.NewNormalizer(pipelineCfg.OpCodes, warehouseCfg.KeyColumns)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create normalizer: %w", err)
	}

	sequencer := pipeline.NewKeySequencer(pipelineCfg.MaxConcurrency, logger)

	deadLetterSink, err := buildDeadLetterSink(deadLetterCfg, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create dead letter sink: %w", err)
	}

	deadLetterRouter := deadletter.NewRouter(deadLetterSink, logger)

	logger.Info(ctx, "Sink configurado",
		"table", warehouseCfg.Table,
		"key_columns", warehouseCfg.KeyColumns,
		"max_concurrency", pipelineCfg.MaxConcurrency,
		"max_attempts", pipelineCfg.MaxAttempts,
		"dead_letter_mode", deadLetterCfg.Mode)

	processor := pipeline.NewProcessor(normalizer, sequencer, engine, deadLetterRouter, logger)

	return &Service{
		logger:     logger,
		client:     client,
		processor:  processor,
		sequencer:  sequencer,
		deadLetter: deadLetterRouter,
		serverCfg:  serverCfg,
	}, nil
}

func buildDeadLetterSink(deadLetterCfg *config.DeadLetterConfig,
	logger observability.Logger) (deadletter.Sink, error) {

	switch deadLetterCfg.Mode {
	case "kafka":
		return deadletter.NewKafkaSink(deadletter.KafkaOptions{
			Topic:            deadLetterCfg.Topic,
			BootstrapServers: deadLetterCfg.BootstrapServers,
			ClientID:         deadLetterCfg.ClientID,
			Partitions:       deadLetterCfg.Partitions,

			SecurityProtocol:      deadLetterCfg.SecurityProtocol,
			SASLMechanism:         deadLetterCfg.SASLMechanism,
			SASLUsername:          deadLetterCfg.SASLUsername,
			SASLPassword:          deadLetterCfg.SASLPassword,
			SSLKeystoreLocation:   deadLetterCfg.SSLKeystoreLocation,
			SSLKeystorePassword:   deadLetterCfg.SSLKeystorePassword,
			SSLTruststoreLocation: deadLetterCfg.SSLTruststoreLocation,
			SSLTruststorePassword: deadLetterCfg.SSLTruststorePassword,

			Acks:              deadLetterCfg.Acks,
			ProducerRetries:   deadLetterCfg.ProducerRetries,
			DeliveryTimeoutMs: deadLetterCfg.DeliveryTimeoutMs,
			RequestTimeoutMs:  deadLetterCfg.RequestTimeoutMs,
		}, logger)
	case "file":
		return deadletter.NewFileSink(deadLetterCfg.OutputDir, logger)
	default:
		return nil, fmt.Errorf("unknown dead letter mode %q", deadLetterCfg.Mode)
	}
}

func (s *Service) Processor() *pipeline.Processor {
	return s.processor
}

func (s *Service) Logger() observability.Logger {
	return s.logger
}

func (s *Service) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// Run levanta el endpoint push y bloquea hasta que el servidor termine.
// El entrypoint de cmd/ usa su propio router con métricas; este es el
// arranque mínimo.
func (s *Service) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	server.RegisterPushEndpoint(router, s.processor, s.logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.serverCfg.HttpPort),
		Handler: router,
	}

	s.logger.Info(ctx, "Iniciando endpoint push", "port", s.serverCfg.HttpPort)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Service) Close(ctx context.Context) error {

	s.logger.Trace(ctx, "Cerrando Service")

	// Primero cerrar la admisión para que nada nuevo entre a los lanes
	if s.processor != nil {
		s.processor.Shutdown(ctx)
	}

	// Dar un margen a los applies en vuelo; no se abortan a mitad de
	// escritura para no dejar ambigüedad de aplicación parcial
	deadline := time.Now().Add(10 * time.Second)
	for s.sequencer.InflightApplies() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	// Cerrar el dead letter
	if s.deadLetter != nil {
		if err := s.deadLetter.Close(); err != nil {
			s.logger.Error(ctx, "Error cerrando dead letter", err)
		}
	}

	// Finalmente cerrar el pool del warehouse
	if s.client != nil {
		s.logger.Trace(ctx, "Cerrando cliente del warehouse")
		s.client.Close()
	}

	s.logger.Trace(ctx, "Service cerrado")
	return nil
}
