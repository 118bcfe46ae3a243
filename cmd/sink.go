package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/app"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/config"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/server"
	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func serve() {
	ctx := context.Background()

	// Cargar configuración de log
	logConfig, err := config.LogCfg()
	if err != nil {
		panic(fmt.Sprintf("error loading log config: %v", err))
	}

	sc, err := scribe.New(logConfig, nil, nil)
	if err != nil {
		panic(fmt.Sprintf("error creating scribe: %v", err))
	}

	logger := observability.NewScribeLogger(sc)

	// Cargar configuración del servidor
	serverConfig, err := config.ServerCfg()
	if err != nil {
		logger.Error(ctx, "Error loading server config", err)
		panic(fmt.Sprintf("error loading server config: %v", err))
	}

	// Crear servicio de métricas antes de armar el pipeline, para que los
	// componentes encuentren la instancia singleton al construirse
	metricsService := observability.NewMetricsService()
	observability.NewSinkMetrics(metricsService.GetRegistry())

	// Crear el servicio del sink (conecta al warehouse con retry)
	service, err := app.NewService(ctx)
	if err != nil {
		logger.Error(ctx, "Error creating sink service", err)
		panic(fmt.Sprintf("error creating sink service: %v", err))
	}
	defer service.Close(ctx)

	// Configurar servidor HTTP con Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Endpoint push: acá llegan los mensajes CDC
	server.RegisterPushEndpoint(router, service.Processor(), logger)

	// Endpoint de métricas de Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsService.GetRegistry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if err := service.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", serverConfig.HttpPort),
		Handler: router,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting sink server", "port", serverConfig.HttpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// Manejar señales de terminación
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Info(ctx, "Received termination signal", "signal", sig.String())

		// Cerrar la admisión primero: los mensajes sin secuenciar quedan
		// sin confirmar y el transporte los reentrega
		service.Processor().Shutdown(ctx)

		// Drenar el servidor HTTP: los applies en vuelo terminan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info(ctx, "Stopping sink server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Error stopping sink server", err)
		}

	case err := <-serverErrChan:
		logger.Error(ctx, "Sink server error", err)
		panic(fmt.Sprintf("sink server error: %v", err))
	}
}

func main() {
	fmt.Println("Starting CDC sink...")
	serve()
	fmt.Println("CDC sink stopped")
}
