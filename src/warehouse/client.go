package warehouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client administra el pool de conexiones al warehouse. El pool es compartido
// por todos los workers; pgxpool acota las conexiones en vuelo según
// pool_max_conns del DSN.
type Client struct {
	connString string
	logger     observability.Logger
	pool       *pgxpool.Pool
	retryDelay time.Duration
	maxRetries int
}

func NewClient(connString string,
	logger observability.Logger) *Client {

	return &Client{
		connString: connString,
		logger:     logger,
		retryDelay: 5 * time.Second,
		maxRetries: -1, // -1 = infinito
	}
}

func (c *Client) ConnectWithRetry(ctx context.Context) error {

	for attempt := 0; c.maxRetries < 0 || attempt < c.maxRetries; attempt++ {

		if attempt == math.MaxInt {

			c.logger.Error(ctx,
				fmt.Sprintf("No se pudo conectar después de %d intentos reiniciando contador a 60", math.MaxInt), nil)

			attempt = 60

		}

		if attempt > 0 {

			delay := c.calculateBackoff(attempt)

			c.logger.Warn(ctx, "Reintentando conexión al warehouse", nil,
				"attempt", attempt,
				"delay", delay.String())

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.connect(ctx)

		if err == nil {
			c.logger.Info(ctx, "Conexión al warehouse establecida exitosamente")

			return nil
		}

		c.logger.Error(ctx, "Error conectando al warehouse", err,
			"attempt", attempt+1)
	}

	return fmt.Errorf("no se pudo conectar después de %d intentos", c.maxRetries)
}

func (c *Client) connect(ctx context.Context) error {

	poolConfig, err := pgxpool.ParseConfig(c.connString)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping warehouse: %w", err)
	}

	c.pool = pool

	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if c.pool == nil {
		return fmt.Errorf("pool is nil")
	}

	var result int
	err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
