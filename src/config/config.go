package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/SOLUCIONESSYCOM/configuro"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/utils"
	"github.com/SOLUCIONESSYCOM/scribe"
)

var cfg *configuro.AppConfig

var poolKeys = []string{"pool_min_conns", "pool_max_conns"}

type warehouseConfig struct {
	connectionString string   `json:"-"` // Campo privado, no se deserializa directamente
	User             string   `json:"User"`
	Password         string   `json:"Password"`
	Table            string   `json:"Table"`
	KeyColumns       []string `json:"KeyColumns"`
}

type warehouseConfigJSON struct {
	ConnectionString string   `json:"ConnectionString"`
	User             string   `json:"User"`
	Password         string   `json:"Password"`
	Table            string   `json:"Table"`
	KeyColumns       []string `json:"KeyColumns"`
}

// ConnectionString arma la cadena de conexión sin las claves de pool,
// para conexiones simples de pgx.
func (c *warehouseConfig) ConnectionString() string {
	connString := ""

	parts := strings.Split(c.connectionString, " ")

	values := make(map[string]string)

	for _, part := range parts {
		kv := strings.Split(part, "=")
		if len(kv) == 2 {
			values[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	for key, value := range values {
		if !slices.Contains(poolKeys, strings.ToLower(key)) {
			connString += fmt.Sprintf("%s=%s ", key, value)
		}
	}
	connString += fmt.Sprintf("user=%s password=%s", c.User, c.Password)

	return connString
}

// ConnectionStringWithPool conserva las claves de pool (pool_max_conns, etc.)
// que pgxpool interpreta directamente del DSN.
func (c *warehouseConfig) ConnectionStringWithPool() string {
	connString := ""

	parts := strings.Split(c.connectionString, " ")

	values := make(map[string]string)

	for _, part := range parts {
		kv := strings.Split(part, "=")
		if len(kv) == 2 {
			values[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	for key, value := range values {
		connString += fmt.Sprintf("%s=%s ", key, value)
	}
	connString += fmt.Sprintf("user=%s password=%s", c.User, c.Password)

	return connString
}

func (c *warehouseConfig) String() string {
	return fmt.Sprintf("Table: %s, KeyColumns: %v, User: %s", c.Table, c.KeyColumns, c.User)
}

type WarehouseConfig struct {
	*warehouseConfig
}

type PipelineConfig struct {
	MaxConcurrency   int               `json:"MaxConcurrency"`
	MaxAttempts      int               `json:"MaxAttempts"`
	BackoffInitialMs int               `json:"BackoffInitialMs"`
	BackoffMaxMs     int               `json:"BackoffMaxMs"`
	OpCodes          map[string]string `json:"OpCodes,omitempty"`
}

type deadLetterConfig struct {
	Mode             string   `json:"Mode"` // "kafka" | "file"
	Topic            string   `json:"Topic,omitempty"`
	BootstrapServers []string `json:"BootstrapServers,omitempty"`
	ClientID         string   `json:"ClientID,omitempty"`
	Partitions       int      `json:"Partitions,omitempty"`
	OutputDir        string   `json:"OutputDir,omitempty"`

	// Seguridad del broker; vacío = PLAINTEXT
	SecurityProtocol      string `json:"SecurityProtocol,omitempty"`
	SASLMechanism         string `json:"SASLMechanism,omitempty"`
	SASLUsername          string `json:"SASLUsername,omitempty"`
	SASLPassword          string `json:"SASLPassword,omitempty"`
	SSLKeystoreLocation   string `json:"SSLKeystoreLocation,omitempty"`
	SSLKeystorePassword   string `json:"SSLKeystorePassword,omitempty"`
	SSLTruststoreLocation string `json:"SSLTruststoreLocation,omitempty"`
	SSLTruststorePassword string `json:"SSLTruststorePassword,omitempty"`

	// Afinación del productor/admin; cero = defaults del builder
	Acks              *int `json:"Acks,omitempty"` // -1 all, 1 leader, 0 none
	ProducerRetries   int  `json:"ProducerRetries,omitempty"`
	DeliveryTimeoutMs int  `json:"DeliveryTimeoutMs,omitempty"`
	RequestTimeoutMs  int  `json:"RequestTimeoutMs,omitempty"`
}

type DeadLetterConfig struct {
	*deadLetterConfig
}

type ServerConfig struct {
	HttpPort int `json:"HttpPort"`
}

func loadConfig() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error al obtener el path del archivo de configuración: %w", err)
	}

	execDir := filepath.Dir(execPath)
	configPath := filepath.Join(execDir, "config.json")

	cfg, err = configuro.NewFromJsonFiles(true, configPath)
	if err != nil {
		return fmt.Errorf("error al cargar el archivo de configuración: %w", err)
	}
	return nil
}

func WarehouseCfg() (*WarehouseConfig, error) {

	if cfg == nil || !cfg.IsBeenLoaded() {

		err := loadConfig()

		if err != nil {
			return nil, err
		}

	}

	warehouseConfigJson, err := configuro.GetSection[warehouseConfigJSON](cfg, "Warehouse")
	if err != nil {
		return nil, fmt.Errorf("error al obtener la configuración del warehouse: %w", err)
	}

	warehouseConfig := &warehouseConfig{
		connectionString: warehouseConfigJson.ConnectionString,
		User:             warehouseConfigJson.User,
		Password:         warehouseConfigJson.Password,
		Table:            warehouseConfigJson.Table,
		KeyColumns:       warehouseConfigJson.KeyColumns,
	}

	if utils.StringIsEmptyOrWhitespace(warehouseConfig.Table) {
		warehouseConfig.Table = "warehouse.customers"
	}

	if len(warehouseConfig.KeyColumns) == 0 {
		warehouseConfig.KeyColumns = []string{"id"}
	}

	return &WarehouseConfig{warehouseConfig: warehouseConfig}, nil
}

func PipelineCfg() (*PipelineConfig, error) {
	if cfg == nil || !cfg.IsBeenLoaded() {
		err := loadConfig()
		if err != nil {
			return nil, err
		}
	}

	pipelineConfig, err := configuro.GetSection[PipelineConfig](cfg, "Pipeline")
	if err != nil {
		return nil, fmt.Errorf("error al obtener la configuración del pipeline: %w", err)
	}

	if pipelineConfig.MaxConcurrency <= 0 {
		pipelineConfig.MaxConcurrency = 32
	}

	if pipelineConfig.MaxAttempts <= 0 {
		pipelineConfig.MaxAttempts = 5
	}

	if pipelineConfig.BackoffInitialMs <= 0 {
		pipelineConfig.BackoffInitialMs = 100
	}

	if pipelineConfig.BackoffMaxMs <= 0 {
		pipelineConfig.BackoffMaxMs = 10000
	}

	return pipelineConfig, nil
}

func DeadLetterCfg() (*DeadLetterConfig, error) {
	if cfg == nil || !cfg.IsBeenLoaded() {
		err := loadConfig()
		if err != nil {
			return nil, err
		}
	}

	deadLetterConfigJson, err := configuro.GetSection[deadLetterConfig](cfg, "DeadLetter")
	if err != nil {
		return nil, fmt.Errorf("error al obtener la configuración de dead letter: %w", err)
	}

	if utils.StringIsEmptyOrWhitespace(deadLetterConfigJson.Mode) {
		deadLetterConfigJson.Mode = "file"
	}

	if utils.StringIsEmptyOrWhitespace(deadLetterConfigJson.OutputDir) {
		deadLetterConfigJson.OutputDir = "deadletter"
	}

	if deadLetterConfigJson.Partitions <= 0 {
		deadLetterConfigJson.Partitions = 1
	}

	return &DeadLetterConfig{deadLetterConfig: deadLetterConfigJson}, nil
}

func ServerCfg() (*ServerConfig, error) {
	if cfg == nil || !cfg.IsBeenLoaded() {
		err := loadConfig()
		if err != nil {
			return nil, err
		}
	}

	serverConfig, err := configuro.GetSection[ServerConfig](cfg, "Server")
	if err != nil {
		return nil, fmt.Errorf("error al obtener la configuración del servidor: %w", err)
	}

	if serverConfig.HttpPort <= 0 {
		serverConfig.HttpPort = 8080
	}

	return serverConfig, nil
}

func LogCfg() (*scribe.ConfigLogger, error) {
	logConfigJson, err := configuro.GetSection[scribe.ConfigLogger](cfg, "Log")
	if err != nil {
		return nil, fmt.Errorf("error al obtener la configuración de logs: %w", err)
	}
	return logConfigJson, nil
}

func init() {
	err := loadConfig()
	if err != nil {
		fmt.Println("Error al cargar el archivo de configuración:", err)
		panic(err)
	}
}
