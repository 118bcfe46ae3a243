package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
)

// FileSink persiste records como JSON por línea en un archivo append-only.
// Pensado para entornos sin Kafka y para pruebas locales.
type FileSink struct {
	file   *os.File
	logger observability.Logger
	mu     sync.Mutex
}

func NewFileSink(outputDir string, logger observability.Logger) (*FileSink, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	filePath := filepath.Join(outputDir, "deadletter.jsonl")

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &FileSink{
		file:   file,
		logger: logger,
	}, nil
}

func (fs *FileSink) Persist(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	if _, err := fs.file.Write(jsonData); err != nil {
		return fmt.Errorf("write to file: %w", err)
	}

	if _, err := fs.file.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.file.Close()
}
