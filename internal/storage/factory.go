package storage

import (
	"log/slog"
)

// NewStorage creates a new SQLite storage instance in dataDir.
func NewStorage(dataDir string, stopWords map[string]bool, logger *slog.Logger) (Storage, error) {
	return NewSQLiteStorage(Options{DataDir: dataDir, StopWords: stopWords, Logger: logger})
}
