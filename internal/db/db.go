// Package db opens and caches the databases that sql functions run against.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Registry hands out one shared connection pool per DSN.
type Registry struct {
	defaultDSN string
	logger     *zap.Logger

	conns map[string]*gorm.DB
	mu    sync.Mutex
}

// NewRegistry creates a registry. defaultDSN is used when a function does not name a database.
func NewRegistry(defaultDSN string, logger *zap.Logger) *Registry {
	return &Registry{
		defaultDSN: defaultDSN,
		logger:     logger,
		conns:      make(map[string]*gorm.DB),
	}
}

// Get returns the database for dsn, connecting on first use.
func (r *Registry) Get(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = r.defaultDSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database configured")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[dsn]; ok {
		return conn, nil
	}
	conn, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("connected to database", zap.String("driver", conn.Dialector.Name()))
	r.conns[dsn] = conn
	return conn, nil
}

// Close closes every open connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []string
	for dsn, conn := range r.conns {
		sqlDB, err := conn.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
		delete(r.conns, dsn)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close databases: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Open connects to a postgres database when dsn is a postgres url or keyword string,
// and to a sqlite file otherwise.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if isPostgresDSN(dsn) {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
		}
		return db, nil
	}

	if IsFilePath(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite database %s: %w", dsn, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", dsn, err)
	}
	return db, nil
}

// IsFilePath reports whether dsn is a plain sqlite file path.
func IsFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && !isPostgresDSN(dsn)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
