package database

import (
	"fmt"
	"strings"

	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open establishes a database connection and performs schema migrations.
// PostgreSQL DSNs get the postgres driver; anything else is treated as a
// SQLite path (file or :memory:). TranslateError is enabled so unique
// constraint failures surface as gorm.ErrDuplicatedKey on both drivers.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dialector := gorm.Dialector(sqlite.Open(dsn))
	usePostgres := isPostgresDSN(dsn)
	if usePostgres {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if !usePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&users.User{},
		&topics.Topic{},
		&posts.Post{},
		&posts.Vote{},
		&posts.Comment{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.Bool("postgres", usePostgres))
	}

	return db, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
