package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/oatdump/pkg/config"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/telemetry"
	"github.com/oatdump/pkg/utils"
)

// DBType names a supported database.
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
)

const (
	defaultMaxConns = 4
	pingTimeout     = 10 * time.Second
)

func dbType(cfg *config.DatabaseConfig) DBType {
	switch t := DBType(strings.ToLower(cfg.Type)); t {
	case "":
		return DBTypeSQLite
	case "postgresql":
		return DBTypePostgres
	default:
		return t
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch dbType(cfg) {
	case DBTypeSQLite:
		return sqlite.Open(cfg.Path), nil
	case DBTypePostgres:
		return postgres.Open(fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)), nil
	case DBTypeMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)), nil
	}
	return nil, apperrors.Newf(apperrors.CodeConfigError, "unsupported database type %q", cfg.Type)
}

// NewGormDB connects to the history database described by cfg. SQL is
// logged through the global logger at debug level.
func NewGormDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: newGormLogger(utils.GetGlobalLogger().WithField("component", "history")),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "open "+string(dbType(cfg)), err)
	}
	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "install tracing plugin", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "unwrap sql.DB", err)
	}
	if dbType(cfg) == DBTypeSQLite {
		// One connection: sqlite serializes writers and ":memory:" lives per connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		n := cfg.MaxConns
		if n <= 0 {
			n = defaultMaxConns
		}
		sqlDB.SetMaxOpenConns(n)
		sqlDB.SetMaxIdleConns((n + 1) / 2)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "ping "+string(dbType(cfg)), err)
	}
	return db, nil
}

// Migrate creates or updates the dump history tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DumpRecord{}, &DescriptorRow{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "migrate dump history", err)
	}
	return nil
}

// Repositories bundles the repositories sharing one connection.
type Repositories struct {
	Dump   DumpRepository
	gormDB *gorm.DB
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{Dump: NewGormDumpRepository(db), gormDB: db}
}

// Open connects, migrates and returns the repositories for cfg.
func Open(cfg *config.DatabaseConfig) (*Repositories, error) {
	db, err := NewGormDB(cfg)
	if err != nil {
		return nil, err
	}
	repos := NewRepositories(db)
	if err := Migrate(db); err != nil {
		repos.Close()
		return nil, err
	}
	return repos, nil
}

// Close releases the connection pool. A zero Repositories closes cleanly.
func (r *Repositories) Close() error {
	if r.gormDB == nil {
		return nil
	}
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database.
func (r *Repositories) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
