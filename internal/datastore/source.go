package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// Source types.
const (
	SourceSQLite = "sqlite"
	SourceMySQL  = "mysql"
)

// sqliteDriverName is go-sqlite3 with a Unicode-aware lower() registered
// on every connection. The built-in lower() only folds ASCII, so localized
// names such as "Östlicher Kleiber" would never match a name filter.
const sqliteDriverName = "sqlite3_unicode"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

// unicodeLower lowercases text values and passes everything else through.
// NULL arrives as a nil byte slice and stays NULL.
func unicodeLower(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case []byte:
		if x == nil {
			return nil
		}
		return strings.ToLower(string(x))
	default:
		return v
	}
}

// sqliteBusyTimeoutMs bounds how long a read waits on the upstream writer.
const sqliteBusyTimeoutMs = 5000

// MySQLConfig holds connection settings for a MySQL upstream.
type MySQLConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// session is one scoped connection. release must always be called.
type session struct {
	db          *gorm.DB
	fingerprint string
}

func (s *session) release() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// sqliteDSN opens path read-only through SQLite's URI syntax.
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, sqliteBusyTimeoutMs)
}

// mysqlDSN builds a go-sql-driver DSN for cfg.
func mysqlDSN(cfg *MySQLConfig) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Timeout = 10 * time.Second
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// openSQLite opens a read-only session on the file at path. A missing file
// is reported as not found, since the upstream application may not have
// created it yet.
func openSQLite(path string, gormCfg *gorm.Config) (*session, error) {
	if path == "" {
		return nil, notFoundError(path)
	}

	fi, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return nil, notFoundError(path)
	case err != nil:
		return nil, storageError(err, "stat database")
	case fi.IsDir():
		return nil, storageError(fmt.Errorf("%s is a directory", path), "stat database")
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: sqliteDriverName,
		DSN:        sqliteDSN(path),
	}), gormCfg)
	if err != nil {
		return nil, storageError(err, "open sqlite database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageError(err, "open sqlite database")
	}
	sqlDB.SetMaxOpenConns(1)

	return &session{db: db, fingerprint: fileFingerprint(path, fi.Size(), fi.ModTime())}, nil
}

// openMySQL opens a session pinned to one connection and switches it to
// read-only transactions.
func openMySQL(ctx context.Context, cfg *MySQLConfig, gormCfg *gorm.Config) (*session, error) {
	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), gormCfg)
	if err != nil {
		return nil, storageError(err, "open mysql database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageError(err, "open mysql database")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	s := &session{
		db:          db,
		fingerprint: fmt.Sprintf("mysql:%s@%s:%d/%s", cfg.Username, cfg.Host, cfg.Port, cfg.Database),
	}

	if err := db.WithContext(ctx).Exec("SET SESSION TRANSACTION READ ONLY").Error; err != nil {
		_ = s.release()
		return nil, storageError(err, "set read-only session")
	}
	return s, nil
}

// validateSource checks the static parts of a source configuration.
func validateSource(cfg *Config) error {
	switch cfg.Type {
	case SourceSQLite, "":
		return nil
	case SourceMySQL:
		if cfg.MySQL.Host == "" || cfg.MySQL.Database == "" {
			return errors.Newf("mysql source requires host and database").
				Component("datastore").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return nil
	default:
		return errors.Newf("unsupported database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("type", cfg.Type).
			Build()
	}
}
