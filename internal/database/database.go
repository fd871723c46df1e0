package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"eventhub/internal/config"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// Init opens the configured database, checks the connection and applies the
// schema.
func Init(cfg config.Config) (*sql.DB, error) {
	driver, dsn := DSN(cfg)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// one connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db, driver); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("✅ Database connection established (%s)", driver)
	return db, nil
}

// DSN builds the driver name and data source name for cfg
func DSN(cfg config.Config) (string, string) {
	if cfg.DBDriver == DriverSQLite {
		return DriverSQLite, cfg.DBPath
	}

	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	return DriverMySQL, mc.FormatDSN()
}

// Migrate creates the tables and indexes if they do not exist yet
func Migrate(db *sql.DB, driver string) error {
	ts := "DATETIME"
	if driver == DriverMySQL {
		ts = "DATETIME(3)"
	}

	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{ts}}", ts)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	for _, idx := range indexes {
		stmt := "CREATE INDEX " + idx
		if driver == DriverSQLite {
			stmt = "CREATE INDEX IF NOT EXISTS " + idx
		}
		if _, err := db.Exec(stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// isDuplicateIndex reports MySQL error 1061, which MySQL returns instead of
// supporting CREATE INDEX IF NOT EXISTS.
func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(64) PRIMARY KEY,
		vendor_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price BIGINT NOT NULL,
		minimum_quantity INT NOT NULL DEFAULT 1,
		unit VARCHAR(32) NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id VARCHAR(26) PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		vendor_id VARCHAR(64) NOT NULL,
		created_at {{ts}} NOT NULL,
		UNIQUE (customer_id, vendor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(26) PRIMARY KEY,
		thread_id VARCHAR(26) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		sender_type VARCHAR(16) NOT NULL,
		content TEXT NOT NULL,
		client_id VARCHAR(64) NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id VARCHAR(26) PRIMARY KEY,
		thread_id VARCHAR(26) NOT NULL,
		listing_id VARCHAR(64) NOT NULL,
		listing_name VARCHAR(255) NOT NULL DEFAULT '',
		original_price BIGINT NOT NULL,
		customized_price BIGINT NULL,
		offered_price BIGINT NOT NULL,
		counter_price BIGINT NULL,
		counter_message TEXT NULL,
		message TEXT NULL,
		status VARCHAR(16) NOT NULL,
		customization TEXT NULL,
		event_type VARCHAR(64) NOT NULL,
		event_date VARCHAR(32) NOT NULL,
		event_time VARCHAR(32) NOT NULL DEFAULT '',
		venue_address TEXT NULL,
		guest_count INT NULL,
		order_id VARCHAR(26) NULL,
		token_amount BIGINT NULL,
		token_paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(26) PRIMARY KEY,
		offer_id VARCHAR(26) NOT NULL,
		thread_id VARCHAR(26) NOT NULL,
		customer_id VARCHAR(64) NOT NULL,
		vendor_id VARCHAR(64) NOT NULL,
		total_amount BIGINT NOT NULL,
		token_amount BIGINT NOT NULL,
		token_paid BOOLEAN NOT NULL DEFAULT FALSE,
		payment_id VARCHAR(64) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		created_at {{ts}} NOT NULL,
		UNIQUE (offer_id)
	)`,
}

var indexes = []string{
	"idx_messages_thread ON messages (thread_id, created_at)",
	"idx_offers_thread ON offers (thread_id, created_at)",
}
