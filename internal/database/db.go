// Package database opens the MySQL connection used by the decision audit
// store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSN builds the driver connection string.  Times are read and written in
// UTC.
func DSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const decisionsTable = `CREATE TABLE IF NOT EXISTS booking_decisions (
	id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	event_id     VARCHAR(64)  NOT NULL,
	booking_id   VARCHAR(64)  NOT NULL,
	lab_id       VARCHAR(64)  NOT NULL DEFAULT '',
	requester_id VARCHAR(64)  NOT NULL DEFAULT '',
	decision     VARCHAR(16)  NOT NULL,
	reason       TEXT         NULL,
	decided_by   VARCHAR(64)  NOT NULL DEFAULT '',
	decided_at   DATETIME     NOT NULL,
	created_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_booking_decisions_event (event_id),
	KEY idx_booking_decisions_booking (booking_id, decided_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the audit table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, decisionsTable); err != nil {
		return fmt.Errorf("create booking_decisions: %w", err)
	}
	return nil
}
