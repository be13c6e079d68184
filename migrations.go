package main

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema. When fresh is true every table is dropped
// first, which tests use to start from a clean in-memory database.
func Migrate(db *sql.DB, ctx context.Context, fresh bool) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring database connection: %w", err)
	}
	defer conn.Close()

	if fresh {
		for _, table := range []string{"sample_daily_aggregate", "samples", "nodes"} {
			if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("dropping table %s: %w", table, err)
			}
		}
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			endpoint_url VARCHAR NOT NULL,
			method VARCHAR NOT NULL,
			headers VARCHAR NOT NULL DEFAULT '{}',
			body BLOB,
			check_interval_ms INTEGER NOT NULL,
			expected_status_codes VARCHAR NOT NULL,
			failure_threshold INTEGER NOT NULL,
			status VARCHAR NOT NULL,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_check_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_user ON nodes (user_id)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id VARCHAR PRIMARY KEY,
			node_id VARCHAR NOT NULL,
			status_code INTEGER NOT NULL,
			status_text VARCHAR NOT NULL,
			response_time_ms BIGINT NOT NULL,
			success BOOLEAN NOT NULL,
			error_message VARCHAR NOT NULL DEFAULT '',
			response_body VARCHAR,
			tls_version VARCHAR,
			tls_cipher VARCHAR,
			tls_expiry TIMESTAMP,
			timing_dns_lookup_ms BIGINT NOT NULL DEFAULT 0,
			timing_conn_acquired_ms BIGINT NOT NULL DEFAULT 0,
			timing_tls_handshake_ms BIGINT NOT NULL DEFAULT 0,
			timing_first_byte_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_node_created ON samples (node_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_created ON samples (created_at)`,
		`CREATE TABLE IF NOT EXISTS sample_daily_aggregate (
			node_id VARCHAR NOT NULL,
			date DATE NOT NULL,
			avg_latency_ms INTEGER NOT NULL,
			min_latency_ms INTEGER NOT NULL,
			max_latency_ms INTEGER NOT NULL,
			success_rate SMALLINT NOT NULL,
			PRIMARY KEY (node_id, date)
		)`,
	}

	for _, statement := range statements {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}

	return nil
}
