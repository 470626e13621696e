package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/salesingest/internal/config"
	"github.com/JonMunkholm/salesingest/internal/core"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS pulp_records (
		id          BIGSERIAL PRIMARY KEY,
		batch_id    TEXT NOT NULL,
		period      TEXT NOT NULL,
		tenant_id   TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL,
		sheet_name  TEXT NOT NULL DEFAULT '',
		ingested_at TIMESTAMPTZ NOT NULL,
		revenue     NUMERIC(18,2),
		fields      JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pulp_records_period_tenant_idx ON pulp_records (period, tenant_id)`,
	`CREATE TABLE IF NOT EXISTS extract_records (
		id          BIGSERIAL PRIMARY KEY,
		batch_id    TEXT NOT NULL,
		period      TEXT NOT NULL,
		tenant_id   TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL,
		sheet_name  TEXT NOT NULL DEFAULT '',
		ingested_at TIMESTAMPTZ NOT NULL,
		revenue     NUMERIC(18,2),
		fields      JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS extract_records_period_tenant_idx ON extract_records (period, tenant_id)`,
	`CREATE TABLE IF NOT EXISTS ingestion_log (
		id              TEXT PRIMARY KEY,
		batch_id        TEXT NOT NULL,
		period          TEXT NOT NULL,
		record_type     TEXT NOT NULL,
		tenant_id       TEXT NOT NULL DEFAULT '',
		source_file     TEXT NOT NULL,
		sheet_name      TEXT NOT NULL DEFAULT '',
		ingested_at     TIMESTAMPTZ NOT NULL,
		rows_inserted   INTEGER NOT NULL,
		rows_superseded BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ingestion_log_ingested_at_idx ON ingestion_log (ingested_at DESC)`,
}

var recordColumns = []string{
	"batch_id", "period", "tenant_id", "source_file", "sheet_name", "ingested_at", "revenue", "fields",
}

// pgExecutor is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Postgres stores records in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a connection pool from cfg, verifies connectivity and
// creates the schema if it is missing.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("database connected",
		"driver", config.DriverPostgres,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return p, nil
}

// EnsureSchema creates the record and log tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// DeleteMany removes the records stored under key.
func (p *Postgres) DeleteMany(ctx context.Context, key core.ReplaceKey) (int64, error) {
	return pgDelete(ctx, p.pool, key)
}

// InsertMany bulk-loads records with COPY.
func (p *Postgres) InsertMany(ctx context.Context, records []core.Record) error {
	return pgInsert(ctx, p.pool, records)
}

// InsertLogEntry appends entry to the ingestion log.
func (p *Postgres) InsertLogEntry(ctx context.Context, entry core.LogEntry) error {
	return pgInsertLog(ctx, p.pool, entry)
}

// Replace supersedes the records under key in one transaction. A
// transaction-scoped advisory lock on the key serializes concurrent
// replacements across processes.
func (p *Postgres) Replace(ctx context.Context, key core.ReplaceKey, records []core.Record, entry core.LogEntry) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
		return 0, fmt.Errorf("advisory lock: %w", err)
	}

	superseded, err := pgDelete(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	if err := pgInsert(ctx, tx, records); err != nil {
		return 0, err
	}
	entry.RowsSuperseded = superseded
	if err := pgInsertLog(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return superseded, nil
}

// CountRecords returns how many records are stored under key.
func (p *Postgres) CountRecords(ctx context.Context, key core.ReplaceKey) (int64, error) {
	table, err := tableFor(key.RecordType)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE period = $1`, pgx.Identifier{table}.Sanitize())
	args := []any{key.Period}
	if key.TenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, key.TenantID)
	}

	var n int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// RecentLogEntries returns up to limit log entries, newest first.
func (p *Postgres) RecentLogEntries(ctx context.Context, limit int) ([]core.LogEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, batch_id, period, record_type, tenant_id, source_file, sheet_name,
		       ingested_at, rows_inserted, rows_superseded
		FROM ingestion_log
		ORDER BY ingested_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.LogEntry, error) {
		var e core.LogEntry
		var rt string
		err := row.Scan(&e.ID, &e.BatchID, &e.Period, &rt, &e.TenantID, &e.SourceFile, &e.SheetName,
			&e.IngestedAt, &e.RowsInserted, &e.RowsSuperseded)
		e.RecordType = core.RecordType(rt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ingestion log: %w", err)
	}
	return entries, nil
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func pgDelete(ctx context.Context, db pgExecutor, key core.ReplaceKey) (int64, error) {
	table, err := tableFor(key.RecordType)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE period = $1`, pgx.Identifier{table}.Sanitize())
	args := []any{key.Period}
	if key.TenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, key.TenantID)
	}

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func pgInsert(ctx context.Context, db pgExecutor, records []core.Record) error {
	order, groups := groupByType(records)
	for _, rt := range order {
		table, err := tableFor(rt)
		if err != nil {
			return err
		}
		batch := groups[rt]

		src := pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			r := batch[i]
			return []any{
				r.BatchID, r.Period, r.TenantID, r.SourceFile, r.SheetName,
				r.IngestedAt, r.Revenue, r.Fields,
			}, nil
		})

		n, err := db.CopyFrom(ctx, pgx.Identifier{table}, recordColumns, src)
		if err != nil {
			return fmt.Errorf("copy into %s: %w", table, err)
		}
		if n != int64(len(batch)) {
			return fmt.Errorf("copy into %s: wrote %d of %d rows", table, n, len(batch))
		}
	}
	return nil
}

func pgInsertLog(ctx context.Context, db pgExecutor, e core.LogEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ingestion_log
			(id, batch_id, period, record_type, tenant_id, source_file, sheet_name,
			 ingested_at, rows_inserted, rows_superseded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.BatchID, e.Period, string(e.RecordType), e.TenantID, e.SourceFile, e.SheetName,
		e.IngestedAt, e.RowsInserted, e.RowsSuperseded,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}
