package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/salesingest/internal/core"
)

// sqliteTimeLayout keeps every fractional digit so stored timestamps sort
// lexically in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS pulp_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id    TEXT NOT NULL,
		period      TEXT NOT NULL,
		tenant_id   TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL,
		sheet_name  TEXT NOT NULL DEFAULT '',
		ingested_at TEXT NOT NULL,
		revenue     REAL,
		fields      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pulp_records_period_tenant_idx ON pulp_records (period, tenant_id)`,
	`CREATE TABLE IF NOT EXISTS extract_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id    TEXT NOT NULL,
		period      TEXT NOT NULL,
		tenant_id   TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL,
		sheet_name  TEXT NOT NULL DEFAULT '',
		ingested_at TEXT NOT NULL,
		revenue     REAL,
		fields      TEXT NOT NULL
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
		ingested_at     TEXT NOT NULL,
		rows_inserted   INTEGER NOT NULL,
		rows_superseded INTEGER NOT NULL
	)`,
}

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SQLite stores records in an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// The "sqlite:" URL prefix is accepted and stripped.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	dsn = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite allows a single writer, and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("configure sqlite: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// DeleteMany removes the records stored under key.
func (s *SQLite) DeleteMany(ctx context.Context, key core.ReplaceKey) (int64, error) {
	return sqliteDelete(ctx, s.db, key)
}

// InsertMany stores records in a single transaction.
func (s *SQLite) InsertMany(ctx context.Context, records []core.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := sqliteInsert(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertLogEntry appends entry to the ingestion log.
func (s *SQLite) InsertLogEntry(ctx context.Context, entry core.LogEntry) error {
	return sqliteInsertLog(ctx, s.db, entry)
}

// Replace supersedes the records under key in one transaction.
func (s *SQLite) Replace(ctx context.Context, key core.ReplaceKey, records []core.Record, entry core.LogEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	superseded, err := sqliteDelete(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	if err := sqliteInsert(ctx, tx, records); err != nil {
		return 0, err
	}
	entry.RowsSuperseded = superseded
	if err := sqliteInsertLog(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return superseded, nil
}

// CountRecords returns how many records are stored under key.
func (s *SQLite) CountRecords(ctx context.Context, key core.ReplaceKey) (int64, error) {
	table, err := tableFor(key.RecordType)
	if err != nil {
		return 0, err
	}

	query := `SELECT count(*) FROM ` + table + ` WHERE period = ?`
	args := []any{key.Period}
	if key.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, key.TenantID)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// RecentLogEntries returns up to limit log entries, newest first.
func (s *SQLite) RecentLogEntries(ctx context.Context, limit int) ([]core.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, period, record_type, tenant_id, source_file, sheet_name,
		       ingested_at, rows_inserted, rows_superseded
		FROM ingestion_log
		ORDER BY ingested_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion log: %w", err)
	}
	defer rows.Close()

	var entries []core.LogEntry
	for rows.Next() {
		var (
			e          core.LogEntry
			rt         string
			ingestedAt string
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Period, &rt, &e.TenantID, &e.SourceFile, &e.SheetName,
			&ingestedAt, &e.RowsInserted, &e.RowsSuperseded); err != nil {
			return nil, fmt.Errorf("scan ingestion log: %w", err)
		}
		e.RecordType = core.RecordType(rt)
		if e.IngestedAt, err = time.Parse(sqliteTimeLayout, ingestedAt); err != nil {
			return nil, fmt.Errorf("parse ingested_at %q: %w", ingestedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func sqliteDelete(ctx context.Context, db sqlExecutor, key core.ReplaceKey) (int64, error) {
	table, err := tableFor(key.RecordType)
	if err != nil {
		return 0, err
	}

	query := `DELETE FROM ` + table + ` WHERE period = ?`
	args := []any{key.Period}
	if key.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, key.TenantID)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

func sqliteInsert(ctx context.Context, db sqlExecutor, records []core.Record) error {
	order, groups := groupByType(records)
	for _, rt := range order {
		table, err := tableFor(rt)
		if err != nil {
			return err
		}

		stmt, err := db.PrepareContext(ctx, `INSERT INTO `+table+`
			(batch_id, period, tenant_id, source_file, sheet_name, ingested_at, revenue, fields)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert into %s: %w", table, err)
		}

		for _, r := range groups[rt] {
			fields, err := json.Marshal(r.Fields)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("encode fields: %w", err)
			}
			var revenue any
			if r.Revenue != nil {
				revenue = *r.Revenue
			}
			if _, err := stmt.ExecContext(ctx,
				r.BatchID, r.Period, r.TenantID, r.SourceFile, r.SheetName,
				r.IngestedAt.UTC().Format(sqliteTimeLayout), revenue, string(fields),
			); err != nil {
				stmt.Close()
				return fmt.Errorf("insert into %s: %w", table, err)
			}
		}
		stmt.Close()
	}
	return nil
}

func sqliteInsertLog(ctx context.Context, db sqlExecutor, e core.LogEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ingestion_log
			(id, batch_id, period, record_type, tenant_id, source_file, sheet_name,
			 ingested_at, rows_inserted, rows_superseded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BatchID, e.Period, string(e.RecordType), e.TenantID, e.SourceFile, e.SheetName,
		e.IngestedAt.UTC().Format(sqliteTimeLayout), e.RowsInserted, e.RowsSuperseded,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}
