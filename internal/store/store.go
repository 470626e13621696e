// Package store persists ingested records and the ingestion log.
//
// Two backends are provided: PostgreSQL through a pgx connection pool, and
// an embedded SQLite database for single-node and test use. Records of each
// type live in their own table (pulp_records, extract_records); every
// replacement appends one row to ingestion_log.
package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/salesingest/internal/config"
	"github.com/JonMunkholm/salesingest/internal/core"
)

// Store is a core.RecordStore that can also replace a batch atomically.
type Store interface {
	core.RecordStore
	core.Replacer

	// CountRecords returns how many records are stored under key.
	CountRecords(ctx context.Context, key core.ReplaceKey) (int64, error)
	// RecentLogEntries returns up to limit log entries, newest first.
	RecentLogEntries(ctx context.Context, limit int) ([]core.LogEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the database described by cfg and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.ResolvedDriver() {
	case config.DriverPostgres:
		p, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)

// recordTables maps each record type to its table.
var recordTables = map[core.RecordType]string{
	core.RecordPulp:    "pulp_records",
	core.RecordExtract: "extract_records",
}

func tableFor(rt core.RecordType) (string, error) {
	t, ok := recordTables[rt]
	if !ok {
		return "", &core.UnknownTypeError{Type: string(rt)}
	}
	return t, nil
}

// groupByType splits a batch by record type, keeping first-seen order.
func groupByType(records []core.Record) ([]core.RecordType, map[core.RecordType][]core.Record) {
	var order []core.RecordType
	groups := make(map[core.RecordType][]core.Record)
	for _, r := range records {
		if _, seen := groups[r.RecordType]; !seen {
			order = append(order, r.RecordType)
		}
		groups[r.RecordType] = append(groups[r.RecordType], r)
	}
	return order, groups
}
