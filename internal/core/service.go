package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordStore persists records and ingestion log entries.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// DeleteMany removes every record matching key and returns how many were removed.
	// An empty key.TenantID matches records of every tenant.
	DeleteMany(ctx context.Context, key ReplaceKey) (int64, error)
	// InsertMany stores a non-empty batch of records of a single type.
	InsertMany(ctx context.Context, records []Record) error
	// InsertLogEntry appends one entry to the ingestion log.
	InsertLogEntry(ctx context.Context, entry LogEntry) error
}

// Replacer is implemented by stores that can supersede a batch atomically.
// Replace deletes the records matching key, inserts records and appends entry
// in one transaction, setting entry.RowsSuperseded to the delete count.
// It returns the delete count.
type Replacer interface {
	Replace(ctx context.Context, key ReplaceKey, records []Record, entry LogEntry) (int64, error)
}

// MetricsRecorder receives ingestion measurements. A nil recorder is ignored.
type MetricsRecorder interface {
	ObserveIngestion(mode, outcome string, d time.Duration)
	ObserveRejection(stage IngestStage)
	ObserveReplacement(rt RecordType, inserted int, superseded int64)
}

// Options configures a Service. The zero value is usable.
type Options struct {
	Logger           *slog.Logger
	Metrics          MetricsRecorder
	MaxFileSize      int64 // 0 means DefaultMaxFileSize; negative disables the check
	SerializeReplace bool  // serialize replacements per key within this process
	Clock            func() time.Time
}

// Service coordinates ingestion: file gate, decoding, column validation,
// normalization, record building and replace-by-period writes.
type Service struct {
	store     RecordStore
	gate      FileGate
	builder   *RecordBuilder
	locks     *KeyLock
	serialize bool
	logger    *slog.Logger
	metrics   MetricsRecorder
	newID     func() string
}

// NewService returns a Service writing to store.
func NewService(store RecordStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	maxSize := opts.MaxFileSize
	switch {
	case maxSize == 0:
		maxSize = DefaultMaxFileSize
	case maxSize < 0:
		maxSize = 0
	}

	builder := NewRecordBuilder()
	if opts.Clock != nil {
		builder.now = opts.Clock
	}

	return &Service{
		store:     store,
		gate:      FileGate{MaxFileSize: maxSize},
		builder:   builder,
		locks:     NewKeyLock(),
		serialize: opts.SerializeReplace,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		newID:     func() string { return uuid.New().String() },
	}
}

// WaitForDrain blocks until no replacement is in flight or ctx is done.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.locks.WaitForDrain(ctx)
}

// IngestSingle ingests one sheet (CSV or the first workbook sheet) as records
// of the requested type and period, replacing what was stored for that key.
//
// Invalid parameters and unusable files return a *RejectionError and leave the
// store untouched. Store failures are returned wrapped.
func (s *Service) IngestSingle(ctx context.Context, req SingleRequest) (*SingleResult, error) {
	start := time.Now()
	log := s.logger.With("mode", "single", "file", req.FileName, "tenant_id", req.TenantID)
	stage := StageReceived
	log.Debug("ingestion stage", "stage", stage)

	rt, period, violations := validateSingleParams(req)
	if len(violations) > 0 {
		return nil, s.rejected(log, "single", start, reject(stage, violations...))
	}

	if v := s.gate.Validate(req.FileName, req.Content); len(v) > 0 {
		return nil, s.rejected(log, "single", start, reject(stage, v...))
	}
	stage = s.advance(log, StageFileGatePassed)

	table, v := ReadSingle(req.Content, req.FileName)
	if len(v) > 0 {
		return nil, s.rejected(log, "single", start, reject(stage, v...))
	}
	stage = s.advance(log, StageDecoded)

	missing, err := ValidateColumns(table, rt)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, s.rejected(log, "single", start, reject(stage, missing...))
	}
	stage = s.advance(log, StageColumnsValidated)

	normalized, err := Normalize(table, rt)
	if err != nil {
		return nil, err
	}
	if normalized.Empty() {
		return nil, s.rejected(log, "single", start, reject(stage, "no valid data after cleaning"))
	}
	s.advance(log, StageNormalized)

	records := s.builder.Build(normalized, BuildParams{
		Period:     period,
		SourceFile: req.FileName,
		RecordType: rt,
		TenantID:   req.TenantID,
	})

	key := ReplaceKey{Period: period.String(), RecordType: rt, TenantID: req.TenantID}
	superseded, err := s.replace(ctx, log, key, records, req.FileName, "")
	if err != nil {
		s.observe("single", "error", start)
		return nil, err
	}

	s.observe("single", "ok", start)
	return &SingleResult{
		RecordType:     rt,
		Period:         period.String(),
		RowsInserted:   len(records),
		RowsSuperseded: superseded,
		Errors:         []string{},
	}, nil
}

// IngestAllSheets ingests every sheet of a workbook whose name identifies a
// record type and a month. Sheets that fail column validation or hold no data
// after cleaning are reported in MultiResult.Errors and skipped; the others
// each replace their own (period, type, tenant) key.
//
// CSV files and workbooks without a recognized sheet are rejected.
func (s *Service) IngestAllSheets(ctx context.Context, req MultiRequest) (*MultiResult, error) {
	start := time.Now()
	log := s.logger.With("mode", "all-sheets", "file", req.FileName, "tenant_id", req.TenantID)
	stage := StageReceived
	log.Debug("ingestion stage", "stage", stage)

	if req.Year < MinPeriodYear || req.Year > MaxPeriodYear {
		return nil, s.rejected(log, "all-sheets", start, reject(stage,
			fmt.Sprintf("year must be between %d and %d", MinPeriodYear, MaxPeriodYear)))
	}

	if v := s.gate.Validate(req.FileName, req.Content); len(v) > 0 {
		return nil, s.rejected(log, "all-sheets", start, reject(stage, v...))
	}
	if isDelimitedText(req.FileName) {
		return nil, s.rejected(log, "all-sheets", start, reject(stage,
			"multi-sheet upload requires a workbook (.xlsx); CSV files hold a single sheet"))
	}
	stage = s.advance(log, StageFileGatePassed)

	if !IsWorkbook(req.Content) {
		return nil, s.rejected(log, "all-sheets", start, reject(stage,
			"failed to read file: not a readable .xlsx workbook"))
	}

	sheets := ReadAllSheets(req.Content, req.FileName, req.Year)
	if len(sheets) == 0 {
		return nil, s.rejected(log, "all-sheets", start, reject(stage,
			"no recognized sheet: sheet names must contain a product (polpa, extrato) and a month (jan..dez)"))
	}
	s.advance(log, StageDecoded)

	result := &MultiResult{
		Year:   req.Year,
		Sheets: []SheetSummary{},
		Errors: []string{},
	}

	for _, sheet := range sheets {
		sheetLog := log.With("sheet", sheet.Name, "record_type", sheet.RecordType, "period", sheet.Period.String())

		missing, err := ValidateColumns(sheet.Table, sheet.RecordType)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%s (%s, %s): %s",
				sheet.Name, sheet.RecordType, sheet.Period, strings.Join(missing, ", ")))
			sheetLog.Info("sheet skipped", "reason", "missing columns", "missing", len(missing))
			continue
		}

		normalized, err := Normalize(sheet.Table, sheet.RecordType)
		if err != nil {
			return nil, err
		}
		if normalized.Empty() {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no valid data after cleaning", sheet.Name))
			sheetLog.Info("sheet skipped", "reason", "no valid data")
			continue
		}

		records := s.builder.Build(normalized, BuildParams{
			Period:     sheet.Period,
			SourceFile: req.FileName,
			SheetName:  sheet.Name,
			RecordType: sheet.RecordType,
			TenantID:   req.TenantID,
		})

		key := ReplaceKey{Period: sheet.Period.String(), RecordType: sheet.RecordType, TenantID: req.TenantID}
		superseded, err := s.replace(ctx, sheetLog, key, records, req.FileName, sheet.Name)
		if err != nil {
			s.observe("all-sheets", "error", start)
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}

		result.Sheets = append(result.Sheets, SheetSummary{
			Sheet:          sheet.Name,
			RecordType:     sheet.RecordType,
			Period:         sheet.Period.String(),
			RowsInserted:   len(records),
			RowsSuperseded: superseded,
		})
		result.TotalRows += len(records)
	}

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	s.observe("all-sheets", outcome, start)
	log.Info("workbook ingested",
		"sheets", len(result.Sheets),
		"sheet_errors", len(result.Errors),
		"total_rows", result.TotalRows,
	)
	return result, nil
}

// replace supersedes the records stored under key with records and appends
// the log entry. It returns the number of records removed.
func (s *Service) replace(ctx context.Context, log *slog.Logger, key ReplaceKey, records []Record, sourceFile, sheet string) (int64, error) {
	if s.serialize {
		if err := s.locks.Acquire(ctx, key.String()); err != nil {
			return 0, fmt.Errorf("wait for replace lock on %s: %w", key, err)
		}
		defer s.locks.Release(key.String())
	}

	entry := LogEntry{
		ID:           s.newID(),
		BatchID:      records[0].BatchID,
		Period:       key.Period,
		RecordType:   key.RecordType,
		TenantID:     key.TenantID,
		SourceFile:   sourceFile,
		SheetName:    sheet,
		IngestedAt:   records[0].IngestedAt,
		RowsInserted: len(records),
	}

	var superseded int64
	if r, ok := s.store.(Replacer); ok {
		n, err := r.Replace(ctx, key, records, entry)
		if err != nil {
			return 0, fmt.Errorf("replace records for %s: %w", key, err)
		}
		superseded = n
		s.advance(log, StageLogged)
	} else {
		n, err := s.store.DeleteMany(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("delete superseded records for %s: %w", key, err)
		}
		superseded = n
		s.advance(log, StageSuperseded)

		if err := s.store.InsertMany(ctx, records); err != nil {
			return 0, fmt.Errorf("insert records for %s: %w", key, err)
		}
		s.advance(log, StageInserted)

		entry.RowsSuperseded = superseded
		if err := s.store.InsertLogEntry(ctx, entry); err != nil {
			return 0, fmt.Errorf("append ingestion log for %s: %w", key, err)
		}
		s.advance(log, StageLogged)
	}

	if s.metrics != nil {
		s.metrics.ObserveReplacement(key.RecordType, len(records), superseded)
	}
	log.Info("records replaced",
		"period", key.Period,
		"record_type", key.RecordType,
		"tenant_id", key.TenantID,
		"batch_id", entry.BatchID,
		"rows_inserted", len(records),
		"rows_superseded", superseded,
	)
	return superseded, nil
}

func validateSingleParams(req SingleRequest) (RecordType, Period, []string) {
	var violations []string

	rt, err := ParseRecordType(req.RecordType)
	if err != nil {
		violations = append(violations, err.Error())
	}
	if req.Month < 1 || req.Month > 12 {
		violations = append(violations, "month must be between 1 and 12")
	}
	if req.Year < MinPeriodYear || req.Year > MaxPeriodYear {
		violations = append(violations, fmt.Sprintf("year must be between %d and %d", MinPeriodYear, MaxPeriodYear))
	}
	if len(violations) > 0 {
		return "", Period{}, violations
	}
	return rt, Period{Year: req.Year, Month: req.Month}, nil
}

func (s *Service) advance(log *slog.Logger, next IngestStage) IngestStage {
	log.Debug("ingestion stage", "stage", next)
	return next
}

func (s *Service) rejected(log *slog.Logger, mode string, start time.Time, rej *RejectionError) error {
	log.Info("ingestion rejected", "stage", rej.Stage, "violations", rej.Violations)
	if s.metrics != nil {
		s.metrics.ObserveRejection(rej.Stage)
	}
	s.observe(mode, "rejected", start)
	return rej
}

func (s *Service) observe(mode, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveIngestion(mode, outcome, time.Since(start))
	}
}
