package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// memStore is an in-memory RecordStore.
type memStore struct {
	mu        sync.Mutex
	records   []Record
	logs      []LogEntry
	deleteErr error
	calls     []string
}

func (m *memStore) DeleteMany(_ context.Context, key ReplaceKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}

	kept := m.records[:0]
	var removed int64
	for _, r := range m.records {
		if r.Period == key.Period && r.RecordType == key.RecordType &&
			(key.TenantID == "" || r.TenantID == key.TenantID) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func (m *memStore) InsertMany(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "insert")
	m.records = append(m.records, records...)
	return nil
}

func (m *memStore) InsertLogEntry(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "log")
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) count(rt RecordType, period, tenant string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.RecordType == rt && r.Period == period && r.TenantID == tenant {
			n++
		}
	}
	return n
}

// txStore adds the Replacer capability on top of memStore.
type txStore struct {
	memStore
	replaced int
}

func (s *txStore) Replace(ctx context.Context, key ReplaceKey, records []Record, entry LogEntry) (int64, error) {
	s.replaced++
	n, err := s.DeleteMany(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := s.InsertMany(ctx, records); err != nil {
		return 0, err
	}
	entry.RowsSuperseded = n
	return n, s.InsertLogEntry(ctx, entry)
}

func newTestService(store RecordStore) *Service {
	return NewService(store, Options{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		SerializeReplace: true,
	})
}

func pulpCSV(n int) []byte {
	rows := [][]string{pulpCSVHeader()}
	for i := 0; i < n; i++ {
		rows = append(rows, []string{
			"2024-07-15", "Varejo", "Sudeste", "Supermercado",
			"10", "5.5", "2", "1", fmt.Sprintf("L-%03d", i), "8", "1.5", "9",
		})
	}
	return csvBytes(rows...)
}

func TestIngestSingle_ResubmissionReplaces(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	req := SingleRequest{FileName: "julho.csv", RecordType: "polpa", Month: 7, Year: 2024}

	req.Content = pulpCSV(10)
	first, err := svc.IngestSingle(ctx, req)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.RowsInserted != 10 || first.RowsSuperseded != 0 {
		t.Errorf("first result = %+v", first)
	}

	req.Content = pulpCSV(7)
	second, err := svc.IngestSingle(ctx, req)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.RowsInserted != 7 || second.RowsSuperseded != 10 {
		t.Errorf("second result = %+v, want 7 inserted / 10 superseded", second)
	}
	if second.RecordType != RecordPulp || second.Period != "2024-07" {
		t.Errorf("second result key = %s %s", second.RecordType, second.Period)
	}

	if got := store.count(RecordPulp, "2024-07", ""); got != 7 {
		t.Errorf("stored records = %d, want 7", got)
	}
	if len(store.logs) != 2 || store.logs[1].RowsSuperseded != 10 || store.logs[1].RowsInserted != 7 {
		t.Errorf("log entries = %+v", store.logs)
	}
	if got := strings.Join(store.calls, ","); got != "delete,insert,log,delete,insert,log" {
		t.Errorf("store calls = %s", got)
	}

	r := store.records[0]
	if r.Revenue == nil || *r.Revenue != 52 {
		t.Errorf("revenue = %v, want 52", r.Revenue)
	}
	if r.BatchID != store.logs[1].BatchID {
		t.Errorf("record batch %q does not match log batch %q", r.BatchID, store.logs[1].BatchID)
	}
}

func TestIngestSingle_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		req       SingleRequest
		wantStage IngestStage
		wantCount int
		wantFirst string
	}{
		{
			name:      "bad parameters reported together",
			req:       SingleRequest{FileName: "a.csv", Content: pulpCSV(1), RecordType: "juice", Month: 13, Year: 1990},
			wantStage: StageReceived,
			wantCount: 3,
			wantFirst: "unknown record type",
		},
		{
			name:      "file gate",
			req:       SingleRequest{FileName: "a.pdf", Content: pulpCSV(1), RecordType: "pulp", Month: 7, Year: 2024},
			wantStage: StageReceived,
			wantCount: 1,
			wantFirst: "invalid file extension",
		},
		{
			name:      "undecodable workbook",
			req:       SingleRequest{FileName: "a.xlsx", Content: []byte("nope"), RecordType: "pulp", Month: 7, Year: 2024},
			wantStage: StageFileGatePassed,
			wantCount: 1,
			wantFirst: "failed to read file",
		},
		{
			name:      "wrong contract",
			req:       SingleRequest{FileName: "a.csv", Content: pulpCSV(1), RecordType: "extract", Month: 7, Year: 2024},
			wantStage: StageDecoded,
			wantCount: 7,
			wantFirst: "missing required column (extract): quantidade_litros",
		},
		{
			name: "no data after cleaning",
			req: SingleRequest{
				FileName:   "a.csv",
				Content:    csvBytes(pulpCSVHeader(), make([]string, 12), make([]string, 12)),
				RecordType: "pulp", Month: 7, Year: 2024,
			},
			wantStage: StageColumnsValidated,
			wantCount: 1,
			wantFirst: "no valid data after cleaning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			_, err := newTestService(store).IngestSingle(context.Background(), tt.req)

			rej, ok := AsRejection(err)
			if !ok {
				t.Fatalf("error = %v, want *RejectionError", err)
			}
			if rej.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", rej.Stage, tt.wantStage)
			}
			if len(rej.Violations) != tt.wantCount {
				t.Errorf("violations = %v, want %d", rej.Violations, tt.wantCount)
			}
			if len(rej.Violations) > 0 && !strings.HasPrefix(rej.Violations[0], tt.wantFirst) {
				t.Errorf("first violation = %q, want prefix %q", rej.Violations[0], tt.wantFirst)
			}
			if len(store.calls) != 0 {
				t.Errorf("store touched on rejection: %v", store.calls)
			}
		})
	}
}

func TestIngestSingle_TenantScope(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	ingest := func(tenant string, n int) *SingleResult {
		t.Helper()
		res, err := svc.IngestSingle(ctx, SingleRequest{
			FileName: "a.csv", Content: pulpCSV(n), RecordType: "pulp", Month: 7, Year: 2024, TenantID: tenant,
		})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	ingest("acme", 3)
	ingest("globex", 4)
	if res := ingest("acme", 2); res.RowsSuperseded != 3 {
		t.Errorf("tenant replace superseded %d, want 3", res.RowsSuperseded)
	}
	if got := store.count(RecordPulp, "2024-07", "globex"); got != 4 {
		t.Errorf("other tenant records = %d, want 4", got)
	}

	// No tenant: every tenant's records for the key are superseded.
	if res := ingest("", 1); res.RowsSuperseded != 6 {
		t.Errorf("untenanted replace superseded %d, want 6", res.RowsSuperseded)
	}
}

func TestIngestSingle_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := &memStore{deleteErr: boom}

	_, err := newTestService(store).IngestSingle(context.Background(), SingleRequest{
		FileName: "a.csv", Content: pulpCSV(2), RecordType: "pulp", Month: 7, Year: 2024,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped store error", err)
	}
	if _, ok := AsRejection(err); ok {
		t.Error("store failure must not be a rejection")
	}
	if got := MapError(err).Code; got != "DB001" {
		t.Errorf("MapError code = %s, want DB001", got)
	}
}

func TestIngestSingle_UsesReplacer(t *testing.T) {
	store := &txStore{}
	svc := newTestService(store)

	for i := 0; i < 2; i++ {
		if _, err := svc.IngestSingle(context.Background(), SingleRequest{
			FileName: "a.csv", Content: pulpCSV(5), RecordType: "pulp", Month: 1, Year: 2025,
		}); err != nil {
			t.Fatal(err)
		}
	}

	if store.replaced != 2 {
		t.Errorf("Replace called %d times, want 2", store.replaced)
	}
	if store.logs[1].RowsSuperseded != 5 {
		t.Errorf("log superseded = %d, want 5", store.logs[1].RowsSuperseded)
	}
}

func TestIngestAllSheets(t *testing.T) {
	badExtract := extractRows(2)
	badExtract[0] = append([]any(nil), extractHeader[:4]...) // drop numeric columns
	for i := 1; i < len(badExtract); i++ {
		badExtract[i] = badExtract[i][:4]
	}

	content := workbookBytes(t,
		sheetFixture{name: "Polpa congelada - Jul", rows: pulpRows(3)},
		sheetFixture{name: "Extrato de manga - Ago", rows: badExtract},
		sheetFixture{name: "Relatório Financeiro", rows: pulpRows(9)},
	)

	store := &memStore{}
	res, err := newTestService(store).IngestAllSheets(context.Background(), MultiRequest{
		FileName: "2024.xlsx", Content: content, Year: 2024, TenantID: "acme",
	})
	if err != nil {
		t.Fatalf("IngestAllSheets: %v", err)
	}

	if len(res.Sheets) != 1 {
		t.Fatalf("sheets = %+v, want 1", res.Sheets)
	}
	s := res.Sheets[0]
	if s.Sheet != "Polpa congelada - Jul" || s.RecordType != RecordPulp || s.Period != "2024-07" || s.RowsInserted != 3 {
		t.Errorf("summary = %+v", s)
	}
	if res.TotalRows != 3 || res.Year != 2024 {
		t.Errorf("totals = %d rows, year %d", res.TotalRows, res.Year)
	}

	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", res.Errors)
	}
	wantPrefix := "Extrato de manga - Ago (extract, 2024-08): missing required column (extract): quantidade_litros"
	if !strings.HasPrefix(res.Errors[0], wantPrefix) {
		t.Errorf("error = %q, want prefix %q", res.Errors[0], wantPrefix)
	}

	if len(store.logs) != 1 || store.logs[0].SheetName != "Polpa congelada - Jul" || store.logs[0].TenantID != "acme" {
		t.Errorf("log entries = %+v", store.logs)
	}
	if store.records[0].SheetName != "Polpa congelada - Jul" {
		t.Errorf("record sheet = %q", store.records[0].SheetName)
	}
}

func TestIngestAllSheets_EmptySheetReported(t *testing.T) {
	blank := [][]any{pulpHeader, make([]any, 12)}
	blank[1][1] = " "

	content := workbookBytes(t,
		sheetFixture{name: "Polpa - Jan", rows: pulpRows(1)},
		sheetFixture{name: "Polpa - Fev", rows: blank},
	)

	res, err := newTestService(&memStore{}).IngestAllSheets(context.Background(), MultiRequest{
		FileName: "a.xlsx", Content: content, Year: 2025,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sheets) != 1 || len(res.Errors) != 1 || res.Errors[0] != "Polpa - Fev: no valid data after cleaning" {
		t.Errorf("result = %+v", res)
	}
}

func TestIngestAllSheets_Rejections(t *testing.T) {
	unrecognized := workbookBytes(t, sheetFixture{name: "Resumo", rows: pulpRows(2)})

	tests := []struct {
		name    string
		req     MultiRequest
		wantPfx string
	}{
		{name: "csv", req: MultiRequest{FileName: "a.csv", Content: pulpCSV(1), Year: 2024}, wantPfx: "multi-sheet upload requires a workbook"},
		{name: "no recognized sheet", req: MultiRequest{FileName: "a.xlsx", Content: unrecognized, Year: 2024}, wantPfx: "no recognized sheet"},
		{name: "legacy xls", req: MultiRequest{FileName: "a.xls", Content: []byte("BIFF"), Year: 2024}, wantPfx: "failed to read file"},
		{name: "year out of range", req: MultiRequest{FileName: "a.xlsx", Content: unrecognized, Year: 1800}, wantPfx: "year must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			_, err := newTestService(store).IngestAllSheets(context.Background(), tt.req)
			rej, ok := AsRejection(err)
			if !ok {
				t.Fatalf("error = %v, want *RejectionError", err)
			}
			if len(rej.Violations) != 1 || !strings.HasPrefix(rej.Violations[0], tt.wantPfx) {
				t.Errorf("violations = %v, want prefix %q", rej.Violations, tt.wantPfx)
			}
			if len(store.calls) != 0 {
				t.Errorf("store touched on rejection: %v", store.calls)
			}
		})
	}
}

func TestIngestSingle_UnparseableOnlyRowIngested(t *testing.T) {
	garbage := make([]string, 12)
	garbage[4] = "abc" // quantidade_kg
	good := []string{"2024-07-15", "Varejo", "Sudeste", "Supermercado", "10", "5.5", "2", "1", "L-1", "8", "1.5", "9"}

	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{name: "alongside a good row", rows: [][]string{pulpCSVHeader(), good, garbage}, want: 2},
		{name: "only row in the sheet", rows: [][]string{pulpCSVHeader(), garbage}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			res, err := newTestService(store).IngestSingle(context.Background(), SingleRequest{
				FileName: "a.csv", Content: csvBytes(tt.rows...), RecordType: "pulp", Month: 7, Year: 2024,
			})
			if err != nil {
				t.Fatalf("IngestSingle() error = %v", err)
			}
			if res.RowsInserted != tt.want {
				t.Errorf("RowsInserted = %d, want %d", res.RowsInserted, tt.want)
			}
			last := store.records[len(store.records)-1]
			if v, ok := last.Fields[ColQuantityKg]; !ok || v != nil {
				t.Errorf("quantidade_kg = %v (present %v), want nil", v, ok)
			}
			if last.Revenue != nil {
				t.Errorf("Revenue = %v, want nil", *last.Revenue)
			}
		})
	}
}
