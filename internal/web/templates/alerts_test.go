package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/salesingest/internal/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestErrorAlert(t *testing.T) {
	got := render(t, ErrorAlert("Unable to connect to database", "Try again", "DB001"))

	for _, want := range []string{"alert-error", "Unable to connect to database", "Try again", "Code: DB001"} {
		if !strings.Contains(got, want) {
			t.Errorf("ErrorAlert missing %q in %s", want, got)
		}
	}
}

func TestRejectionAlert_Escapes(t *testing.T) {
	got := render(t, RejectionAlert([]string{`missing required column (pulp): <canal>`}))

	if strings.Contains(got, "<canal>") {
		t.Errorf("violation was not escaped: %s", got)
	}
	if !strings.Contains(got, "&lt;canal&gt;") {
		t.Errorf("escaped violation missing: %s", got)
	}
}

func TestMultiResultAlert(t *testing.T) {
	res := &core.MultiResult{
		Year: 2024,
		Sheets: []core.SheetSummary{
			{Sheet: "Polpa - Jul", RecordType: core.RecordPulp, Period: "2024-07", RowsInserted: 3},
		},
		TotalRows: 3,
		Errors:    []string{"Extrato - Ago (extract, 2024-08): missing required column (extract): canal"},
	}

	got := render(t, MultiResultAlert(res))

	tests := []string{
		"alert-warning",
		"3 records stored from 1 sheets",
		"Polpa - Jul: 3 pulp records for 2024-07",
		"Skipped sheets:",
		"Extrato - Ago",
	}
	for _, want := range tests {
		if !strings.Contains(got, want) {
			t.Errorf("MultiResultAlert missing %q in %s", want, got)
		}
	}
}

func TestSingleResultAlert(t *testing.T) {
	got := render(t, SingleResultAlert(&core.SingleResult{
		RecordType: core.RecordExtract, Period: "2024-08", RowsInserted: 7, RowsSuperseded: 10,
	}))

	want := "7 extract records stored for 2024-08 (10 previous records replaced)"
	if !strings.Contains(got, want) {
		t.Errorf("SingleResultAlert = %s, want substring %q", got, want)
	}
}

func TestMultiResultAlert_AllStored(t *testing.T) {
	got := render(t, MultiResultAlert(&core.MultiResult{
		Year:      2024,
		Sheets:    []core.SheetSummary{{Sheet: "Polpa", RecordType: core.RecordPulp, Period: "2024-07", RowsInserted: 2}},
		TotalRows: 2,
	}))

	if !strings.Contains(got, `class="alert alert-success"`) {
		t.Errorf("want success alert: %s", got)
	}
	if strings.Contains(got, "Skipped sheets:") {
		t.Errorf("unexpected skipped section: %s", got)
	}
}

func TestErrorAlert_OptionalParts(t *testing.T) {
	got := render(t, ErrorAlert("Upload failed", "", ""))

	for _, unwanted := range []string{"alert-action", "alert-code"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("ErrorAlert rendered %q: %s", unwanted, got)
		}
	}
	if got := render(t, RejectionAlert(nil)); strings.Contains(got, "<ul>") {
		t.Errorf("empty violation list rendered a list: %s", got)
	}
}
