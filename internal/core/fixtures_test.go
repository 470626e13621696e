package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// sheetFixture is one worksheet of a generated workbook.
type sheetFixture struct {
	name string
	rows [][]any
}

// workbookBytes builds an .xlsx in memory. The default "Sheet1" is removed
// unless a fixture reuses that name.
func workbookBytes(t *testing.T, sheets ...sheetFixture) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	keepDefault := false
	for _, s := range sheets {
		if s.name == "Sheet1" {
			keepDefault = true
			continue
		}
		if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet(%q): %v", s.name, err)
		}
	}

	for _, s := range sheets {
		for i, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			r := row
			if err := f.SetSheetRow(s.name, cell, &r); err != nil {
				t.Fatalf("SetSheetRow(%q): %v", s.name, err)
			}
		}
	}

	if !keepDefault {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return bytes.Clone(buf.Bytes())
}

var pulpHeader = []any{
	"data_pedido", "canal", "regiao_destino", "cliente_segmento",
	"quantidade_kg", "preco_unitario_brl_kg", "logistica_brl", "desconto_brl",
	"lote_id", "indice_qualidade_1a10", "perda_processamento_pct", "nps_0a10",
}

var extractHeader = []any{
	"data_pedido", "canal", "regiao_destino", "cliente_segmento",
	"quantidade_litros", "preco_unitario_brl_l", "concentracao_ativa_pct", "tipo_solvente",
	"indice_cor_1a10", "indice_pureza_1a10", "certificacao_exigida", "nps_0a10",
}

// pulpRows returns a header plus n data rows with quantity 10 and price 5.5.
func pulpRows(n int) [][]any {
	rows := [][]any{pulpHeader}
	for i := 0; i < n; i++ {
		rows = append(rows, []any{
			"2024-07-15", "Varejo", "Sudeste", "Supermercado",
			10, 5.5, 2, 1,
			"L-001", 8, 1.5, 9,
		})
	}
	return rows
}

func extractRows(n int) [][]any {
	rows := [][]any{extractHeader}
	for i := 0; i < n; i++ {
		rows = append(rows, []any{
			"2024-08-01", "Atacado", "Sul", "Industria",
			20, 12.5, 35, "Etanol",
			7, 9, "Organico", 8,
		})
	}
	return rows
}

// csvBytes renders rows as comma-separated text.
func csvBytes(rows ...[]string) []byte {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, ","))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func pulpCSVHeader() []string {
	h := make([]string, len(pulpHeader))
	for i, v := range pulpHeader {
		h[i] = v.(string)
	}
	return h
}
