// Package core provides the business logic for sales spreadsheet ingestion.
//
// This package contains all domain logic independent of any transport or
// storage technology. It can be used by web handlers, CLI tools, or tests
// without modification; storage is reached through the [RecordStore]
// interface.
//
// # Pipeline
//
// Every upload runs through the same stages and stops at the first failure:
//
//  1. File gate: name, extension and size checks ([FileGate])
//  2. Decoding: CSV or workbook bytes to a typed [Table] ([ReadSingle], [ReadAllSheets])
//  3. Column validation against the record type's [Contract] ([ValidateColumns])
//  4. Normalization: projection, blank-row removal, numeric coercion ([Normalize])
//  5. Record building with derived revenue ([RecordBuilder])
//  6. Replacement: delete the period's old records, insert the new ones and
//     append an ingestion log entry
//
// Failures in stages 1-4 return a [*RejectionError] and never touch the store.
//
// # Record Types
//
// Two product lines are supported, each with a fixed column contract:
//
//	pulp     (polpa)    quantidade_kg, preco_unitario_brl_kg, logistica_brl, ...
//	extract  (extrato)  quantidade_litros, preco_unitario_brl_l, ...
//
// # Multi-sheet Workbooks
//
// [Service.IngestAllSheets] reads every sheet whose name carries a product
// keyword and a pt-BR month abbreviation ([Classify]), e.g. "Polpa - Jul".
// Sheets that fail validation are reported and skipped; the others are
// ingested independently.
//
// # Replacement
//
// Records are partitioned by (period, record type, tenant). Ingesting a
// partition removes whatever was stored for it first, so resubmitting a
// corrected file never duplicates data. Stores implementing [Replacer] do
// this in one transaction; [Options.SerializeReplace] serializes writers of
// the same partition inside the process.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB006: Store errors (connections, locks, schema)
//   - ING001-ING006: Ingestion rejections (columns, sheets, periods)
//   - FILE001-FILE004: File errors (size, format, extension)
//   - REQ001-REQ002: Request cancellation and timeouts
package core
