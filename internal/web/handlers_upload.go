package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/salesingest/internal/core"
	"github.com/JonMunkholm/salesingest/internal/logging"
	"github.com/JonMunkholm/salesingest/internal/web/templates"
)

const (
	// multipartOverhead is the body allowance beyond the file itself for
	// boundaries and the other form fields.
	multipartOverhead = 1 << 20
	// multipartMemory is how much of the form is held in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20
)

// handleUploadSingle ingests one sheet as a (record type, month, year) batch.
//
// Form fields: file, record_type (or tipo), month, year, tenant_id (or group_id).
func (s *Server) handleUploadSingle(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	req := core.SingleRequest{
		FileName:   name,
		Content:    content,
		RecordType: formValue(r, "record_type", "tipo"),
		Month:      formInt(r, "month"),
		Year:       formInt(r, "year"),
		TenantID:   formValue(r, "tenant_id", "group_id"),
	}
	log := logging.WithFields(r.Context(),
		"mode", "single",
		"file", name,
		"bytes", len(content),
		"record_type", req.RecordType,
	)
	log.Info("upload received")

	res, err := s.service.IngestSingle(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	log.Info("upload ingested", "period", res.Period, "rows_inserted", res.RowsInserted)

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, templates.SingleResultAlert(res))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUploadAllSheets ingests every recognized sheet of a workbook.
//
// Form fields: file, year, tenant_id (or group_id).
func (s *Server) handleUploadAllSheets(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	log := logging.WithFields(r.Context(),
		"mode", "all-sheets",
		"file", name,
		"bytes", len(content),
	)
	log.Info("upload received")

	res, err := s.service.IngestAllSheets(r.Context(), core.MultiRequest{
		FileName: name,
		Content:  content,
		Year:     formInt(r, "year"),
		TenantID: formValue(r, "tenant_id", "group_id"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	log.Info("upload ingested", "sheets", len(res.Sheets), "rows_inserted", res.TotalRows)

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, templates.MultiResultAlert(res))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readUpload parses the multipart form and buffers the "file" part.
// On failure it has already written the response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (name string, content []byte, ok bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			s.respondRejection(w, r, []string{fmt.Sprintf("file too large: exceeds limit of %d bytes", maxSize)})
			return "", nil, false
		}
		s.respondRejection(w, r, []string{"invalid upload: expected a multipart form with a file field"})
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondRejection(w, r, []string{"no file provided"})
		return "", nil, false
	}
	defer file.Close()

	content, err = io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			s.respondRejection(w, r, []string{fmt.Sprintf("file too large: exceeds limit of %d bytes", maxSize)})
			return "", nil, false
		}
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return "", nil, false
	}
	return header.Filename, content, true
}

func isBodyTooLarge(err error) bool {
	var tooBig *http.MaxBytesError
	return errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large")
}
