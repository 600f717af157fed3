package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// maxFormMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files, so uploads have no size limit
const maxFormMemory = 32 << 20

// uploadResponse is the body returned for a successful upload
type uploadResponse struct {
	TotalNetWorth float64 `json:"total_net_worth"`
	TotalVAT      float64 `json:"total_vat"`
	GrossWorth    float64 `json:"gross_worth"`
	FileName      string  `json:"file_name"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeDetail writes an error body of the form {"detail": "..."}
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// handleUploadInvoice saves the uploaded file, extracts its totals and stores them
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeDetail(w, http.StatusUnprocessableEntity, "Error parsing form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeDetail(w, http.StatusUnprocessableEntity, "No file provided in field \"file\"")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeDetail(w, http.StatusInternalServerError, "Error uploading file: "+err.Error())
		return
	}

	upload, err := s.service.ProcessInvoice(r.Context(), header.Filename, data)
	if err != nil {
		slog.Error("Error processing invoice", "filename", header.Filename, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error uploading file: "+err.Error())
		return
	}

	w.Header().Set("X-Extraction-Status", upload.Extraction.Status())
	if len(upload.Extraction.Missing) > 0 {
		w.Header().Set("X-Extraction-Missing", strings.Join(upload.Extraction.Missing, ","))
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		TotalNetWorth: upload.Invoice.TotalNetWorth,
		TotalVAT:      upload.Invoice.TotalVAT,
		GrossWorth:    upload.Invoice.GrossWorth,
		FileName:      upload.Invoice.FileName,
	})
}

// pathID parses the {id} path value
func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// handleListInvoices returns all stored invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices(r.Context())
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid invoice ID")
		return
	}

	invoice, err := s.service.GetInvoice(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Invoice not found")
		return
	}
	if err != nil {
		slog.Error("Error getting invoice", "id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// handleGetInvoiceFile returns the uploaded file for an invoice
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid invoice ID")
		return
	}

	data, contentType, err := s.service.GetInvoiceFile(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("Invoice file not available", "id", id, "error", err)
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		slog.Error("Error getting invoice file", "id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Only images and PDFs are shown inline
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !inlineContentType(contentType) {
		w.Header().Set("Content-Disposition", "attachment")
	}
	w.Write(data)
}

func inlineContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// handleHealth reports whether the database is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
