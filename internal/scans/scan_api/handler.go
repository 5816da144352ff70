package scan_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"scanlog/internal/auth"
	"scanlog/internal/logger"
	"scanlog/internal/models"
	"scanlog/internal/scans"
	"scanlog/internal/utils"
)

const dateLayout = "2006-01-02"

type Handler struct {
	ScanService *scans.ScanService
	Logger      *logger.Logger
}

func NewHandler(scanService *scans.ScanService, log *logger.Logger) *Handler {
	return &Handler{
		ScanService: scanService,
		Logger:      log,
	}
}

// RegisterRoutes mounts all scan endpoints under /scans.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scans", func(r chi.Router) {
		r.Post("/", h.CreateScan)
		r.Get("/", h.ListScans)
		r.Get("/export", h.ExportCSV)
		r.Post("/export/email", h.EmailExport)
		r.Get("/{scanId}/code", h.BarcodeCode)
		r.Delete("/{scanId}", h.DeleteScan)
	})
}

// CreateScan persists one scan submission. The UI posts here on every
// debounced barcode change as well as on explicit form submit.
func (h *Handler) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode  string `json:"barcode"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateScan: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	scan, err := h.ScanService.Save(r.Context(), req.Barcode, req.Quantity)
	if err != nil {
		var vErr *scans.ValidationError
		if errors.As(err, &vErr) {
			h.Logger.Warn("API", fmt.Sprintf("CreateScan: validation failed: %v", vErr))
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(vErr.Field, vErr.Message))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CreateScan: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not save scan", err.Error()))
		return
	}

	h.Logger.LogScan("SAVED", scan.Barcode, fmt.Sprintf("scan_id=%s quantity=%d user=%s", scan.ScanID, scan.Quantity, auth.UserID(r.Context())))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Scan recorded", scan))
}

// ListScans serves the browsing table: filtered, newest first, paginated.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	page, err := h.ScanService.List(r.Context(), filter)
	if err != nil {
		var vErr *scans.ValidationError
		if errors.As(err, &vErr) {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(vErr.Field, vErr.Message))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ListScans: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list scans", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("OK", page))
}

// DeleteScan hard-deletes one scan. Unknown ids are a silent no-op.
func (h *Handler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanId")

	found, err := h.ScanService.Delete(r.Context(), scanID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteScan: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not delete scan", err.Error()))
		return
	}

	if found {
		h.Logger.LogScan("DELETED", scanID, fmt.Sprintf("scan removed user=%s", auth.UserID(r.Context())))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV streams the aggregated view as a CSV download. No temporary
// file is involved.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	filename, data, err := h.ScanService.BuildExport(r.Context(), filter, time.Now())
	if err != nil {
		var vErr *scans.ValidationError
		if errors.As(err, &vErr) {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(vErr.Field, vErr.Message))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ExportCSV: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not build export", err.Error()))
		return
	}

	h.Logger.LogExport("DOWNLOAD", filename, fmt.Sprintf("%d bytes", len(data)))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ExportCSV: failed to stream response: %v", err))
	}
}

// EmailExport mails the aggregated view as an attachment. A transport
// failure is reported as an error flash, never a crash.
func (h *Handler) EmailExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid filter", err.Error()))
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	filename, err := h.ScanService.EmailExport(r.Context(), filter, req.To, time.Now())
	if err != nil {
		var vErr *scans.ValidationError
		if errors.As(err, &vErr) {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse(vErr.Field, vErr.Message))
			return
		}
		var dErr *scans.DeliveryError
		if errors.As(err, &dErr) {
			h.Logger.LogMail(dErr.To, dErr.Filename, fmt.Sprintf("send failed: %v", dErr.Err))
			h.writeJSON(w, http.StatusBadGateway, utils.ErrorResponse("Could not send export email", dErr.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("EmailExport: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not build export", err.Error()))
		return
	}

	h.Logger.LogMail(req.To, filename, "export sent")
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("Export sent to %s", req.To), nil))
}

// BarcodeCode renders a stored barcode as a 256px PNG code for label
// reprints.
func (h *Handler) BarcodeCode(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanId")

	scan, err := h.ScanService.Get(r.Context(), scanID)
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Scan not found", err.Error()))
		return
	}

	png, err := qrcode.Encode(scan.Barcode, qrcode.Medium, 256)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("BarcodeCode: failed to encode %s: %v", scan.Barcode, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not render code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// parseFilter reads the shared query parameters: from/to dates, barcode
// search, page and page size. Empty date bounds leave that side open.
func parseFilter(r *http.Request) (models.ScanFilter, error) {
	var filter models.ScanFilter
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", raw)
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", raw)
		}
		filter.To = to
	}

	filter.Search = q.Get("search")

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid page %q", raw)
		}
		filter.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid page_size %q", raw)
		}
		filter.PageSize = size
	}

	return filter, nil
}
