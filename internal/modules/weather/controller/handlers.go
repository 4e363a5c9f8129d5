package controller

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"weathervision/internal/metrics"
	"weathervision/internal/modules/weather/provider"
	"weathervision/internal/modules/weather/repository"
	"weathervision/internal/modules/weather/service"
	"weathervision/internal/modules/weather/types"
	"weathervision/internal/modules/weather/views"
	"weathervision/internal/utils"
)

func (c *weatherControllerImpl) handleAPIRoot(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + r.Host
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"records":       base + "/api/records/",
		"visualization": base + "/api/visualization/",
	})
}

func (c *weatherControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseListQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := c.service.ListRecords(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

func (c *weatherControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in types.RecordInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := c.service.CreateRecord(r.Context(), in, metrics.SourceAPI)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, rec)
}

func (c *weatherControllerImpl) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	rec, err := c.service.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func (c *weatherControllerImpl) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	var in types.RecordInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := c.service.UpdateRecord(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func (c *weatherControllerImpl) handlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	var patch types.RecordPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	rec, err := c.service.PatchRecord(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func (c *weatherControllerImpl) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err := c.service.DeleteRecord(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *weatherControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := c.service.Latest(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rec == nil {
		utils.WriteError(w, http.StatusNotFound, msgNoRecords)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func (c *weatherControllerImpl) handleByCity(w http.ResponseWriter, r *http.Request) {
	records, err := c.service.RecordsByCity(r.Context(), r.URL.Query().Get("city"))
	if errors.Is(err, service.ErrCityRequired) {
		utils.WriteError(w, http.StatusBadRequest, msgCityParam)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

type fetchRequest struct {
	City string `json:"city"`
}

func (c *weatherControllerImpl) handleFetchFromAPI(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	rec, err := c.service.FetchAndStore(r.Context(), req.City)
	if errors.Is(err, service.ErrCityRequired) {
		utils.WriteError(w, http.StatusBadRequest, msgCityRequired)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, rec)
}

func (c *weatherControllerImpl) handleStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := c.service.Statistics(r.Context(), q.Get("city"), q.Get("days"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *weatherControllerImpl) handleVisualization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := &views.VisualizationData{City: q.Get("city"), Days: views.DefaultDays}
	if q.Has("days") {
		data.Days = q.Get("days")
	}

	var buf bytes.Buffer
	if err := views.RenderVisualization(&buf, data); err != nil {
		slog.ErrorContext(r.Context(), "visualization template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.ErrorContext(r.Context(), "visualization: write response failed", "error", err)
	}
}

// writeServiceError maps service, repository and provider errors to responses.
// Unrecognized errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *service.ValidationError
		fetch *provider.FetchError
	)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
	case errors.As(err, &verr):
		utils.WriteFieldErrors(w, msgInvalidRecord, verr.Fields)
	case errors.As(err, &fetch):
		utils.WriteError(w, http.StatusBadRequest, fetch.Error())
	case errors.Is(err, service.ErrInvalidDays):
		utils.WriteError(w, http.StatusBadRequest, msgInvalidDays)
	case errors.Is(err, service.ErrNoData):
		utils.WriteError(w, http.StatusNotFound, msgNoData)
	case errors.Is(err, service.ErrCityRequired):
		utils.WriteError(w, http.StatusBadRequest, msgCityRequired)
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, msgInternalServer)
	}
}
