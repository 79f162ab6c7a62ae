// Copyright (c) 2025, PXELab Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pxelab/bootprobe/pkg/analyze"
	"github.com/pxelab/bootprobe/pkg/errors"
	"github.com/pxelab/bootprobe/pkg/serializer"
	"github.com/pxelab/bootprobe/pkg/server"
	"github.com/pxelab/bootprobe/pkg/store"
)

// maxUploadBytes bounds a single report archive upload.
const maxUploadBytes = 512 << 20

// Handlers serves the report inventory routes backed by a Store.
type Handlers struct {
	store *store.Store
	log   *slog.Logger
}

// NewHandlers creates the API handlers over the given store.
func NewHandlers(st *store.Store, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{store: st, log: log}
}

// Routes returns the route table to register with pkg/server.
func (h *Handlers) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /api/v1/reports":                h.handleList,
		"GET /api/v1/reports/{host}":         h.handleGet,
		"GET /api/v1/reports/{host}/analyze": h.handleAnalyze,
		"POST /api/v1/reports/upload":        h.handleUpload,
		"GET /api/v1/stats":                  h.handleStats,
		"GET /api/v1/health":                 h.handleHealth,
	}
}

// writeStoreError maps a store error onto the shared error response.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		server.WriteError(w, r, http.StatusNotFound, server.ErrCodeNotFound,
			"Report not found", false, nil)
	case errors.ErrCodeInvalidRequest:
		server.WriteError(w, r, http.StatusBadRequest, server.ErrCodeInvalidRequest,
			err.Error(), false, nil)
	default:
		server.WriteError(w, r, http.StatusInternalServerError, server.ErrCodeInternalError,
			"Failed to read report inventory", true, nil)
	}
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("listing reports failed", "error", err)
		writeStoreError(w, r, err)
		return
	}

	resp := struct {
		Status  string         `json:"status"`
		Count   int            `json:"count"`
		Reports []*store.Entry `json:"reports"`
	}{
		Status:  "success",
		Count:   len(entries),
		Reports: entries,
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")

	entry, err := h.store.Get(r.Context(), host)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := struct {
		Status string       `json:"status"`
		Report *store.Entry `json:"report"`
	}{
		Status: "success",
		Report: entry,
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")

	entry, err := h.store.Get(r.Context(), host)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	analysis := analyze.Run(entry.Path, entry.Host, entry.Document.Environment)

	resp := struct {
		Status   string            `json:"status"`
		Analysis *analyze.Analysis `json:"analysis"`
	}{
		Status:   "success",
		Analysis: analysis,
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		server.WriteError(w, r, http.StatusBadRequest, server.ErrCodeInvalidRequest,
			"Missing file field in upload", false, nil)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".tar.gz") {
		server.WriteError(w, r, http.StatusBadRequest, server.ErrCodeInvalidRequest,
			"Upload must be a .tar.gz archive", false, map[string]interface{}{
				"filename": header.Filename,
			})
		return
	}

	hosts, err := h.store.Ingest(file)
	if err != nil {
		h.log.Error("report upload rejected",
			"filename", header.Filename, "error", err)
		server.WriteError(w, r, http.StatusBadRequest, server.ErrCodeInvalidRequest,
			"Failed to extract report archive", false, map[string]interface{}{
				"filename": header.Filename,
			})
		return
	}

	h.log.Info("report archive ingested",
		"filename", header.Filename, "hosts", hosts)

	resp := struct {
		Status   string   `json:"status"`
		Message  string   `json:"message"`
		Filename string   `json:"filename"`
		Hosts    []string `json:"hosts"`
	}{
		Status:   "success",
		Message:  "Report uploaded and extracted",
		Filename: header.Filename,
		Hosts:    hosts,
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.log.Error("computing stats failed", "error", err)
		writeStoreError(w, r, err)
		return
	}

	resp := struct {
		Status string       `json:"status"`
		Stats  *store.Stats `json:"stats"`
	}{
		Status: "success",
		Stats:  stats,
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		server.WriteError(w, r, http.StatusServiceUnavailable, server.ErrCodeServiceUnavailable,
			"Report inventory unavailable", true, nil)
		return
	}

	resp := struct {
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		ReportsDir  string `json:"reports_dir"`
		ReportCount int    `json:"report_count"`
	}{
		Status:      "healthy",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ReportsDir:  h.store.Root(),
		ReportCount: len(entries),
	}
	serializer.RespondJSON(w, http.StatusOK, resp)
}
