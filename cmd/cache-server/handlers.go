package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/sekai02/flashcache/pkg/flashcache"
)

type handler struct {
	service flashcache.API
}

func newMux(service flashcache.API) *http.ServeMux {
	h := &handler{service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/entries", h.handleCreate)
	mux.HandleFunc("DELETE /v1/entries/{id}", h.handleDelete)
	mux.HandleFunc("POST /v1/entries/{id}/copy", h.handleCopy)
	mux.HandleFunc("GET /v1/entries/{id}/streams/{index}", h.handleRead)
	mux.HandleFunc("PUT /v1/entries/{id}/streams/{index}", h.handleWrite)
	mux.HandleFunc("POST /v1/reclaim", h.handleReclaim)
	mux.HandleFunc("GET /v1/stats", h.handleStats)
	return mux
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch platformerrors.GetCode(err) {
	case platformerrors.CodeNotFound:
		status = http.StatusNotFound
	case platformerrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case platformerrors.CodeConflict:
		status = http.StatusConflict
	case platformerrors.CodeUnavailable:
		status = http.StatusInsufficientStorage
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func entryID(r *http.Request) (int32, bool) {
	v, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	id, err := flashcache.EntryIDFromInt64(v)
	return id, err == nil
}

func streamIndex(r *http.Request) (int, bool) {
	v, err := strconv.Atoi(r.PathValue("index"))
	return v, err == nil
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.CreateEntry(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	// An entry with no data is saved so that it can be reopened.
	if _, err := e.WriteData(0, 0, nil); err != nil {
		writeError(w, err)
		return
	}
	if err := e.Close(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"entry_id": flashcache.EntryIDToInt64(e.ID())})
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}

	newID, err := h.service.CopyEntry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"entry_id": flashcache.EntryIDToInt64(newID)})
}

func (h *handler) handleRead(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}
	index, ok := streamIndex(r)
	if !ok {
		http.Error(w, "invalid stream index", http.StatusBadRequest)
		return
	}

	data, err := h.service.ReadStream(r.Context(), id, index)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (h *handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}
	index, ok := streamIndex(r)
	if !ok {
		http.Error(w, "invalid stream index", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.WriteStream(r.Context(), id, index, data); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"written": len(data)})
}

func (h *handler) handleReclaim(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Reclaim(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"moved":       int64(stats.Moved),
		"moved_bytes": stats.MovedBytes,
		"freed":       stats.Freed,
	})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store_id":     stats.StoreID.String(),
		"capacity":     stats.Capacity,
		"cursor":       stats.Cursor,
		"entries":      stats.Entries,
		"live_bytes":   stats.LiveBytes,
		"stale_bytes":  stats.StaleBytes,
		"free_extents": stats.FreeExtents,
		"reclaims":     stats.Reclaims,
		"last_id":      stats.LastID,
	})
}
