package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// StorageHandler handles storage location endpoints.
type StorageHandler struct {
	DB *sql.DB
}

type storageLocationRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
	Active  *bool  `json:"active"`
}

// List handles GET /api/storage-locations.
func (h *StorageHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	locs, err := store.ListStorageLocations(r.Context(), h.DB, includeInactive)
	if err != nil {
		writeStoreError(w, err, "list storage locations")
		return
	}
	if locs == nil {
		locs = []model.StorageLocation{}
	}
	jsonResponse(w, http.StatusOK, locs)
}

// Get handles GET /api/storage-locations/{id}.
func (h *StorageHandler) Get(w http.ResponseWriter, r *http.Request) {
	loc, err := store.GetStorageLocation(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "get storage location")
		return
	}
	if loc == nil {
		jsonError(w, http.StatusNotFound, "storage location not found")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Create handles POST /api/storage-locations.
func (h *StorageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req storageLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := store.CreateStorageLocation(r.Context(), h.DB, req.Name, req.Address, req.Notes)
	if err != nil {
		writeStoreError(w, err, "create storage location")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("storage location created", "user", claims.Username, "location", loc.Name)
	jsonResponse(w, http.StatusCreated, loc)
}

// Update handles PUT /api/storage-locations/{id}.
func (h *StorageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req storageLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := store.GetStorageLocation(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get storage location")
		return
	}
	if current == nil {
		jsonError(w, http.StatusNotFound, "storage location not found")
		return
	}

	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}
	if err := store.UpdateStorageLocation(r.Context(), h.DB, id, req.Name, req.Address, req.Notes, active); err != nil {
		writeStoreError(w, err, "update storage location")
		return
	}

	loc, _ := store.GetStorageLocation(r.Context(), h.DB, id)
	claims := GetClaims(r.Context())
	slog.Info("storage location updated", "user", claims.Username, "location", req.Name, "active", active)
	jsonResponse(w, http.StatusOK, loc)
}

// Deactivate handles DELETE /api/storage-locations/{id}. Locations are never
// removed because items and ledgers keep referring to them.
func (h *StorageHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	loc, err := store.GetStorageLocation(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get storage location")
		return
	}
	if loc == nil {
		jsonError(w, http.StatusNotFound, "storage location not found")
		return
	}

	if err := store.UpdateStorageLocation(r.Context(), h.DB, id, loc.Name, loc.Address, loc.Notes, false); err != nil {
		writeStoreError(w, err, "deactivate storage location")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("storage location deactivated", "user", claims.Username, "location", loc.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "storage location deactivated"})
}
