package api

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/custody"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// TransitionsHandler applies custody operations to one item or to a batch.
type TransitionsHandler struct {
	DB *sql.DB
}

// transitionRequest is the body of every custody operation. Fields an
// operation does not use are ignored.
type transitionRequest struct {
	ItemIDs           []string `json:"itemIds"`
	StorageLocationID string   `json:"storageLocationId"`
	Courier           string   `json:"courierUserIdOrName"`
	PerformedBy       string   `json:"actorUserIdOrName"`
	Notes             string   `json:"notes"`

	OccurredAt *time.Time `json:"occurredAt"`
	HandoverAt *time.Time `json:"handoverAt"`
	DisposedAt *time.Time `json:"disposedAt"`

	model.OwnerDetails
}

// at returns the real-world time of the event, if the operator gave one.
func (req *transitionRequest) at() time.Time {
	for _, t := range []*time.Time{req.OccurredAt, req.HandoverAt, req.DisposedAt} {
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

// notes folds the free-text counterpart names into the ledger notes.
func (req *transitionRequest) notes() string {
	var parts []string
	if c := strings.TrimSpace(req.Courier); c != "" {
		parts = append(parts, "Courier: "+c)
	}
	if p := strings.TrimSpace(req.PerformedBy); p != "" {
		parts = append(parts, "Performed by: "+p)
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, "; ")
}

func (req *transitionRequest) build(op custody.Operation, claims *auth.Claims) store.TransitionRequest {
	tr := store.TransitionRequest{
		Operation:         op,
		ItemIDs:           req.ItemIDs,
		Actor:             claims.Actor(),
		ActorEmail:        claims.Email,
		OccurredAt:        req.at(),
		Notes:             req.notes(),
		StorageLocationID: req.StorageLocationID,
	}
	if op == custody.OpReleaseToOwner {
		owner := req.OwnerDetails
		tr.Owner = &owner
	}
	return tr
}

// Single returns the handler for POST /api/items/{id}/<operation>. It responds
// with the item as it is after the operation.
func (h *TransitionsHandler) Single(op custody.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req transitionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		tr := req.build(op, GetClaims(r.Context()))
		tr.ItemIDs = nil
		if err := store.ApplyTransition(r.Context(), h.DB, tr, id); err != nil {
			writeStoreError(w, err, string(op))
			return
		}

		item, err := store.GetItem(r.Context(), h.DB, id)
		if err != nil {
			writeStoreError(w, err, "get item")
			return
		}
		jsonResponse(w, http.StatusOK, item)
	}
}

// Bulk returns the handler for POST /api/items/bulk/<operation>. The batch is
// applied entirely or not at all.
func (h *TransitionsHandler) Bulk(op custody.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transitionRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.ItemIDs) == 0 {
			jsonError(w, http.StatusBadRequest, "no items provided")
			return
		}

		result, err := store.ApplyBulkTransition(r.Context(), h.DB, req.build(op, GetClaims(r.Context())))
		if err != nil {
			writeStoreError(w, err, string(op))
			return
		}

		jsonResponse(w, http.StatusOK, result)
	}
}
