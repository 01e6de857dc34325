package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/report"
	"github.com/erazemk/najdeno/internal/store"
)

// DepositsHandler handles deposit intake and deposit documents.
type DepositsHandler struct {
	DB      *sql.DB
	Reports *report.Generator
	// Documents enables rendering the deposit report after creation.
	Documents bool
	// Now is the allocator clock; defaults to time.Now.
	Now func() time.Time
}

type createDepositRequest struct {
	FinderName        string                     `json:"finderName"`
	FinderAddress     string                     `json:"finderAddress"`
	FinderEmail       string                     `json:"finderEmail"`
	FinderPhone       string                     `json:"finderPhone"`
	FinderIDNumber    string                     `json:"finderIdNumber"`
	FoundLocation     string                     `json:"foundLocation"`
	FoundAt           *time.Time                 `json:"foundAt"`
	LicensePlate      string                     `json:"licensePlate"`
	BusLine           string                     `json:"busLine"`
	Driver            string                     `json:"driver"`
	StorageLocationID string                     `json:"storageLocationId"`
	Items             []createDepositItemRequest `json:"items"`
}

type createDepositItemRequest struct {
	Category          string          `json:"category"`
	OtherCategoryText string          `json:"otherCategoryText"`
	Details           string          `json:"details"`
	Cash              *model.ItemCash `json:"cash"`
}

func (h *DepositsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Create handles POST /api/deposits.
func (h *DepositsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	in := store.NewDeposit{
		CustodianUserID:   claims.Actor(),
		FinderName:        req.FinderName,
		FinderAddress:     req.FinderAddress,
		FinderEmail:       req.FinderEmail,
		FinderPhone:       req.FinderPhone,
		FinderIDNumber:    req.FinderIDNumber,
		FoundLocation:     req.FoundLocation,
		FoundAt:           req.FoundAt,
		LicensePlate:      req.LicensePlate,
		BusLine:           req.BusLine,
		Driver:            req.Driver,
		StorageLocationID: req.StorageLocationID,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, store.NewDepositItem{
			Category:          it.Category,
			OtherCategoryText: it.OtherCategoryText,
			Details:           it.Details,
			Cash:              it.Cash,
		})
	}

	dep, err := store.CreateDeposit(r.Context(), h.DB, h.now(), in)
	if err != nil {
		writeStoreError(w, err, "create deposit")
		return
	}

	slog.Info("deposit created", "user", claims.Username, "deposit", dep.DepositNumber, "items", len(dep.Items))

	// The receipt is a side channel: the deposit stands even if rendering fails.
	if h.Documents && h.Reports != nil {
		if _, err := h.Reports.SaveDeposit(r.Context(), dep.ID); err != nil {
			metrics.DocumentFailures.Inc()
			slog.Warn("failed to save deposit document", "deposit", dep.DepositNumber, "error", err)
		}
	}

	jsonResponse(w, http.StatusCreated, dep)
}

// List handles GET /api/deposits?year=.
func (h *DepositsHandler) List(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	deposits, err := store.ListDeposits(r.Context(), h.DB, year)
	if err != nil {
		writeStoreError(w, err, "list deposits")
		return
	}
	if deposits == nil {
		deposits = []model.Deposit{}
	}
	jsonResponse(w, http.StatusOK, deposits)
}

// Get handles GET /api/deposits/{id}.
func (h *DepositsHandler) Get(w http.ResponseWriter, r *http.Request) {
	dep, err := store.GetDeposit(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "get deposit")
		return
	}
	if dep == nil {
		jsonError(w, http.StatusNotFound, "deposit not found")
		return
	}
	jsonResponse(w, http.StatusOK, dep)
}

// Sub handles GET /api/deposits/{id}/{sub}. ServeMux rejects by-number/{number}
// next to {id}/print as ambiguous, so one pattern serves both.
func (h *DepositsHandler) Sub(w http.ResponseWriter, r *http.Request) {
	id, sub := r.PathValue("id"), r.PathValue("sub")
	switch {
	case id == "by-number":
		h.getByNumber(w, r, sub)
	case sub == "print":
		h.print(w, r, id)
	case sub == "documents":
		h.listDocuments(w, r, id)
	default:
		jsonError(w, http.StatusNotFound, "not found")
	}
}

// getByNumber serves GET /api/deposits/by-number/{number}.
func (h *DepositsHandler) getByNumber(w http.ResponseWriter, r *http.Request, number string) {
	if _, _, err := model.ParseDepositNumber(number); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	dep, err := store.GetDepositByNumber(r.Context(), h.DB, number)
	if err != nil {
		writeStoreError(w, err, "get deposit")
		return
	}
	if dep == nil {
		jsonError(w, http.StatusNotFound, "deposit not found")
		return
	}
	jsonResponse(w, http.StatusOK, dep)
}

// print serves GET /api/deposits/{id}/print.
func (h *DepositsHandler) print(w http.ResponseWriter, r *http.Request, id string) {
	dep, err := store.GetDeposit(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get deposit")
		return
	}
	if dep == nil {
		jsonError(w, http.StatusNotFound, "deposit not found")
		return
	}

	pdf, err := h.Reports.Deposit(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "render deposit report")
		return
	}
	writeFile(w, pdf, report.MimeType, report.DepositFileName(dep.DepositNumber, dep.CreatedAt))
}

// listDocuments serves GET /api/deposits/{id}/documents.
func (h *DepositsHandler) listDocuments(w http.ResponseWriter, r *http.Request, id string) {
	docs, err := store.ListDepositDocuments(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "list documents")
		return
	}
	if docs == nil {
		docs = []model.DepositDocument{}
	}
	jsonResponse(w, http.StatusOK, docs)
}

// LatestDocument handles GET /api/deposits/{id}/documents/latest.
func (h *DepositsHandler) LatestDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := store.GetLatestDepositDocument(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "get document")
		return
	}
	if doc == nil {
		jsonError(w, http.StatusNotFound, "document not found")
		return
	}
	writeFile(w, doc.Bytes, doc.MimeType, doc.FileName)
}

// GetDocument handles GET /api/documents/{docId}.
func (h *DepositsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := store.GetDepositDocument(r.Context(), h.DB, r.PathValue("docId"))
	if err != nil {
		writeStoreError(w, err, "get document")
		return
	}
	if doc == nil {
		jsonError(w, http.StatusNotFound, "document not found")
		return
	}
	writeFile(w, doc.Bytes, doc.MimeType, doc.FileName)
}
