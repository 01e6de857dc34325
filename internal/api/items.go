package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/report"
	"github.com/erazemk/najdeno/internal/store"
)

// ItemsHandler handles found item endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Reports *report.Generator
}

type createItemRequest struct {
	Category          string     `json:"category"`
	OtherCategoryText string     `json:"otherCategoryText"`
	Details           string     `json:"details"`
	FoundLocation     string     `json:"foundLocation"`
	FoundAt           *time.Time `json:"foundAt"`
	FinderName        string     `json:"finderName"`
}

type custodyResponse struct {
	Logs   []model.CustodyLog `json:"logs"`
	Claims []model.OwnerClaim `json:"claims"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ItemListFilter{
		Category:       q.Get("category"),
		Query:          q.Get("q"),
		ExcludeClaimed: q.Get("excludeClaimed") == "true",
		SortBy:         q.Get("sortBy"),
		SortDesc:       q.Get("sortDir") == "desc",
	}
	if v := q.Get("status"); v != "" {
		s, err := model.ParseStatus(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = s
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	page, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		writeStoreError(w, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, store.NewItem{
		Category:          req.Category,
		OtherCategoryText: req.OtherCategoryText,
		Details:           req.Details,
		FoundLocation:     req.FoundLocation,
		FoundAt:           req.FoundAt,
		FinderName:        req.FinderName,
		Actor:             claims.Actor(),
		ActorEmail:        claims.Email,
	})
	if err != nil {
		writeStoreError(w, err, "create item")
		return
	}

	slog.Info("item received", "user", claims.Username, "item", item.ID, "category", item.Category)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// GetCustody handles GET /api/items/{id}/custody.
func (h *ItemsHandler) GetCustody(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	logs, err := store.ListCustodyLogs(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get custody history")
		return
	}
	claims, err := store.ListOwnerClaims(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "get owner claims")
		return
	}
	if logs == nil {
		logs = []model.CustodyLog{}
	}
	if claims == nil {
		claims = []model.OwnerClaim{}
	}
	jsonResponse(w, http.StatusOK, custodyResponse{Logs: logs, Claims: claims})
}

// UploadPhoto handles PUT /api/items/{id}/photo.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusBadRequest, "photo must be JPEG or PNG")
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, "invalid photo")
		return
	}

	if err := store.SetItemPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		writeStoreError(w, err, "save photo")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item photo uploaded", "user", claims.Username, "item", id, "width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/items/{id}/photo.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemPhoto(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Print handles GET /api/items/{id}/print/{kind}.
func (h *ItemsHandler) Print(w http.ResponseWriter, r *http.Request) {
	id, kind := r.PathValue("id"), r.PathValue("kind")

	var (
		pdf []byte
		err error
	)
	switch kind {
	case "owner-handover":
		pdf, err = h.Reports.OwnerHandover(r.Context(), id)
	case "office-handover":
		pdf, err = h.Reports.OfficeHandover(r.Context(), id)
	case "disposal":
		pdf, err = h.Reports.Disposal(r.Context(), id)
	default:
		jsonError(w, http.StatusNotFound, "unknown document")
		return
	}
	if err != nil {
		writeStoreError(w, err, "render "+kind+" document")
		return
	}
	writeFile(w, pdf, report.MimeType, kind+"_"+id+".pdf")
}
