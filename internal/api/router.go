package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/custody"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/report"
)

// Options tune optional parts of the API.
type Options struct {
	// Documents enables storing the deposit report after each deposit.
	Documents bool
}

// singleOps maps POST /api/items/{id}/<path> to custody operations.
var singleOps = map[string]custody.Operation{
	"storage-location": custody.OpStore,
	"start-transit":    custody.OpStartTransit,
	"receive-storage":  custody.OpReceiveAtStorage,
	"handover-office":  custody.OpTransferToOffice,
	"handover-owner":   custody.OpReleaseToOwner,
	"dispose":          custody.OpDispose,
	"destroy":          custody.OpDestroy,
	"sell":             custody.OpSell,
}

// bulkOps maps POST /api/items/bulk/<path> to custody operations. A bulk
// storage transfer puts the items in transit towards the named location.
var bulkOps = map[string]custody.Operation{
	"transfer-storage": custody.OpStartTransit,
	"receive-storage":  custody.OpReceiveAtStorage,
	"handover-office":  custody.OpTransferToOffice,
	"handover-owner":   custody.OpReleaseToOwner,
	"dispose":          custody.OpDispose,
	"destroy":          custody.OpDestroy,
	"sell":             custody.OpSell,
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) http.Handler {
	mux := http.NewServeMux()

	reports := &report.Generator{DB: db}
	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	depositsHandler := &DepositsHandler{DB: db, Reports: reports, Documents: opts.Documents}
	itemsHandler := &ItemsHandler{DB: db, Reports: reports}
	transitionsHandler := &TransitionsHandler{DB: db}
	storageHandler := &StorageHandler{DB: db}
	adminHandler := &AdminHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login. Metrics are served on a separate listener.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /api/me/permissions", authed(adminHandler.MyPermissions))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Roles and audit (admin only).
	mux.Handle("GET /api/admin/roles/permissions", admin(adminHandler.ListPermissions))
	mux.Handle("GET /api/admin/roles/permissions/{role}", admin(adminHandler.GetPermissions))
	mux.Handle("PUT /api/admin/roles/permissions/{role}", admin(adminHandler.SetPermissions))
	mux.Handle("DELETE /api/admin/roles/permissions/{role}", admin(adminHandler.DeletePermissions))
	mux.Handle("GET /api/admin/items-audit", admin(adminHandler.ItemsAudit))
	mux.Handle("GET /api/admin/users-audit", admin(adminHandler.UsersAudit))

	// Storage locations: read (all), write (admin).
	mux.Handle("GET /api/storage-locations", authed(storageHandler.List))
	mux.Handle("GET /api/storage-locations/{id}", authed(storageHandler.Get))
	mux.Handle("POST /api/storage-locations", admin(storageHandler.Create))
	mux.Handle("PUT /api/storage-locations/{id}", admin(storageHandler.Update))
	mux.Handle("DELETE /api/storage-locations/{id}", admin(storageHandler.Deactivate))

	// Deposits and their documents.
	mux.Handle("POST /api/deposits", authed(depositsHandler.Create))
	mux.Handle("GET /api/deposits", authed(depositsHandler.List))
	mux.Handle("GET /api/deposits/{id}", authed(depositsHandler.Get))
	mux.Handle("GET /api/deposits/{id}/{sub}", authed(depositsHandler.Sub))
	mux.Handle("GET /api/deposits/{id}/documents/latest", authed(depositsHandler.LatestDocument))
	mux.Handle("GET /api/documents/{docId}", authed(depositsHandler.GetDocument))

	// Items.
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("GET /api/items/{id}/custody", authed(itemsHandler.GetCustody))
	mux.Handle("PUT /api/items/{id}/photo", authed(itemsHandler.UploadPhoto))
	mux.Handle("GET /api/items/{id}/photo", authed(itemsHandler.GetPhoto))
	mux.Handle("GET /api/items/{id}/print/{kind}", authed(itemsHandler.Print))

	// Custody operations, gated by the role's capability flags.
	for path, op := range singleOps {
		mux.Handle("POST /api/items/{id}/"+path, gated(db, authMW, op, transitionsHandler.Single(op)))
	}
	for path, op := range bulkOps {
		mux.Handle("POST /api/items/bulk/"+path, gated(db, authMW, op, transitionsHandler.Bulk(op)))
	}

	return mux
}

// gated wraps h with authentication and, when op requires one, a capability check.
func gated(db *sql.DB, authMW func(http.Handler) http.Handler, op custody.Operation, h http.Handler) http.Handler {
	if c, ok := custody.Capability(op); ok {
		h = RequirePermission(db, c)(h)
	}
	return authMW(h)
}
