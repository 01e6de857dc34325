package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, Options{Documents: true})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateUser(ctx, database, "admin", "admin@example.com", string(hash), model.RoleAdmin, store.SystemPerformer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Get token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}

	return server, database, loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request and decodes a JSON response into out
// when out is non-nil.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

// tokenFor creates a user with role and returns a token for it.
func tokenFor(t *testing.T, database *sql.DB, username, role string) string {
	t.Helper()
	u, err := store.CreateUser(context.Background(), database, username, "", "x", role, store.SystemPerformer)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := auth.GenerateToken(testJWTSecret, u)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func createTestDeposit(t *testing.T, url, token string, details ...string) model.Deposit {
	t.Helper()
	items := make([]map[string]string, 0, len(details))
	for _, d := range details {
		items = append(items, map[string]string{"category": "Bag", "details": d})
	}
	var dep model.Deposit
	status := do(t, "POST", url+"/api/deposits", token, map[string]any{
		"finderName":    "Ana Novak",
		"foundLocation": "Line 6",
		"items":         items,
	}, &dep)
	if status != http.StatusCreated {
		t.Fatalf("create deposit: expected 201, got %d", status)
	}
	return dep
}

func TestLoginEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _, token := setupTestServer(t)

	if status := do(t, "POST", server.URL+"/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/items", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, Options{}))
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDepositAPIFlow(t *testing.T) {
	server, _, token := setupTestServer(t)

	dep := createTestDeposit(t, server.URL, token, "Black backpack", "Umbrella")
	if !strings.HasSuffix(dep.DepositNumber, "-0001") {
		t.Errorf("first deposit number = %q, want serial 0001", dep.DepositNumber)
	}
	if len(dep.Items) != 2 || dep.Items[0].SubIndex != 1 || dep.Items[1].SubIndex != 2 {
		t.Fatalf("unexpected items: %+v", dep.Items)
	}
	for _, it := range dep.Items {
		if it.Status != model.StatusInStorage {
			t.Errorf("item %s status = %s, want InStorage", it.ID, it.Status)
		}
	}

	second := createTestDeposit(t, server.URL, token, "Phone")
	if !strings.HasSuffix(second.DepositNumber, "-0002") {
		t.Errorf("second deposit number = %q, want serial 0002", second.DepositNumber)
	}

	// Lookup by number is stable.
	for range 2 {
		var got model.Deposit
		if status := do(t, "GET", server.URL+"/api/deposits/by-number/"+dep.DepositNumber, token, nil, &got); status != http.StatusOK {
			t.Fatalf("by-number: expected 200, got %d", status)
		}
		if got.ID != dep.ID || len(got.Items) != 2 || got.Items[1].ID != dep.Items[1].ID {
			t.Errorf("by-number returned %+v", got)
		}
	}
	if status := do(t, "GET", server.URL+"/api/deposits/by-number/2020-9999", token, nil, nil); status != http.StatusNotFound {
		t.Errorf("unknown number: expected 404, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/deposits/by-number/garbage", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("malformed number: expected 400, got %d", status)
	}

	// The deposit report was stored at creation.
	var docs []model.DepositDocument
	if status := do(t, "GET", server.URL+"/api/deposits/"+dep.ID+"/documents", token, nil, &docs); status != http.StatusOK {
		t.Fatalf("documents: expected 200, got %d", status)
	}
	if len(docs) != 1 || !strings.HasPrefix(docs[0].FileName, dep.DepositNumber+"_") {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	req, _ := authRequest("GET", server.URL+"/api/documents/"+docs[0].ID, token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("document: status %d, prefix %q", resp.StatusCode, data[:min(len(data), 5)])
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Errorf("document content type = %q", got)
	}
}

func TestCreateDepositValidation(t *testing.T) {
	server, _, token := setupTestServer(t)

	status := do(t, "POST", server.URL+"/api/deposits", token, map[string]any{"items": []any{}}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty deposit, got %d", status)
	}
}

func TestBulkDisposeAllOrNothing(t *testing.T) {
	server, database, token := setupTestServer(t)
	dep := createTestDeposit(t, server.URL, token, "Scarf", "Wallet")
	a, b := dep.Items[0].ID, dep.Items[1].ID

	if _, err := database.Exec(`UPDATE found_items SET status = ? WHERE id = ?`, model.StatusClaimed, b); err != nil {
		t.Fatalf("forcing status: %v", err)
	}

	var result model.BulkResult
	status := do(t, "POST", server.URL+"/api/items/bulk/dispose", token, map[string]any{
		"itemIds": []string{a, b, "missing"},
	}, &result)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	if result.ProcessedCount != 0 || len(result.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	reasons := map[string]string{}
	for _, e := range result.Errors {
		reasons[e.ItemID] = e.Reason
	}
	if reasons[b] != "Invalid status: Claimed" || reasons["missing"] != "Not found" {
		t.Errorf("unexpected reasons: %v", reasons)
	}

	var item model.FoundItem
	do(t, "GET", server.URL+"/api/items/"+a, token, nil, &item)
	if item.Status != model.StatusInStorage {
		t.Errorf("item A status = %s, want unchanged InStorage", item.Status)
	}

	// Without the claimed item the batch goes through.
	status = do(t, "POST", server.URL+"/api/items/bulk/dispose", token, map[string]any{
		"itemIds": []string{a},
		"notes":   "Shredded",
	}, &result)
	if status != http.StatusOK || result.ProcessedCount != 1 || len(result.Errors) != 0 {
		t.Fatalf("dispose: status %d, result %+v", status, result)
	}
}

func TestSingleOperationsAndCustody(t *testing.T) {
	server, _, token := setupTestServer(t)
	dep := createTestDeposit(t, server.URL, token, "Keys")
	id := dep.Items[0].ID

	var loc model.StorageLocation
	if status := do(t, "POST", server.URL+"/api/storage-locations", token, map[string]string{"name": "Depot"}, &loc); status != http.StatusCreated {
		t.Fatalf("create location: expected 201, got %d", status)
	}

	// Receive requires a prior transit.
	if status := do(t, "POST", server.URL+"/api/items/"+id+"/receive-storage", token, nil, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("receive without transit: expected 422, got %d", status)
	}

	var item model.FoundItem
	status := do(t, "POST", server.URL+"/api/items/"+id+"/start-transit", token, map[string]string{
		"storageLocationId":   loc.ID,
		"courierUserIdOrName": "Marko",
	}, &item)
	if status != http.StatusOK || item.Status != model.StatusInTransit {
		t.Fatalf("start-transit: status %d, item status %s", status, item.Status)
	}

	status = do(t, "POST", server.URL+"/api/items/"+id+"/receive-storage", token, nil, &item)
	if status != http.StatusOK || item.Status != model.StatusInStorage || item.StorageLocationID != loc.ID {
		t.Fatalf("receive-storage: status %d, item %+v", status, item)
	}

	// Owner release needs a name and address.
	if status := do(t, "POST", server.URL+"/api/items/"+id+"/handover-owner", token, map[string]string{"ownerName": "Jure"}, nil); status != http.StatusBadRequest {
		t.Errorf("owner without address: expected 400, got %d", status)
	}
	status = do(t, "POST", server.URL+"/api/items/"+id+"/handover-owner", token, map[string]string{
		"ownerName":    "Jure",
		"ownerAddress": "Trubarjeva 1",
		"handoverAt":   "2025-06-20T10:00:00Z",
	}, &item)
	if status != http.StatusOK || item.Status != model.StatusClaimed {
		t.Fatalf("handover-owner: status %d, item status %s", status, item.Status)
	}

	var custody custodyResponse
	if status := do(t, "GET", server.URL+"/api/items/"+id+"/custody", token, nil, &custody); status != http.StatusOK {
		t.Fatalf("custody: expected 200, got %d", status)
	}
	wantActions := []model.Action{model.ActionReceive, model.ActionStartTransit, model.ActionReceiveAtStorage, model.ActionReleaseToOwner}
	if len(custody.Logs) != len(wantActions) {
		t.Fatalf("expected %d custody logs, got %d", len(wantActions), len(custody.Logs))
	}
	for i, want := range wantActions {
		if custody.Logs[i].Action != want {
			t.Errorf("log %d action = %s, want %s", i, custody.Logs[i].Action, want)
		}
	}
	if len(custody.Claims) != 1 || custody.Claims[0].OwnerName != "Jure" {
		t.Errorf("unexpected claims: %+v", custody.Claims)
	}

	// Terminal status is final.
	if status := do(t, "POST", server.URL+"/api/items/"+id+"/dispose", token, nil, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("dispose claimed item: expected 422, got %d", status)
	}

	req, _ := authRequest("GET", server.URL+"/api/items/"+id+"/print/owner-handover", token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("print owner handover: expected 200, got %d", resp.StatusCode)
	}
}

func TestSingleOperationNotFound(t *testing.T) {
	server, _, token := setupTestServer(t)

	if status := do(t, "POST", server.URL+"/api/items/nope/dispose", token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/items/nope", token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestPermissionGating(t *testing.T) {
	server, database, adminToken := setupTestServer(t)
	dep := createTestDeposit(t, server.URL, adminToken, "Gloves")
	clerk := tokenFor(t, database, "clerk1", "clerk")

	body := map[string]any{"itemIds": []string{dep.Items[0].ID}}
	if status := do(t, "POST", server.URL+"/api/items/bulk/destroy", clerk, body, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 without capability, got %d", status)
	}

	var perms model.Permissions
	if status := do(t, "GET", server.URL+"/api/me/permissions", clerk, nil, &perms); status != http.StatusOK || perms.Destroy {
		t.Fatalf("me/permissions: status %d, %+v", status, perms)
	}

	if status := do(t, "PUT", server.URL+"/api/admin/roles/permissions/clerk", adminToken, map[string]bool{"destroy": true}, nil); status != http.StatusOK {
		t.Fatalf("set permissions: expected 200, got %d", status)
	}
	if status := do(t, "POST", server.URL+"/api/items/bulk/destroy", clerk, body, nil); status != http.StatusOK {
		t.Errorf("expected 200 with capability, got %d", status)
	}

	// Admin endpoints stay closed to other roles.
	if status := do(t, "GET", server.URL+"/api/admin/items-audit", clerk, nil, nil); status != http.StatusForbidden {
		t.Errorf("audit as clerk: expected 403, got %d", status)
	}
	var page model.AuditPage
	if status := do(t, "GET", server.URL+"/api/admin/items-audit?action=Destroy", adminToken, nil, &page); status != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", status)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].FoundItemID != dep.Items[0].ID {
		t.Errorf("unexpected audit page: %+v", page)
	}
}

func TestItemsListAPI(t *testing.T) {
	server, _, token := setupTestServer(t)
	createTestDeposit(t, server.URL, token, "Red umbrella", "Blue umbrella", "Laptop")

	var page model.ItemPage
	if status := do(t, "GET", server.URL+"/api/items?q=umbrella&pageSize=1", token, nil, &page); status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if page.Total != 2 || len(page.Items) != 1 {
		t.Errorf("expected total 2 with one item on the page, got total %d, %d items", page.Total, len(page.Items))
	}

	if status := do(t, "GET", server.URL+"/api/items?status=bogus", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("bogus status: expected 400, got %d", status)
	}
}

func TestItemsAuditPaging(t *testing.T) {
	server, _, token := setupTestServer(t)
	dep := createTestDeposit(t, server.URL, token, "Hat", "Scarf", "Gloves")
	ids := []string{dep.Items[0].ID, dep.Items[1].ID, dep.Items[2].ID}
	if status := do(t, "POST", server.URL+"/api/items/bulk/dispose", token, map[string]any{"itemIds": ids}, nil); status != http.StatusOK {
		t.Fatalf("dispose: expected 200, got %d", status)
	}

	// The disposals carry the admin's email.
	var page model.AuditPage
	status := do(t, "GET", server.URL+"/api/admin/items-audit?actor=admin@&page=2&pageSize=2", token, nil, &page)
	if status != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", status)
	}
	if page.Total != 3 || len(page.Items) != 1 {
		t.Errorf("expected total 3 with one entry on page 2, got total %d, %d entries", page.Total, len(page.Items))
	}

	do(t, "GET", server.URL+"/api/admin/items-audit?actor=nobody", token, nil, &page)
	if page.Total != 0 || page.Items == nil {
		t.Errorf("expected empty page for unknown actor, got %+v", page)
	}

	if status := do(t, "GET", server.URL+"/api/admin/items-audit?page=x", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad page: expected 400, got %d", status)
	}
}

func TestUsersAuditAPI(t *testing.T) {
	server, database, token := setupTestServer(t)

	var user model.User
	status := do(t, "POST", server.URL+"/api/users", token, map[string]string{
		"username": "marko",
		"email":    "marko@example.com",
		"password": "long-enough-password",
		"role":     "desk",
	}, &user)
	if status != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", status)
	}
	userURL := server.URL + "/api/users/" + strconv.FormatInt(user.ID, 10)
	if status := do(t, "PUT", userURL, token, map[string]string{"email": "marko@example.com", "role": "storage"}, nil); status != http.StatusOK {
		t.Fatalf("update user: expected 200, got %d", status)
	}
	if status := do(t, "DELETE", userURL, token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete user: expected 200, got %d", status)
	}

	var page model.RoleAuditPage
	if status := do(t, "GET", server.URL+"/api/admin/users-audit?target=marko", token, nil, &page); status != http.StatusOK {
		t.Fatalf("users-audit: expected 200, got %d", status)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("expected 3 entries, got %+v", page)
	}
	for _, e := range page.Items {
		if e.PerformedByEmail != "admin@example.com" || e.TargetUserID != user.ID {
			t.Errorf("unexpected entry: %+v", e)
		}
	}
	if page.Items[0].Action != model.UserAuditDelete || page.Items[2].Action != model.UserAuditCreate {
		t.Errorf("expected newest first, got %s ... %s", page.Items[0].Action, page.Items[2].Action)
	}

	do(t, "GET", server.URL+"/api/admin/users-audit?action=UpdateRole", token, nil, &page)
	if page.Total != 1 || page.Items[0].OldRole != "desk" || page.Items[0].NewRole != "storage" {
		t.Errorf("unexpected role change entry: %+v", page)
	}

	if status := do(t, "GET", server.URL+"/api/admin/users-audit?action=Bogus", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("bogus action: expected 400, got %d", status)
	}
	clerk := tokenFor(t, database, "clerk1", "clerk")
	if status := do(t, "GET", server.URL+"/api/admin/users-audit", clerk, nil, nil); status != http.StatusForbidden {
		t.Errorf("users-audit as clerk: expected 403, got %d", status)
	}
}

func TestMetricsNotOnAPIListener(t *testing.T) {
	server, _, token := setupTestServer(t)

	before := testutil.ToFloat64(metrics.DepositsCreated)
	createTestDeposit(t, server.URL, token, "Hat")
	if got := testutil.ToFloat64(metrics.DepositsCreated); got != before+1 {
		t.Errorf("deposits counter = %v, want %v", got, before+1)
	}

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for /metrics on the API listener, got %d", resp.StatusCode)
	}
}
