package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

var byAdmin = Performer{UserID: "1", Email: "admin@example.com"}

func TestUserChangesAreAudited(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "ana", "ana@example.com", "hash", "desk", byAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := UpdateUser(ctx, database, user.ID, "ana@example.com", "storage", byAdmin); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if err := DeleteUser(ctx, database, user.ID, byAdmin); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	page, err := ListRoleAuditLogs(ctx, database, model.RoleAuditFilter{})
	if err != nil {
		t.Fatalf("ListRoleAuditLogs: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("got %d entries of %d, want 3", len(page.Items), page.Total)
	}

	// Newest first.
	want := []struct {
		action   model.UserAuditAction
		old, new string
	}{
		{model.UserAuditDelete, "storage", ""},
		{model.UserAuditUpdateRole, "desk", "storage"},
		{model.UserAuditCreate, "", "desk"},
	}
	for i, w := range want {
		got := page.Items[i]
		if got.Action != w.action || got.OldRole != w.old || got.NewRole != w.new {
			t.Errorf("entry %d = %s %q->%q, want %s %q->%q",
				i, got.Action, got.OldRole, got.NewRole, w.action, w.old, w.new)
		}
		if got.TargetUserID != user.ID || got.TargetUsername != "ana" || got.TargetEmail != "ana@example.com" {
			t.Errorf("entry %d target = %d/%q/%q", i, got.TargetUserID, got.TargetUsername, got.TargetEmail)
		}
		if got.PerformedByUserID != "1" || got.PerformedByEmail != "admin@example.com" {
			t.Errorf("entry %d performer = %q/%q", i, got.PerformedByUserID, got.PerformedByEmail)
		}
	}
}

func TestFailedUserChangeIsNotAudited(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "ana", "", "hash", "desk", byAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "ana", "", "hash", "desk", byAdmin); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate CreateUser: expected ErrInvalidInput, got %v", err)
	}
	if err := UpdateUser(ctx, database, 999, "", "desk", byAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateUser missing: expected ErrNotFound, got %v", err)
	}
	if err := DeleteUser(ctx, database, 999, byAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser missing: expected ErrNotFound, got %v", err)
	}

	page, _ := ListRoleAuditLogs(ctx, database, model.RoleAuditFilter{})
	if page.Total != 1 {
		t.Errorf("expected only the successful create to be audited, got %d entries", page.Total)
	}
}

func TestRoleAuditSystemPerformer(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "admin", "", "hash", model.RoleAdmin, Performer{}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	page, _ := ListRoleAuditLogs(ctx, database, model.RoleAuditFilter{})
	if len(page.Items) != 1 || page.Items[0].PerformedByUserID != model.RoleSystem {
		t.Errorf("expected system performer, got %+v", page.Items)
	}
}

func TestListRoleAuditLogsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana, _ := CreateUser(ctx, database, "ana", "ana@example.com", "hash", "desk", byAdmin)
	CreateUser(ctx, database, "marko", "marko@example.com", "hash", "desk", Performer{UserID: "2", Email: "lead@example.com"})
	UpdateUser(ctx, database, ana.ID, "ana@example.com", "storage", byAdmin)

	tests := []struct {
		name      string
		filter    model.RoleAuditFilter
		wantItems int
		wantTotal int
	}{
		{"all", model.RoleAuditFilter{}, 3, 3},
		{"by action", model.RoleAuditFilter{Action: model.UserAuditUpdateRole}, 1, 1},
		{"by target email fragment", model.RoleAuditFilter{Target: "marko@"}, 1, 1},
		{"by target username", model.RoleAuditFilter{Target: "ana"}, 2, 2},
		{"by performer email", model.RoleAuditFilter{PerformedBy: "lead"}, 1, 1},
		{"since future", model.RoleAuditFilter{Since: time.Now().Add(time.Hour)}, 0, 0},
		{"until future", model.RoleAuditFilter{Until: time.Now().Add(time.Hour)}, 3, 3},
		{"paged", model.RoleAuditFilter{Page: 2, PageSize: 2}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ListRoleAuditLogs(ctx, database, tt.filter)
			if err != nil {
				t.Fatalf("ListRoleAuditLogs: %v", err)
			}
			if len(page.Items) != tt.wantItems || page.Total != tt.wantTotal {
				t.Errorf("got %d entries of %d, want %d of %d",
					len(page.Items), page.Total, tt.wantItems, tt.wantTotal)
			}
		})
	}
}

func TestRoleAuditLogsAppendOnly(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "ana", "", "hash", "desk", byAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := database.Exec(`UPDATE role_audit_logs SET new_role = 'admin'`); err == nil {
		t.Error("expected update of role_audit_logs to be rejected")
	}
	if _, err := database.Exec(`DELETE FROM role_audit_logs`); err == nil {
		t.Error("expected delete from role_audit_logs to be rejected")
	}
}
