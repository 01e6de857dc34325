package model

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestValidateRoleName(t *testing.T) {
	tests := []struct {
		role    string
		wantErr bool
	}{
		{"", true},
		{RoleSystem, true},
		{RoleAdmin, false},
		{"storekeeper", false},
	}

	for _, tt := range tests {
		err := ValidateRoleName(tt.role)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRoleName(%q) error = %v, wantErr %v", tt.role, err, tt.wantErr)
		}
	}
}

func TestPermissionsHas(t *testing.T) {
	p := Permissions{RoleName: "clerk", Dispose: true, Sell: true}

	tests := []struct {
		cap  Capability
		want bool
	}{
		{CapDispose, true},
		{CapSell, true},
		{CapDestroy, false},
		{CapHandoverOwner, false},
		{Capability("unknown"), false},
	}

	for _, tt := range tests {
		if got := p.Has(tt.cap); got != tt.want {
			t.Errorf("Has(%q) = %v, want %v", tt.cap, got, tt.want)
		}
	}

	all := AllPermissions("admin")
	for _, c := range []Capability{CapHandoverOwner, CapHandoverOffice, CapTransferStorage, CapReceiveStorage, CapDispose, CapDestroy, CapSell} {
		if !all.Has(c) {
			t.Errorf("AllPermissions missing %q", c)
		}
	}
}
