package access_test

import (
	"errors"
	"testing"

	"didstore/internal/access"
)

func TestDatabaseIdentity_Stable(t *testing.T) {
	perms := access.OwnerPermissions()

	first := access.DatabaseIdentity("did:example:abc", "notes", "entries", perms)
	second := access.DatabaseIdentity("did:example:abc", "notes", "entries", perms)
	if first != second {
		t.Errorf("identity not stable: %q != %q", first, second)
	}
	if first[0] != 'v' {
		t.Errorf("identity %q missing v prefix", first)
	}
}

func TestDatabaseIdentity_CaseNormalizesDID(t *testing.T) {
	perms := access.OwnerPermissions()
	lower := access.DatabaseIdentity("did:example:abc", "notes", "entries", perms)
	upper := access.DatabaseIdentity("DID:EXAMPLE:ABC", "notes", "entries", perms)
	if lower != upper {
		t.Errorf("DID case changed identity: %q != %q", lower, upper)
	}
}

func TestDatabaseIdentity_SensitiveToEachInput(t *testing.T) {
	base := access.DatabaseIdentity("did:example:abc", "notes", "entries", access.OwnerPermissions())

	variants := map[string]string{
		"did":   access.DatabaseIdentity("did:example:xyz", "notes", "entries", access.OwnerPermissions()),
		"app":   access.DatabaseIdentity("did:example:abc", "todo", "entries", access.OwnerPermissions()),
		"db":    access.DatabaseIdentity("did:example:abc", "notes", "archive", access.OwnerPermissions()),
		"read":  access.DatabaseIdentity("did:example:abc", "notes", "entries", access.PermissionDescriptor{Read: access.AccessPublic, Write: access.AccessOwner}),
		"write": access.DatabaseIdentity("did:example:abc", "notes", "entries", access.PermissionDescriptor{Read: access.AccessOwner, Write: access.AccessPublic}),
	}
	for name, got := range variants {
		if got == base {
			t.Errorf("changing %s did not change identity", name)
		}
	}
}

func TestSelectBackend(t *testing.T) {
	tests := []struct {
		name     string
		perms    access.PermissionDescriptor
		wantKind access.BackendKind
		wantErr  error
	}{
		{
			name:     "owner owner routes to owner encrypted",
			perms:    access.PermissionDescriptor{Read: access.AccessOwner, Write: access.AccessOwner},
			wantKind: access.KindOwnerEncrypted,
		},
		{
			name:     "public read routes to public",
			perms:    access.PermissionDescriptor{Read: access.AccessPublic, Write: access.AccessOwner},
			wantKind: access.KindPublic,
		},
		{
			name:     "public read public write routes to public",
			perms:    access.PermissionDescriptor{Read: access.AccessPublic, Write: access.AccessPublic},
			wantKind: access.KindPublic,
		},
		{
			name:     "users read routes to shared encrypted",
			perms:    access.PermissionDescriptor{Read: access.AccessUsers, Write: access.AccessOwner},
			wantKind: access.KindSharedEncrypted,
		},
		{
			name:     "users write routes to shared encrypted",
			perms:    access.PermissionDescriptor{Read: access.AccessOwner, Write: access.AccessUsers},
			wantKind: access.KindSharedEncrypted,
		},
		{
			name:    "owner read public write has no route",
			perms:   access.PermissionDescriptor{Read: access.AccessOwner, Write: access.AccessPublic},
			wantErr: access.ErrUnknownPermission,
		},
		{
			name:    "empty permissions have no route",
			perms:   access.PermissionDescriptor{},
			wantErr: access.ErrUnknownPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := access.SelectBackend(tt.perms)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectBackend() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectBackend() error = %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("SelectBackend() = %d, want %d", kind, tt.wantKind)
			}
		})
	}
}
