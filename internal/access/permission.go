package access

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// AccessLevel names who may read or write a database.
type AccessLevel string

const (
	// AccessOwner restricts access to the identity that owns the database.
	AccessOwner AccessLevel = "owner"
	// AccessPublic allows anyone with the connection string.
	AccessPublic AccessLevel = "public"
	// AccessUsers restricts access to an explicit list of identities that
	// share the database encryption key.
	AccessUsers AccessLevel = "users"
)

// PermissionDescriptor is the declarative access policy attached to a
// database. It is immutable once the database has been constructed; read and
// write levels may differ (e.g. public-read / owner-write).
type PermissionDescriptor struct {
	Read       AccessLevel
	Write      AccessLevel
	ReadUsers  []string
	WriteUsers []string
}

// OwnerPermissions is the default policy: only the owner reads and writes.
func OwnerPermissions() PermissionDescriptor {
	return PermissionDescriptor{Read: AccessOwner, Write: AccessOwner}
}

// BackendKind identifies which backend variant a permission pair routes to.
type BackendKind int

const (
	// KindOwnerEncrypted is the owner's private encrypted store. The
	// encryption key and DSN come from the owner's session.
	KindOwnerEncrypted BackendKind = iota
	// KindPublic is an unencrypted store readable by anyone.
	KindPublic
	// KindSharedEncrypted is an encrypted store shared with a user list.
	// The caller supplies the encryption key; key distribution is handled
	// elsewhere.
	KindSharedEncrypted
)

// SelectBackend is the pure routing function from a permission pair to a
// backend variant. The order of the cases is significant: a public read wins
// over a users write list.
func SelectBackend(p PermissionDescriptor) (BackendKind, error) {
	switch {
	case p.Read == AccessOwner && p.Write == AccessOwner:
		return KindOwnerEncrypted, nil
	case p.Read == AccessPublic:
		return KindPublic, nil
	case p.Read == AccessUsers || p.Write == AccessUsers:
		return KindSharedEncrypted, nil
	default:
		return 0, ErrUnknownPermission
	}
}

// DatabaseIdentity derives the stable physical name for a database. It is a
// pure function of its inputs: the owner DID (case-normalized), application
// name, database name and the read/write permission pair. The same tuple
// always yields the same identity string.
func DatabaseIdentity(did, appName, dbName string, perms PermissionDescriptor) string {
	key := strings.ToLower(did) + "/" + appName + "/" + dbName + "/" +
		string(perms.Read) + "/" + string(perms.Write)
	sum := md5.Sum([]byte(key))
	return "v" + hex.EncodeToString(sum[:])
}
