package domain

import (
	"fmt"
	"path"
	"strings"
)

// Namespace is a logical partition of stored data
type Namespace string

const (
	// NamespaceApplication holds data shared by every session
	NamespaceApplication Namespace = "application"

	userPrefix = "user:"
	// UserFolderPrefix prefixes the per-user subfolder on disk
	UserFolderPrefix = "user_data_"
)

// UserNamespace returns the isolated namespace of an identity
func UserNamespace(username string) Namespace {
	return Namespace(userPrefix + username)
}

// IsUser reports whether the namespace is a per-user namespace
func (n Namespace) IsUser() bool {
	return strings.HasPrefix(string(n), userPrefix)
}

// Username returns the identity owning a user namespace, or "" for application
func (n Namespace) Username() string {
	if !n.IsUser() {
		return ""
	}
	return strings.TrimPrefix(string(n), userPrefix)
}

// Dir returns the root-relative folder holding the namespace's files.
// This is the only place namespace names are mapped to paths. Bytes outside
// [A-Za-z0-9._@-] are percent-escaped, so distinct usernames never share a
// folder and no username can leave its folder.
func (n Namespace) Dir() string {
	if !n.IsUser() {
		return ""
	}
	return UserFolderPrefix + escapeName(n.Username())
}

func escapeName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isSafeNameByte(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isSafeNameByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '.', c == '_', c == '@', c == '-':
		return true
	}
	return false
}

// Resolve maps a file name inside the namespace to a root-relative path
func (n Namespace) Resolve(file string) string {
	return path.Join(n.Dir(), strings.TrimPrefix(path.Clean("/"+file), "/"))
}

// BackendKind identifies a filesystem backend implementation
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendWebDAV BackendKind = "webdav"
	BackendSQLite BackendKind = "sqlite"
)

// Location identifies one physical file
type Location struct {
	Backend BackendKind `json:"backend"`
	Root    string      `json:"root"`
	Path    string      `json:"path"`
}

// String renders the location as backend:root/path
func (l Location) String() string {
	return string(l.Backend) + ":" + path.Join(l.Root, l.Path)
}
