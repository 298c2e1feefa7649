// Package adapter implements the filesystem backends of the storage layer.
//
// Every backend satisfies FS, so upper layers never branch on where the data
// lives. Paths are root-relative and forward-slash separated; a ".." segment
// is rejected.
//
// # Backends
//
// Local stores files below a folder on the local disk.
//
// WebDAV stores files on a remote share reached over a base URL with a
// username and password. Transport and authentication failures surface as
// domain.ErrBackendUnavailable. There is no retry and no timeout: an
// unreachable share stalls the calling request.
//
// SQLite keeps every file as a row of a single database file, for
// deployments without a writable folder.
//
// # Handles
//
// WithFile is the scoped form of Open: the handle is closed on every exit
// path. Remote and SQLite writes are buffered and stored on Close, so a write
// is only durable once Close returns nil. No backend writes atomically.
//
// # Backend Registry
//
// Registry maps a backend kind from configuration to its constructor.
package adapter
