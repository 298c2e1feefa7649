// Package registry is the session-scoped data registry.
//
// A Manager hands out one Session per session id. The request handlers of a
// session look it up on every interaction and pass it along explicitly;
// asking for the same id again returns the already initialized Session, so
// nothing reconnects to the backend.
//
// A Session caches loaded values under logical keys and remembers, for each
// key, the namespace and file it came from. Loading a resident key is a
// no-op, which keeps repeated interactions from re-reading the backend.
// AppendRecord and Save write back to the remembered location.
//
// Data lives either in the shared application namespace or in the
// namespace of the authenticated identity. User data is refused without an
// identity, and every user entry is evicted when the identity is cleared so
// a reused session cannot expose a previous user's data.
//
// Sessions are not coordinated with each other. Two sessions writing the
// same file overwrite each other; the last write wins.
package registry
