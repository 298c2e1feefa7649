// Package handler implements the HTTP layer of glucotrack.
//
// Every request is bound to a session through a cookie carrying a random
// session id. The handler resolves the session from the registry manager and
// passes it explicitly to the credential store and the measurement service;
// no request state is kept anywhere else.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201).
// Error responses return JSON with {error, details} structure. Storage errors
// map onto status codes by kind, see statusFor.
//
// # Server-Sent Events
//
// The /events endpoint streams the storage and identity events of the
// calling session.
package handler
