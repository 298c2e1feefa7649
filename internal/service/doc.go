// Package service holds the glucose measurement logic on top of the session
// registry: recording a reading, listing a user's readings, deleting one,
// and summarising them.
package service
