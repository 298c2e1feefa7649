// Package domain defines the core types of the glucotrack storage layer.
//
// # Datasets
//
// Dataset is an ordered sequence of records, each a mapping from column name
// to scalar value. The column set belongs to the dataset instance and is
// never declared up front; appending a record with a new column widens it.
//
// # Namespaces
//
// Stored data is partitioned into the shared application namespace and one
// isolated namespace per authenticated identity. Location identifies one
// physical file inside a backend; both are computed on demand and never
// persisted themselves.
//
// # Identity
//
// Identity is the transient session identity established by a successful
// credential check. Credential is the persisted record behind it.
//
// # Errors
//
// errors.go holds the storage error taxonomy shared by every layer. Each
// condition has a sentinel usable with errors.Is.
package domain
