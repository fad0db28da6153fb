// Package stores provides the persistence layer for charmforge.
// It keeps a SQLite-backed history of compose runs (WAL mode, embedded
// migrations) so past compositions can be listed and diagnosed.
package stores
