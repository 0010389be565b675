// Package sqlite implements the chunk catalog on SQLite. The catalog
// is the system of record for indexed chunks: search backends hydrate
// result text from it and the embedded vector index is rebuilt from it
// at startup. It also holds the per-file ingestion manifest used for
// skip-existing runs.
package sqlite
