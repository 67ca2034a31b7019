// Package cache stores finished enrollment tables keyed by end year and
// shape so repeated requests skip the download and the pipeline.
//
// Four backends implement Store: FileStore (one JSON file per entry),
// MemoryStore, BoltStore (a single bbolt file) and ObjectStore (an
// S3-compatible bucket through minio-go). All of them persist the same JSON
// encoding, so a table read back is identical to the one written.
package cache
