// Package cache keeps at most one document per key in a shared document store.
//
// A Connection owns one Backend handle (MongoDB, Redis, SQLite, a directory of
// JSON files, or memory). Cachr values obtained from it address one collection
// each and provide:
//   - Upsert: insert or fully replace the document for a key. Upserts from every
//     Cachr in the process are serialized through one lock.
//   - Lookup: return the document for a key, nothing, or ErrConsistencyViolation
//     when the store holds more than one document for that key.
//
// Shared returns the process-wide Connection, opened once on first use; this is
// the normal way to get one. NewConnection builds an isolated Connection for
// tests and tools that must not touch the shared handle.
//
// Store errors are logged with the collection and document id and returned
// unchanged. There are no retries.
package cache
