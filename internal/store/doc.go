// Package store provides a SQL-backed environment: it implements the
// service.Service and service.MetadataProvider capabilities over SQLite
// (mattn/go-sqlite3) or Postgres (jackc/pgx via database/sql).
//
// A store holds:
//   - records: one row per (type, id) with the attributes as JSON
//   - entity_metadata: one descriptor per logical type
//   - associations: many-to-many links created by Associate
//   - operations: a journal of every executed named operation
//   - autonumber_seeds: values set by SetAutoNumberSeed
//
// # Critical Patterns
//
// Deterministic reads:
//   - Every query is ordered by seq (insertion order), so snapshot order
//     survives an export / import round trip
//
// Attribute documents:
//   - Each attribute is stored as a wire envelope with its comparison key
//     (ir.MarshalIndexed) so querysql can filter inside the JSON
//   - The primary key attribute is never stored; it is synthesized on read
//
// Server contract:
//   - Update merges attributes into the existing record
//   - WithReferentialIntegrity rejects writes whose references point at
//     records that do not exist, as a real environment would
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
