// Package identity rewrites source identities into target identities.
//
// Three pieces cooperate:
//
//   - Resolver rewrites a record's attribute values in place using the
//     transform registry, skipping ids known to be identical on both sides.
//   - SeedEnvironment adds environment facts to the registry before any
//     write: the target organization, the root business unit mapping and
//     the operator's administrator identity.
//   - Seeder maps foundation types (business units, roles, field security
//     profiles, currencies, queues, teams) by business key, once per batch.
//
// CRITICAL: seeding mutates the registry. It must complete before the
// upsert phase reads it, and no two seeders may run at once.
package identity
