// Package engine imports captured record batches into a target environment.
//
// An import run has two phases:
//
//  1. Prepare loads target facts concurrently (metadata, organization, root
//     business units, the operator's user record), then seeds the transform
//     registry with environment rules and resolves query-valued rules.
//  2. Import processes one batch at a time. Foundation types first seed
//     business-key mappings. Each record is rewritten through the identity
//     resolver, matched against the target and created, updated or skipped.
//
// Some types cannot be written directly. Duplicate detection rules are
// unpublished around the write and republished afterwards. Workflows and
// SLAs are moved to draft and reactivated. Document templates have the type
// code embedded in their content rewritten. Intersect records are written
// through Associate.
//
// PASSES:
//
// A record that references another record of the same batch fails until the
// referenced record exists. Import retries the failures of each pass in the
// next one, up to WithMaxPasses (default 3). Transformation runs on the
// first pass only. A reference chain written in the worst order resolves
// one link per pass, so records beyond the pass count stay failed. This is
// a depth limit, not an error: the failures are logged and counted.
//
// CRITICAL: processing is sequential. Registry mutation happens during
// Prepare (after the fan-out has joined) and during foundation seeding,
// never concurrently with resolution.
package engine
