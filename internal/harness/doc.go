// Package harness runs migration scenarios end to end.
//
// A scenario names a metadata file, transform rule files, a snapshot that
// seeds the target environment and the source snapshot to import. Run opens
// a fresh in-memory target store, seeds it, imports the source snapshot with
// a recording Record Service (waits are recorded, never slept) and evaluates
// the scenario's assertions against the outcome.
//
// # Scenario layout
//
//	name: account-import
//	description: accounts are created, updated or left alone
//	metadata: metadata.json
//	transforms: [rules.yaml]
//	target: target
//	snapshot: source
//	operator: FABRIKAM\deployer
//	verify: true
//	assertions:
//	  - type: counts
//	    record_type: account
//	    expect: {created: 1, updated: 1, unchanged: 1}
//
// Paths are relative to the scenario file. The target and snapshot entries
// are snapshot directories (see package snapshot).
//
// # Golden files
//
// RunWithGolden renders the outcome summary, the verification reports and
// the ERROR! log lines as text and compares them with
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
