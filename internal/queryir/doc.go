// Package queryir provides the abstract query representation used to ask a
// Record Service for records.
//
// The IR is the boundary between the engine (which builds queries) and
// backends (which compile them). The SQL backend lives in querysql.
//
//	[engine / verify / identity] → [Query IR] → [querysql: sqlite | postgres]
//
// A Query names one logical type, an optional predicate tree, the columns
// to return and an optional inner Link through a related type:
//
//	Query{
//	  Type:   "sla",
//	  Filter: Equals{Field: "statecode", Value: ir.Option{Code: 1}},
//	  Link: &Link{
//	    Type: "slaitem", From: "slaid", To: "slaid",
//	    Filter: Equals{Field: "workflowid", Value: ir.Ref{...}},
//	  },
//	}
//
// Predicates compare on each value's comparison key (see ir.Key): strings
// case-insensitively, references and ids by id, options by code. Null never
// equals anything; use IsNull / NotNull.
//
// Predicate and Query node types are sealed by marker methods so compilers
// can switch over them exhaustively.
package queryir
