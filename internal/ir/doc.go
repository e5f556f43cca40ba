// Package ir provides the record model shared by every other package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed union; switches over it are exhaustive
//   - Attributes keep insertion order (reports and name heuristics rely on it)
//   - Display-only data (reference names, option labels) never affects equality
//   - All JSON tags use snake_case
package ir
