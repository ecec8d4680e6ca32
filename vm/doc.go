// Package vm executes resolved programs directly against a byte tape.
//
// This package contains:
//   - Tree-walking evaluator over resolved operation streams
//   - Tape and data pointer state under both boundary policies
//   - Runtime errors carrying source byte offsets
package vm
