// Package condition provides the boolean condition tree evaluated against rows.
//
// A Condition is either a leaf comparing a left field with a right field or a constant, or a
// composite holding an ordered list of child conditions. Every node carries the operator joining
// it to its preceding sibling; a composite folds its children from left to right with those
// operators. The comparison itself is delegated to an Evaluator, so the tree only owns its shape
// and the way child results are combined.
//
// Trees are built once and then only read. The single mutable part is the cache of resolved field
// positions, which must be cleared before the tree is evaluated against a new layout. Concurrent
// users should evaluate their own Clone.
package condition
