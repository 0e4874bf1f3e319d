// Package row defines the row contract shared by the pipeline steps: an ordered, typed field
// layout and the values flowing through it.
//
// A Layout is read-only once it is handed to a step. Steps that need to add fields clone the
// layout first and add to the clone, so the upstream layout is never changed under a running copy.
package row
