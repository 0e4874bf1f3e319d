// Package sequence appends a shared, conditionally advanced counter value to every row of a
// stream.
//
// A Stage is one copy of the step. Copies started for the same field name share one counter
// through a counter.Registry: the first row seen by a copy emits the current value unchanged, and
// every later row advances the counter by its increment when the configured condition holds.
package sequence
