// Package counter holds the named counters shared by every copy of a sequence step.
//
// A Registry maps lookup names to Counters. Getting or creating an entry and removing it are
// single operations under the registry lock; the value of a Counter is only ever read or written
// under the counter's own lock. The two locks are never held together.
package counter
