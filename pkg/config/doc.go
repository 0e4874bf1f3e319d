// Package config holds the settings of a sequence step and their XML form.
//
// The XML reader accepts the canonical <condition> tree as well as the two older layouts made of
// <key> entries, and the writer always emits the canonical tree.
package config
