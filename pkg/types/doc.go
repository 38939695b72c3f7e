// Package types defines the shared domain types of the tracker: the raw
// tabular Row, the parsed Application, the optional civil Date, the Derived
// day-delta fields and the Health label set.
//
// Optional values are pointers: a nil *Date or *int means the value is absent
// (null), never zero. ParseDate absorbs malformed input and returns nil.
//
// Normalize is the single text-comparison policy used by the classifier and
// the aggregates: trim, collapse inner whitespace, Unicode case fold.
package types
