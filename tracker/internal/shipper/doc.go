// Package shipper writes render passes to the pass history off the refresh
// path.
//
// Shipper.Ship() is non-blocking: passes are placed in an in-memory channel
// (default capacity 64). When the buffer is full the oldest pass is evicted
// so the latest summary is always preserved.
//
// Shipper.Run() drains the buffer in a loop, retrying a failed write with
// truncated exponential backoff (1s to 60s, ±25% jitter). A write against a
// closed database discards the pass immediately rather than retrying.
package shipper
