// Package store holds the latest render pass of every board in memory. Passes
// that are not refreshed within the TTL are evicted, so a board whose source
// stopped updating drops off the dashboard instead of showing stale ages.
package store
