// Package compute turns raw application rows into enriched, classified
// records for one render pass.
//
// derive.go provides the pure Derive(app, today) function: day deltas
// relative to a caller-supplied today, nil whenever a source date is absent.
//
// classify.go and rules.go provide the Health Classifier as an ordered rule
// chain. The first matching rule wins; a chain always has a default label so
// classification is total. Presets: canonical, deadline, literal.
//
// summary.go computes the dashboard counters and the reality check.
//
// engine.go provides Engine.Process, which runs one pass: today is read once
// from the injected now, rows are parsed, derived, classified, sorted and
// summarised. Engine holds no mutable state.
package compute
