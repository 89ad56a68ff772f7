// Package collection implements the collection manager (spec.md §4.9): the
// schema registry, the set of active backends per collection, pipeline
// routing, and the per-collection write locking that makes
// index/search/delete/aggregate/export/detach/attach/drop safe to call
// concurrently.
package collection
