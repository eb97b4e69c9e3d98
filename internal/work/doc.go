// Package work runs background jobs submitted by event listeners and the scheduler.
//
// # Work Items
//
// A work item is identified by its work type and subject, e.g.
// "opportunities:recompute:inv-42". Submitting an item whose id is already queued
// replaces the queued payload instead of adding a second copy, so a burst of
// triggers for the same key costs one execution. An item is never started while
// another item with the same id is running; it waits in the queue instead.
//
// # Ordering
//
// Eligible items are picked by priority (highest first), then by submission time.
//
// # Failures
//
// Failed, panicking or timed-out items are logged and dropped. Jobs in this system
// are superseded by the next trigger for the same key rather than retried.
package work
