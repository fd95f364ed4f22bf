// Package tasks runs background work submitted by the HTTP handlers.
//
// Queue is an in-process Submitter: a bounded channel drained by a fixed
// pool of workers. Each attempt runs in a "task {name}" span whose parent
// is the submitting request's span, carried across the channel in the
// job's trace carrier. Failed attempts are retried with exponential
// backoff, so handlers must tolerate running more than once.
//
// OrderProcessor provides the process_order and send_order_confirmation
// handlers. Sweeper periodically re-submits orders that stayed pending,
// which recovers jobs that were buffered when the process exited.
package tasks
