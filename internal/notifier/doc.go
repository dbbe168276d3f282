// Package notifier implements the alert fan-out engine.
//
// One call to Deliver reads a snapshot of the recipient registry, sends the
// alert to every recipient concurrently with a bounded per-recipient retry
// loop, and appends exactly one terminal record per recipient to the
// delivery ledger. Deliver is a synchronization barrier: it returns only
// after every recipient's outcome has been recorded.
//
// Failure semantics
//
// A recipient that keeps failing after the configured attempts is recorded
// as failed and never affects other recipients. Ledger unavailability is
// logged but never blocks or fails delivery.
package notifier
