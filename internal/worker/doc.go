// Package worker is the polling harness that turns claimed tasks into
// handler invocations. It claims batches on an interval, watches each row
// for cancellation or reopening while its handler runs, and saves the
// handler's output as the final result. A handler error is recorded as a
// FAILED draft status with the lease released, so the row can be reopened
// with feedback.
package worker
