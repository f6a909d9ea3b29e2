// Package inbound turns claim request notifications into queued handle jobs.
//
// Notifications are deduplicated with claim/complete/fail semantics so a
// burst of repeats for one claim queues it once, while a failed enqueue stays
// retryable.
package inbound
