// Package webhooks receives and verifies partner pushes.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// Dedupe is keyed by the partner messageId; the synchronous path only takes
// custody of a push (verify, validate, claim, enqueue) and answers with the
// literal success/error tokens the partner dispatcher matches on.
package webhooks
