// Package notifier delivers reminder notices as direct messages and posts
// operator notices to the log group.
//
// Sends share one token bucket so a burst of due reminders stays under the
// Bot API flood limits. Deliveries are attempted once; the caller decides
// what a failure means.
package notifier
