// Package reminder implements the per-user reminder scheduler.
//
// Reminders live in memory only. Each owner has an ordered set keyed by
// (due time, message); a background Scheduler drains expired entries and hands
// them to a Sink. Service is the facade the chat commands talk to, and Matcher
// lets users pick a reminder by approximate text instead of an id.
package reminder
