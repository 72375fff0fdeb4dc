// Package storage appends reminder audit records to a JSON-lines file or SQLite.
//
// It is an audit trail only. Reminders are never loaded back from it.
package storage
