// Package logx is remindbot's structured logging.
//
// Logger is a thin value type over zerolog. A Service owns the live outputs
// (console, JSON file, ops chat) and can swap them at runtime; loggers derived
// from it follow every Apply.
package logx
