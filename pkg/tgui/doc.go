// Package tgui holds small Telegram UI helpers: inline keyboards, callback
// data with Telegram's 64 byte limit, HTML escaping, and a TTL token store
// for state that does not fit into callback data.
package tgui
